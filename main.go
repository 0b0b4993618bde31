package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kutluhann/decentralized-file-sharing-system/api"
	"github.com/kutluhann/decentralized-file-sharing-system/config"
	"github.com/kutluhann/decentralized-file-sharing-system/constants"
	"github.com/kutluhann/decentralized-file-sharing-system/dht"
	"github.com/kutluhann/decentralized-file-sharing-system/filesystem"
	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
	"github.com/kutluhann/decentralized-file-sharing-system/storage"
)

func main() {
	cfg := config.Init()

	host := flag.String("host", cfg.Host, "Host this node advertises to its peers")
	port := flag.Int("port", cfg.Port, "HTTP port for peer RPC and the client API")
	dataDir := flag.String("data", cfg.DataDir, "Directory for the identity key and the chunk database")
	peers := flag.String("peers", "", "Comma separated peer addresses (default: DFS_PEERS or localhost:8000..8009)")
	logLevel := flag.String("log-level", cfg.LogLevel.String(), "trace, debug, info, warn or error")
	mergePolicy := flag.String("merge-policy", cfg.MergePolicy.String(), "latest-wins or self-wins")
	flag.Parse()

	cfg.Host, cfg.Port, cfg.DataDir = *host, *port, *dataDir
	if *peers != "" {
		cfg.Peers = config.ParsePeers(*peers)
	}

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	policy, err := filesystem.ParseMergePolicy(*mergePolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("bad merge policy")
	}

	if err := run(cfg, policy); err != nil {
		log.Fatal().Err(err).Msg("node stopped")
	}
}

func run(cfg *config.Config, policy filesystem.MergePolicy) error {
	id_tools.SetDataDirectory(cfg.DataDir)

	privateKey, peerID, err := id_tools.LoadOrGeneratePID()
	if err != nil {
		return err
	}
	if err := id_tools.VerifyIdentity(privateKey, peerID); err != nil {
		return err
	}
	cfg.SetPrivateKey(privateKey)

	logger := log.With().Str("node", peerID.Short()).Logger()
	logger.Info().Str("peer_id", peerID.String()).Str("key_file", id_tools.PrivateKeyFilePath).Msg("identity verified")

	store, err := storage.OpenBoltStore(filepath.Join(cfg.DataDir, constants.ChunkDBFile), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	nodeOpts := []dht.NodeOption{
		dht.WithStore(store),
		dht.WithNetwork(api.NewClient(cfg.RPCTimeout, logger)),
		dht.WithLogger(logger),
		dht.WithRPCTimeout(cfg.RPCTimeout),
		dht.WithMergePolicy(policy),
	}
	if cfg.HasPrivateKey() {
		nodeOpts = append(nodeOpts, dht.WithPublicKey(cfg.GetPrivateKey().PublicKey.Hex(true)))
	}

	self := dht.PeerRecord{ID: peerID, Host: cfg.Host, Port: cfg.Port}
	node := dht.NewNode(self, nodeOpts...)

	server := api.NewHTTPServer(node, api.ServerConfig{
		RPCRate:  cfg.RPCRate,
		MaxConns: cfg.MaxConns,
	}, logger)

	syncService := dht.NewSyncService(node, dht.SyncConfig{
		AnnounceInterval:  cfg.AnnounceInterval,
		ReconcileInterval: cfg.ReconcileInterval,
		RebalanceInterval: cfg.RebalanceInterval,
		RPCTimeout:        cfg.RPCTimeout,
		Candidates:        cfg.Peers,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("address", cfg.Address()).
		Strs("peers", cfg.Peers).
		Str("merge_policy", policy.String()).
		Msg("node starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(ctx, net.JoinHostPort("", strconv.Itoa(cfg.Port)))
	})
	g.Go(func() error {
		return syncService.Run(ctx)
	})
	err = g.Wait()

	logger.Info().Msg("node stopped")
	return err
}
