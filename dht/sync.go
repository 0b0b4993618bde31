package dht

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/thoas/go-funk"
	"golang.org/x/sync/errgroup"

	"github.com/kutluhann/decentralized-file-sharing-system/constants"
)

// Rebalancer moves chunk custody toward the peers closest to each chunk.
// SyncService only schedules it.
type Rebalancer func(ctx context.Context, node *Node) error

type SyncConfig struct {
	AnnounceInterval  time.Duration
	ReconcileInterval time.Duration
	RebalanceInterval time.Duration
	RPCTimeout        time.Duration

	// Candidates are peer addresses announced to even when they are not in
	// the routing table yet.
	Candidates []string
	Rebalancer Rebalancer
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		AnnounceInterval:  constants.AnnounceInterval,
		ReconcileInterval: constants.ReconcileInterval,
		RebalanceInterval: constants.RebalanceInterval,
		RPCTimeout:        constants.RPCTimeout,
	}
}

// SyncService keeps a node in touch with its peers: it announces itself,
// reconciles namespaces by fingerprint and ticks the rebalancer.
type SyncService struct {
	node   *Node
	config SyncConfig
	logger zerolog.Logger
}

func NewSyncService(node *Node, config SyncConfig, logger zerolog.Logger) *SyncService {
	defaults := DefaultSyncConfig()
	if config.AnnounceInterval <= 0 {
		config.AnnounceInterval = defaults.AnnounceInterval
	}
	if config.ReconcileInterval <= 0 {
		config.ReconcileInterval = defaults.ReconcileInterval
	}
	if config.RebalanceInterval <= 0 {
		config.RebalanceInterval = defaults.RebalanceInterval
	}
	if config.RPCTimeout <= 0 {
		config.RPCTimeout = defaults.RPCTimeout
	}
	return &SyncService{
		node:   node,
		config: config,
		logger: logger.With().Str("component", "sync").Logger(),
	}
}

// Run blocks until ctx is done. A failed round never stops its loop.
func (s *SyncService) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.loop(ctx, "announce", s.config.AnnounceInterval, func(ctx context.Context) {
			s.AnnounceOnce(ctx)
		})
	})
	g.Go(func() error {
		return s.loop(ctx, "reconcile", s.config.ReconcileInterval, func(ctx context.Context) {
			s.ReconcileOnce(ctx)
		})
	})
	g.Go(func() error {
		return s.loop(ctx, "rebalance", s.config.RebalanceInterval, func(ctx context.Context) {
			s.RebalanceOnce(ctx)
		})
	})

	return g.Wait()
}

func (s *SyncService) loop(ctx context.Context, name string, interval time.Duration, round func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			round(ctx)

		case <-ctx.Done():
			s.logger.Debug().Str("loop", name).Msg("context cancelled, stopping ticker")
			return nil
		}
	}
}

// announceTargets is the configured candidates plus every routing table
// peer, without duplicates and without ourselves.
func (s *SyncService) announceTargets() []string {
	targets := append([]string{}, s.config.Candidates...)
	for p := range s.node.RoutingTable.AllPeers() {
		targets = append(targets, p.Address())
	}

	self := s.node.Self.Address()
	return funk.Filter(funk.UniqString(targets), func(addr string) bool {
		return addr != "" && addr != self
	}).([]string)
}

// AnnounceOnce tells every target about us and reports how many accepted.
func (s *SyncService) AnnounceOnce(ctx context.Context) int {
	var accepted atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.Alpha)
	for _, addr := range s.announceTargets() {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.config.RPCTimeout)
			defer cancel()

			ok, err := s.node.Network.AddNode(callCtx, addr, s.node.Self)
			if err != nil {
				s.logPeerError(err, addr, "announce")
				return nil
			}
			if ok {
				accepted.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(accepted.Load())
}

// ReconcileOnce compares root fingerprints with every known peer and, where
// they differ, merges both ways. It returns how many peers were merged with.
func (s *SyncService) ReconcileOnce(ctx context.Context) int {
	var merged atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.Alpha)
	for peer := range s.node.RoutingTable.AllPeers() {
		g.Go(func() error {
			changed, err := s.reconcilePeer(ctx, peer)
			if err != nil {
				s.logPeerError(err, peer.Address(), "reconcile")
				return nil
			}
			if changed {
				merged.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(merged.Load())
}

func (s *SyncService) reconcilePeer(ctx context.Context, peer PeerRecord) (bool, error) {
	addr := peer.Address()

	callCtx, cancel := context.WithTimeout(ctx, s.config.RPCTimeout)
	remote, err := s.node.Network.GetTopLevelFingerprint(callCtx, addr)
	cancel()
	if err != nil {
		return false, err
	}
	s.node.RoutingTable.Touch(peer.ID)

	local, err := s.node.GetTopLevelFingerprint()
	if err != nil {
		return false, err
	}
	if local == remote {
		return false, nil
	}

	callCtx, cancel = context.WithTimeout(ctx, s.config.RPCTimeout)
	tree, err := s.node.Network.GetNamespace(callCtx, addr)
	cancel()
	if err != nil {
		return false, err
	}
	if err := s.node.MergeNamespace(tree); err != nil {
		return false, err
	}

	callCtx, cancel = context.WithTimeout(ctx, s.config.RPCTimeout)
	err = s.node.Network.MergeNamespace(callCtx, addr, s.node.GetNamespace())
	cancel()
	if err != nil {
		return false, err
	}

	s.logger.Debug().
		Str("peer", addr).
		Str("local", local.String()).
		Str("remote", remote.String()).
		Msg("namespaces reconciled")
	return true, nil
}

// RebalanceOnce runs the rebalancer, if one is installed.
func (s *SyncService) RebalanceOnce(ctx context.Context) {
	if s.config.Rebalancer == nil {
		return
	}
	if err := s.config.Rebalancer(ctx, s.node); err != nil {
		s.logger.Warn().Err(err).Msg("rebalance failed")
	}
}

func (s *SyncService) logPeerError(err error, addr, op string) {
	if errors.Is(err, ErrPeerUnreachable) {
		s.logger.Debug().Err(err).Str("peer", addr).Str("op", op).Msg("peer unreachable, skipping")
		return
	}
	s.logger.Warn().Err(err).Str("peer", addr).Str("op", op).Msg("peer sync failed")
}
