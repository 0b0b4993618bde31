package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	ecies "github.com/ecies/go/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/thoas/go-funk"

	"github.com/kutluhann/decentralized-file-sharing-system/constants"
	"github.com/kutluhann/decentralized-file-sharing-system/filesystem"
)

// Config is the runtime configuration of a node: where it listens, who it
// talks to, how often, and the identity key it signs in with.
type Config struct {
	Host    string
	Port    int
	DataDir string
	Peers   []string

	AnnounceInterval  time.Duration
	ReconcileInterval time.Duration
	RebalanceInterval time.Duration
	RPCTimeout        time.Duration
	RPCRate           float64
	MaxConns          int

	MergePolicy filesystem.MergePolicy
	LogLevel    zerolog.Level

	privateKey *ecies.PrivateKey
}

var (
	config     *Config
	configOnce sync.Once
)

// Default is the configuration with nothing set.
func Default() *Config {
	return &Config{
		Host:              "localhost",
		Port:              constants.DefaultBasePort,
		DataDir:           ".",
		Peers:             DefaultPeers(),
		AnnounceInterval:  constants.AnnounceInterval,
		ReconcileInterval: constants.ReconcileInterval,
		RebalanceInterval: constants.RebalanceInterval,
		RPCTimeout:        constants.RPCTimeout,
		RPCRate:           100,
		MaxConns:          256,
		MergePolicy:       filesystem.LatestWins,
		LogLevel:          zerolog.InfoLevel,
	}
}

// DefaultPeers is the local development topology, localhost:8000..8009.
func DefaultPeers() []string {
	peers := make([]string, 0, constants.DefaultPeerCount)
	for i := 0; i < constants.DefaultPeerCount; i++ {
		peers = append(peers, net.JoinHostPort("localhost", strconv.Itoa(constants.DefaultBasePort+i)))
	}
	return peers
}

// ParsePeers splits a comma separated address list, dropping blanks and
// duplicates.
func ParsePeers(raw string) []string {
	trimmed := funk.Map(strings.Split(raw, ","), strings.TrimSpace).([]string)
	nonEmpty := funk.Filter(trimmed, func(p string) bool { return p != "" }).([]string)
	return funk.UniqString(nonEmpty)
}

// Load reads an optional .env file followed by the environment. Variables
// already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		godotenv.Load()
	} else {
		for _, f := range envFiles {
			if err := godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}

	c := Default()
	var err error

	if v := os.Getenv("DFS_HOST"); v != "" {
		c.Host = v
	}
	if c.Port, err = intEnv("DFS_PORT", c.Port); err != nil {
		return nil, err
	}
	if v := os.Getenv("DFS_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v, ok := os.LookupEnv("DFS_PEERS"); ok {
		c.Peers = ParsePeers(v)
	}
	if c.AnnounceInterval, err = durationEnv("DFS_ANNOUNCE_INTERVAL", c.AnnounceInterval); err != nil {
		return nil, err
	}
	if c.ReconcileInterval, err = durationEnv("DFS_RECONCILE_INTERVAL", c.ReconcileInterval); err != nil {
		return nil, err
	}
	if c.RebalanceInterval, err = durationEnv("DFS_REBALANCE_INTERVAL", c.RebalanceInterval); err != nil {
		return nil, err
	}
	if c.RPCTimeout, err = durationEnv("DFS_RPC_TIMEOUT", c.RPCTimeout); err != nil {
		return nil, err
	}
	if v := os.Getenv("DFS_RPC_RATE"); v != "" {
		if c.RPCRate, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("DFS_RPC_RATE: %w", err)
		}
	}
	if c.MaxConns, err = intEnv("DFS_MAX_CONNS", c.MaxConns); err != nil {
		return nil, err
	}
	if c.MergePolicy, err = filesystem.ParseMergePolicy(os.Getenv("DFS_MERGE_POLICY")); err != nil {
		return nil, fmt.Errorf("DFS_MERGE_POLICY: %w", err)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if c.LogLevel, err = zerolog.ParseLevel(v); err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}

	return c, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, d)
	}
	return d, nil
}

// Init loads the process-wide configuration once. A broken environment is
// reported and the defaults are used instead.
func Init() *Config {
	configOnce.Do(func() {
		c, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("invalid configuration, using defaults")
			c = Default()
		}
		config = c
	})
	return config
}

func GetConfig() *Config {
	if config == nil {
		return Init()
	}
	return config
}

// Address is host:port of this node.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) SetPrivateKey(key *ecies.PrivateKey) {
	c.privateKey = key
}

func (c *Config) GetPrivateKey() *ecies.PrivateKey {
	return c.privateKey
}

func (c *Config) HasPrivateKey() bool {
	return c.privateKey != nil
}
