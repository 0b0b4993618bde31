package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	ecies "github.com/ecies/go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kutluhann/decentralized-file-sharing-system/filesystem"
)

var envKeys = []string{
	"DFS_HOST", "DFS_PORT", "DFS_DATA_DIR", "DFS_PEERS",
	"DFS_ANNOUNCE_INTERVAL", "DFS_RECONCILE_INTERVAL", "DFS_REBALANCE_INTERVAL",
	"DFS_RPC_TIMEOUT", "DFS_RPC_RATE", "DFS_MAX_CONNS", "DFS_MERGE_POLICY", "LOG_LEVEL",
}

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, "localhost:8000", c.Address())
	assert.Len(t, c.Peers, 10)
	assert.Equal(t, "localhost:8009", c.Peers[9])
	assert.Equal(t, time.Second, c.AnnounceInterval)
	assert.Equal(t, 10*time.Second, c.RebalanceInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DFS_HOST", "10.0.0.5")
	t.Setenv("DFS_PORT", "9100")
	t.Setenv("DFS_PEERS", " 10.0.0.6:9100, ,10.0.0.7:9100,10.0.0.6:9100 ")
	t.Setenv("DFS_RECONCILE_INTERVAL", "250ms")
	t.Setenv("DFS_RPC_RATE", "12.5")
	t.Setenv("DFS_MERGE_POLICY", "self-wins")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:9100", c.Address())
	assert.Equal(t, []string{"10.0.0.6:9100", "10.0.0.7:9100"}, c.Peers)
	assert.Equal(t, 250*time.Millisecond, c.ReconcileInterval)
	assert.Equal(t, 12.5, c.RPCRate)
	assert.Equal(t, filesystem.SelfWins, c.MergePolicy)
	assert.Equal(t, zerolog.DebugLevel, c.LogLevel)
}

func TestLoadEmptyPeerListMeansNoPeers(t *testing.T) {
	clearEnv(t)
	t.Setenv("DFS_PEERS", "")

	c, err := Load()
	require.NoError(t, err)
	assert.Empty(t, c.Peers)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), "node.env")
	require.NoError(t, os.WriteFile(file, []byte("DFS_PORT=8123\nDFS_DATA_DIR=/var/lib/dfs\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DFS_PORT")
		os.Unsetenv("DFS_DATA_DIR")
	})

	c, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 8123, c.Port)
	assert.Equal(t, "/var/lib/dfs", c.DataDir)
}

func TestLoadRejectsBadValues(t *testing.T) {
	for key, value := range map[string]string{
		"DFS_PORT":              "eighty",
		"DFS_ANNOUNCE_INTERVAL": "-1s",
		"DFS_RPC_TIMEOUT":       "soon",
		"DFS_MERGE_POLICY":      "coin-flip",
		"LOG_LEVEL":             "loud",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParsePeers(t *testing.T) {
	assert.Equal(t, []string{"a:1", "b:2"}, ParsePeers("a:1,b:2,a:1"))
	assert.Empty(t, ParsePeers(" , "))
}

func TestPrivateKeyAccessors(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.HasPrivateKey())
	assert.Nil(t, cfg.GetPrivateKey())

	key, err := ecies.GenerateKey()
	require.NoError(t, err)
	cfg.SetPrivateKey(key)
	assert.True(t, cfg.HasPrivateKey())
	assert.Equal(t, key.PublicKey.Hex(true), cfg.GetPrivateKey().PublicKey.Hex(true))
}
