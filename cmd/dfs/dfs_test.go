package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kutluhann/decentralized-file-sharing-system/api"
	"github.com/kutluhann/decentralized-file-sharing-system/dht"
	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestPutListGet(t *testing.T) {
	node := dht.NewNode(dht.PeerRecord{ID: id_tools.HashBytes([]byte("cli")), Host: "127.0.0.1", Port: 8000})
	srv := httptest.NewServer(api.NewHTTPServer(node, api.ServerConfig{}, zerolog.Nop()).Handler())
	defer srv.Close()
	addr := srv.Listener.Addr().String()

	dir := t.TempDir()
	local := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(local, []byte("remember the milk"), 0o644))

	out := runCLI(t, "--node", addr, "put", "--file", local, "--dir", "/home/me")
	assert.Contains(t, out, "added notes.txt")

	out = runCLI(t, "--node", addr, "ls")
	assert.Contains(t, out, "/home/me/notes.txt")

	target := filepath.Join(dir, "copy.txt")
	runCLI(t, "--node", addr, "get", "--path", "/home/me/notes.txt", "--out", target)
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", string(got))

	out = runCLI(t, "--node", addr, "status")
	assert.Contains(t, out, "files:        1")

	out = runCLI(t, "--node", addr, "table")
	assert.Contains(t, out, node.Self.ID.String())
}
