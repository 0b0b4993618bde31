package dht

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kutluhann/decentralized-file-sharing-system/chunker"
	"github.com/kutluhann/decentralized-file-sharing-system/constants"
	"github.com/kutluhann/decentralized-file-sharing-system/filesystem"
	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
	"github.com/kutluhann/decentralized-file-sharing-system/storage"
)

func newTestNode(t *testing.T, network *MemoryNetwork, port int, opts ...NodeOption) *Node {
	t.Helper()
	self := PeerRecord{ID: peerID(port), Host: "localhost", Port: port}
	opts = append([]NodeOption{WithNetwork(network), WithRPCTimeout(time.Second)}, opts...)
	node := NewNode(self, opts...)
	network.Register(node)
	return node
}

func pattern(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*7 + i/1024)
	}
	return data
}

func TestNodeAddAndGetFileLocally(t *testing.T) {
	node := newTestNode(t, NewMemoryNetwork(), 8000)
	data := pattern(constants.ChunkSize*2 + 100)

	record, err := node.AddFile("/docs", "report.bin", data)
	require.NoError(t, err)
	assert.Len(t, record.ChunkHashes, 3)
	assert.Equal(t, id_tools.HashBytes(data), record.FileHash)

	got, gotRecord, err := node.GetFile(context.Background(), "/docs/report.bin")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
	assert.Equal(t, record.FileHash, gotRecord.FileHash)

	files := node.ListFiles()
	require.Len(t, files, 1)
	assert.Equal(t, "/docs/report.bin", files[0].Path)
}

func TestNodeGetFileErrors(t *testing.T) {
	node := newTestNode(t, NewMemoryNetwork(), 8000)
	_, err := node.AddFile("/docs", "a.txt", []byte("a"))
	require.NoError(t, err)

	_, _, err = node.GetFile(context.Background(), "/docs/missing.txt")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)

	_, _, err = node.GetFile(context.Background(), "/docs")
	assert.ErrorIs(t, err, filesystem.ErrNotAFile)
}

func TestNodeFetchesMissingChunksFromPeers(t *testing.T) {
	network := NewMemoryNetwork()
	a := newTestNode(t, network, 8000)
	b := newTestNode(t, network, 8001)
	data := pattern(constants.ChunkSize + 10)

	_, err := a.AddFile("/", "shared.bin", data)
	require.NoError(t, err)
	require.NoError(t, b.MergeNamespace(a.GetNamespace()))
	require.True(t, b.AddNode(a.Self.ID.String(), a.Self.Host, a.Self.Port))

	got, _, err := b.GetFile(context.Background(), "/shared.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Chunks are now cached, so a takes no part in the second read.
	network.Unregister(a.Self.Address())
	got, _, err = b.GetFile(context.Background(), "/shared.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestNodeMissingChunkWhenNoPeerHasIt(t *testing.T) {
	network := NewMemoryNetwork()
	a := newTestNode(t, network, 8000)
	b := newTestNode(t, network, 8001)

	_, err := a.AddFile("/", "gone.bin", []byte("only a has this"))
	require.NoError(t, err)
	require.NoError(t, b.MergeNamespace(a.GetNamespace()))
	b.AddNode(a.Self.ID.String(), a.Self.Host, a.Self.Port)
	network.Unregister(a.Self.Address())

	_, _, err = b.GetFile(context.Background(), "/gone.bin")
	assert.ErrorIs(t, err, chunker.ErrMissingChunk)
}

// lyingClient serves the wrong bytes for every chunk.
type lyingClient struct{ *MemoryNetwork }

func (lyingClient) GetChunk(context.Context, string, id_tools.PeerID) ([]byte, error) {
	return []byte("not what you asked for"), nil
}

func TestNodeRejectsCorruptChunks(t *testing.T) {
	network := NewMemoryNetwork()
	a := newTestNode(t, network, 8000)
	b := newTestNode(t, network, 8001, WithNetwork(lyingClient{network}))

	_, err := a.AddFile("/", "x.bin", []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, b.MergeNamespace(a.GetNamespace()))
	b.AddNode(a.Self.ID.String(), a.Self.Host, a.Self.Port)

	_, _, err = b.GetFile(context.Background(), "/x.bin")
	assert.ErrorIs(t, err, chunker.ErrMissingChunk)

	chunks, err := b.Store.ListChunks()
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestNodeWithoutNetworkTreatsPeersAsUnreachable(t *testing.T) {
	source := NewNode(PeerRecord{ID: peerID(8000), Host: "localhost", Port: 8000})
	_, err := source.AddFile("/", "x", []byte("only the source has this"))
	require.NoError(t, err)

	node := NewNode(PeerRecord{ID: peerID(8001), Host: "localhost", Port: 8001})
	require.NoError(t, node.MergeNamespace(source.GetNamespace()))
	require.True(t, node.AddNode(source.Self.ID.String(), source.Self.Host, source.Self.Port))

	_, err = node.Network.GetChunk(context.Background(), source.Self.Address(), peerID(1))
	assert.ErrorIs(t, err, ErrPeerUnreachable)

	_, _, err = node.GetFile(context.Background(), "/x")
	assert.ErrorIs(t, err, chunker.ErrMissingChunk)
}

// countingStore counts writes that reach the wrapped store.
type countingStore struct {
	storage.ChunkStore
	puts atomic.Int32
}

func (c *countingStore) PutChunk(hash id_tools.PeerID, data []byte) error {
	c.puts.Add(1)
	return c.ChunkStore.PutChunk(hash, data)
}

func TestNodeAddFileSkipsStoredChunks(t *testing.T) {
	store := &countingStore{ChunkStore: storage.NewMemoryStore()}
	node := newTestNode(t, NewMemoryNetwork(), 8000, WithStore(store))
	data := pattern(constants.ChunkSize + 10)

	_, err := node.AddFile("/", "first.bin", data)
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.puts.Load())

	_, err = node.AddFile("/copies", "second.bin", data)
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.puts.Load())

	got, _, err := node.GetFile(context.Background(), "/copies/second.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestNodeAddNodeHandler(t *testing.T) {
	node := newTestNode(t, NewMemoryNetwork(), 8000)

	assert.True(t, node.AddNode(peerID(1).String(), "localhost", 8001))
	assert.True(t, node.AddNode(peerID(1).String(), "localhost", 8001))
	assert.False(t, node.AddNode("not-an-id", "localhost", 8002))
	assert.Equal(t, 1, node.RoutingTable.Len())
}

func TestNodeStatus(t *testing.T) {
	node := newTestNode(t, NewMemoryNetwork(), 8000)
	_, err := node.AddFile("/", "a.txt", []byte("hello"))
	require.NoError(t, err)

	status, err := node.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, status.Files)
	assert.Equal(t, 1, status.Chunks)
	assert.Equal(t, "localhost:8000", status.Address)
	assert.Equal(t, filesystem.LatestWins.String(), status.MergePolicy)
	assert.Empty(t, status.PublicKey)

	keyed := newTestNode(t, NewMemoryNetwork(), 8001, WithPublicKey("02abcdef"))
	status, err = keyed.Status()
	require.NoError(t, err)
	assert.Equal(t, "02abcdef", status.PublicKey)
}
