package dht

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/kutluhann/decentralized-file-sharing-system/chunker"
	"github.com/kutluhann/decentralized-file-sharing-system/constants"
	"github.com/kutluhann/decentralized-file-sharing-system/filesystem"
	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
	"github.com/kutluhann/decentralized-file-sharing-system/storage"
)

// Node is one participant: its routing table, its replica of the shared
// namespace, the chunks it holds and the client it uses to reach peers.
// The table and the namespace each carry their own locks.
type Node struct {
	Self         PeerRecord
	RoutingTable *RoutingTable
	Namespace    *filesystem.Namespace
	Store        storage.ChunkStore
	Network      PeerClient
	PublicKey    string

	logger     zerolog.Logger
	rpcTimeout time.Duration
	now        func() time.Time
}

type NodeOption func(*nodeSettings)

type nodeSettings struct {
	store      storage.ChunkStore
	network    PeerClient
	logger     zerolog.Logger
	rpcTimeout time.Duration
	now        func() time.Time
	policy     filesystem.MergePolicy
	publicKey  string
	tableOpts  []TableOption
}

func WithStore(s storage.ChunkStore) NodeOption {
	return func(ns *nodeSettings) { ns.store = s }
}

func WithNetwork(c PeerClient) NodeOption {
	return func(ns *nodeSettings) { ns.network = c }
}

// WithPublicKey records the hex public key behind Self.ID for Status.
func WithPublicKey(hex string) NodeOption {
	return func(ns *nodeSettings) { ns.publicKey = hex }
}

func WithLogger(l zerolog.Logger) NodeOption {
	return func(ns *nodeSettings) { ns.logger = l }
}

func WithRPCTimeout(d time.Duration) NodeOption {
	return func(ns *nodeSettings) { ns.rpcTimeout = d }
}

func WithMergePolicy(p filesystem.MergePolicy) NodeOption {
	return func(ns *nodeSettings) { ns.policy = p }
}

// WithNodeClock sets the clock used for DateAdded and for the routing table.
func WithNodeClock(now func() time.Time) NodeOption {
	return func(ns *nodeSettings) {
		ns.now = now
		ns.tableOpts = append(ns.tableOpts, WithClock(now))
	}
}

func WithTableOptions(opts ...TableOption) NodeOption {
	return func(ns *nodeSettings) { ns.tableOpts = append(ns.tableOpts, opts...) }
}

func NewNode(self PeerRecord, opts ...NodeOption) *Node {
	settings := nodeSettings{
		logger:     zerolog.Nop(),
		rpcTimeout: constants.RPCTimeout,
		now:        time.Now,
		policy:     filesystem.LatestWins,
	}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.store == nil {
		settings.store = storage.NewMemoryStore()
	}
	if settings.network == nil {
		settings.network = offlineNetwork{}
	}

	logger := settings.logger.With().
		Str("component", "node").
		Str("peer_id", self.ID.Short()).
		Logger()

	return &Node{
		Self:         self,
		RoutingTable: NewRoutingTable(self.ID, settings.tableOpts...),
		Namespace:    filesystem.New(filesystem.WithMergePolicy(settings.policy)),
		Store:        settings.store,
		Network:      settings.network,
		PublicKey:    settings.publicKey,
		logger:       logger,
		rpcTimeout:   settings.rpcTimeout,
		now:          settings.now,
	}
}

// ---------------------------------------------------------
// SERVER HANDLERS
// Called by the transport when a peer messages us.
// ---------------------------------------------------------

// AddNode records the caller in our routing table. It only reports false
// when the request itself is unusable.
func (n *Node) AddNode(idHex, host string, port int) bool {
	result, err := n.RoutingTable.AddNodeHex(idHex, host, port)
	if err != nil {
		n.logger.Debug().Err(err).Str("host", host).Int("port", port).Msg("add_node refused")
		return false
	}
	if result != Refreshed {
		n.logger.Debug().Str("peer", idHex).Str("result", result.String()).Msg("add_node")
	}
	return true
}

func (n *Node) GetTopLevelFingerprint() (filesystem.Fingerprint, error) {
	return n.Namespace.Fingerprint("/")
}

func (n *Node) GetNamespace() *filesystem.Tree {
	return n.Namespace.Snapshot()
}

func (n *Node) MergeNamespace(tree *filesystem.Tree) error {
	return n.Namespace.Merge(tree)
}

func (n *Node) GetChunk(hash id_tools.PeerID) ([]byte, error) {
	return n.Store.GetChunk(hash)
}

// ---------------------------------------------------------
// FILE OPERATIONS
// ---------------------------------------------------------

// AddFile chunks data into the local store and publishes it at
// dirPath/name in the namespace. The record spreads to peers on the next
// reconcile.
func (n *Node) AddFile(dirPath, name string, data []byte) (*filesystem.FileRecord, error) {
	return n.AddFileFrom(dirPath, name, bytes.NewReader(data))
}

func (n *Node) AddFileFrom(dirPath, name string, r io.Reader) (*filesystem.FileRecord, error) {
	manifest, chunks, err := chunker.SplitReader(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	stored := 0
	for i, chunk := range chunks {
		hash := manifest.ChunkHashes[i]
		has, err := n.Store.HasChunk(hash)
		if err != nil {
			return nil, fmt.Errorf("check chunk %d of %s: %w", i, name, err)
		}
		if has {
			continue
		}
		if err := n.Store.PutChunk(hash, chunk); err != nil {
			return nil, fmt.Errorf("store chunk %d of %s: %w", i, name, err)
		}
		stored++
	}

	record := &filesystem.FileRecord{
		FileName:    name,
		FileHash:    manifest.FileHash,
		ChunkHashes: manifest.ChunkHashes,
		Size:        manifest.Size,
		DateAdded:   n.now().UTC(),
	}
	if err := n.Namespace.AddFile(dirPath, name, record); err != nil {
		return nil, err
	}

	n.logger.Info().
		Str("dir", dirPath).
		Str("name", name).
		Str("file_hash", manifest.FileHash.Short()).
		Int("chunks", len(chunks)).
		Int("new_chunks", stored).
		Msg("file added")
	return record, nil
}

// GetFile resolves path and rebuilds the file, pulling chunks we don't hold
// from peers.
func (n *Node) GetFile(ctx context.Context, filePath string) ([]byte, *filesystem.FileRecord, error) {
	record, err := n.Namespace.Get(filePath)
	if err != nil {
		return nil, nil, err
	}

	chunks := make([]chunker.Chunk, 0, len(record.ChunkHashes))
	for _, hash := range record.ChunkHashes {
		data, err := n.FetchChunk(ctx, hash)
		if err != nil {
			return nil, record, fmt.Errorf("%s: %w", filePath, err)
		}
		chunks = append(chunks, data)
	}

	data, err := chunker.Reassemble(record.ChunkHashes, chunks)
	if err != nil {
		return nil, record, fmt.Errorf("%s: %w", filePath, err)
	}
	if id_tools.HashBytes(data) != record.FileHash {
		return nil, record, fmt.Errorf("%s: %w", filePath, storage.ErrHashMismatch)
	}
	return data, record, nil
}

func (n *Node) ListFiles() []filesystem.FileEntry {
	return n.Namespace.Walk()
}

func (n *Node) RoutingTableInfo() []BucketInfo {
	return n.RoutingTable.Buckets()
}

// Status is a summary for operators.
type Status struct {
	ID          id_tools.PeerID        `json:"id"`
	PublicKey   string                 `json:"public_key,omitempty"`
	Address     string                 `json:"address"`
	Peers       int                    `json:"peers"`
	Files       int                    `json:"files"`
	Chunks      int                    `json:"chunks"`
	Fingerprint filesystem.Fingerprint `json:"fingerprint"`
	MergePolicy string                 `json:"merge_policy"`
}

func (n *Node) Status() (Status, error) {
	fp, err := n.GetTopLevelFingerprint()
	if err != nil {
		return Status{}, err
	}
	chunks, err := n.Store.ListChunks()
	if err != nil {
		return Status{}, err
	}
	return Status{
		ID:          n.Self.ID,
		PublicKey:   n.PublicKey,
		Address:     n.Self.Address(),
		Peers:       n.RoutingTable.Len(),
		Files:       len(n.ListFiles()),
		Chunks:      len(chunks),
		Fingerprint: fp,
		MergePolicy: n.Namespace.Policy().String(),
	}, nil
}
