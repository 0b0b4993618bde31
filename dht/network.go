package dht

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kutluhann/decentralized-file-sharing-system/filesystem"
	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
)

// ErrPeerUnreachable covers every transport failure: refused connections,
// timeouts and peers that answer with garbage. Callers treat it as the peer
// being absent for now.
var ErrPeerUnreachable = errors.New("peer unreachable")

// PeerClient is the outbound side of the peer protocol. Sync and file
// retrieval only use these methods; they don't care whether the peer lives
// behind HTTP or in the same process.
type PeerClient interface {
	AddNode(ctx context.Context, addr string, self PeerRecord) (bool, error)
	GetTopLevelFingerprint(ctx context.Context, addr string) (filesystem.Fingerprint, error)
	GetNamespace(ctx context.Context, addr string) (*filesystem.Tree, error)
	MergeNamespace(ctx context.Context, addr string, tree *filesystem.Tree) error
	GetChunk(ctx context.Context, addr string, hash id_tools.PeerID) ([]byte, error)
}

// offlineNetwork is the client of a node built without a transport. Every
// peer is unreachable.
type offlineNetwork struct{}

func (offlineNetwork) unreachable(addr string) error {
	return fmt.Errorf("%w: %s: no transport", ErrPeerUnreachable, addr)
}

func (o offlineNetwork) AddNode(_ context.Context, addr string, _ PeerRecord) (bool, error) {
	return false, o.unreachable(addr)
}

func (o offlineNetwork) GetTopLevelFingerprint(_ context.Context, addr string) (filesystem.Fingerprint, error) {
	return filesystem.Fingerprint{}, o.unreachable(addr)
}

func (o offlineNetwork) GetNamespace(_ context.Context, addr string) (*filesystem.Tree, error) {
	return nil, o.unreachable(addr)
}

func (o offlineNetwork) MergeNamespace(_ context.Context, addr string, _ *filesystem.Tree) error {
	return o.unreachable(addr)
}

func (o offlineNetwork) GetChunk(_ context.Context, addr string, _ id_tools.PeerID) ([]byte, error) {
	return nil, o.unreachable(addr)
}

// MemoryNetwork routes calls straight to registered nodes by address. It is
// the in-process stand-in for the HTTP transport.
type MemoryNetwork struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{nodes: make(map[string]*Node)}
}

func (mn *MemoryNetwork) Register(node *Node) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.nodes[node.Self.Address()] = node
}

// Unregister simulates a crashed peer.
func (mn *MemoryNetwork) Unregister(addr string) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	delete(mn.nodes, addr)
}

func (mn *MemoryNetwork) lookup(ctx context.Context, addr string) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPeerUnreachable, addr, err)
	}
	mn.mu.RLock()
	defer mn.mu.RUnlock()
	node, ok := mn.nodes[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPeerUnreachable, addr)
	}
	return node, nil
}

func (mn *MemoryNetwork) AddNode(ctx context.Context, addr string, self PeerRecord) (bool, error) {
	node, err := mn.lookup(ctx, addr)
	if err != nil {
		return false, err
	}
	return node.AddNode(self.ID.String(), self.Host, self.Port), nil
}

func (mn *MemoryNetwork) GetTopLevelFingerprint(ctx context.Context, addr string) (filesystem.Fingerprint, error) {
	node, err := mn.lookup(ctx, addr)
	if err != nil {
		return filesystem.Fingerprint{}, err
	}
	return node.GetTopLevelFingerprint()
}

func (mn *MemoryNetwork) GetNamespace(ctx context.Context, addr string) (*filesystem.Tree, error) {
	node, err := mn.lookup(ctx, addr)
	if err != nil {
		return nil, err
	}
	return node.GetNamespace(), nil
}

func (mn *MemoryNetwork) MergeNamespace(ctx context.Context, addr string, tree *filesystem.Tree) error {
	node, err := mn.lookup(ctx, addr)
	if err != nil {
		return err
	}
	// Copy so the receiver never shares memory with the sender.
	return node.MergeNamespace(tree.Clone())
}

func (mn *MemoryNetwork) GetChunk(ctx context.Context, addr string, hash id_tools.PeerID) ([]byte, error) {
	node, err := mn.lookup(ctx, addr)
	if err != nil {
		return nil, err
	}
	return node.GetChunk(hash)
}
