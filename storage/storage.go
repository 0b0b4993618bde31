// Package storage keeps chunk contents addressed by their hash.
package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
)

var (
	ErrChunkNotFound = errors.New("chunk not found")
	ErrHashMismatch  = errors.New("chunk content does not match hash")
)

// ChunkStore is a content-addressed blob store.
type ChunkStore interface {
	PutChunk(hash id_tools.PeerID, data []byte) error
	GetChunk(hash id_tools.PeerID) ([]byte, error)
	HasChunk(hash id_tools.PeerID) (bool, error)
	ListChunks() ([]id_tools.PeerID, error)
	Close() error
}

func verify(hash id_tools.PeerID, data []byte) error {
	if got := id_tools.HashBytes(data); got != hash {
		return fmt.Errorf("%w: want %s, got %s", ErrHashMismatch, hash, got)
	}
	return nil
}

// MemoryStore is a ChunkStore held in a map.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[id_tools.PeerID][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[id_tools.PeerID][]byte)}
}

func (m *MemoryStore) PutChunk(hash id_tools.PeerID, data []byte) error {
	if err := verify(hash, data); err != nil {
		return err
	}
	valueCopy := make([]byte, len(data))
	copy(valueCopy, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[hash] = valueCopy
	return nil
}

func (m *MemoryStore) GetChunk(hash id_tools.PeerID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.chunks[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChunkNotFound, hash)
	}
	value := make([]byte, len(v))
	copy(value, v)
	return value, nil
}

func (m *MemoryStore) HasChunk(hash id_tools.PeerID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.chunks[hash]
	return ok, nil
}

func (m *MemoryStore) ListChunks() ([]id_tools.PeerID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hashes := make([]id_tools.PeerID, 0, len(m.chunks))
	for h := range m.chunks {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Less(hashes[j]) })
	return hashes, nil
}

func (m *MemoryStore) Close() error { return nil }
