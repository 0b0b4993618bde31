package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/rs/zerolog"

	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
)

const chunksBucket = "chunks"

// BoltStore keeps chunks in a single bolt bucket keyed by the raw hash.
type BoltStore struct {
	db     *bolt.DB
	logger zerolog.Logger
}

func OpenBoltStore(path string, logger zerolog.Logger) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	s := &BoltStore{db: db, logger: logger.With().Str("component", "bolt").Logger()}
	if err := s.ensureBucket(chunksBucket); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info().Str("path", path).Msg("BoltDB opened")
	return s, nil
}

func (s *BoltStore) ensureBucket(bucketName string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
}

func (s *BoltStore) PutChunk(hash id_tools.PeerID, data []byte) error {
	if err := verify(hash, data); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(chunksBucket))
		if b == nil {
			return fmt.Errorf("bucket '%s' not found", chunksBucket)
		}
		if err := b.Put(hash[:], data); err != nil {
			return err
		}
		s.logger.Debug().Str("hash", hash.String()).Int("size", len(data)).Msg("Stored chunk")
		return nil
	})
}

func (s *BoltStore) GetChunk(hash id_tools.PeerID) ([]byte, error) {
	var value []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(chunksBucket))
		if b == nil {
			return fmt.Errorf("bucket '%s' not found", chunksBucket)
		}

		v := b.Get(hash[:])
		if v == nil {
			return fmt.Errorf("%w: %s", ErrChunkNotFound, hash)
		}

		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *BoltStore) HasChunk(hash id_tools.PeerID) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(chunksBucket))
		if b == nil {
			return fmt.Errorf("bucket '%s' not found", chunksBucket)
		}
		found = b.Get(hash[:]) != nil
		return nil
	})
	return found, err
}

// ListChunks returns every stored hash in key order.
func (s *BoltStore) ListChunks() ([]id_tools.PeerID, error) {
	var hashes []id_tools.PeerID

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(chunksBucket))
		if b == nil {
			return fmt.Errorf("bucket '%s' not found", chunksBucket)
		}

		return b.ForEach(func(k []byte, v []byte) error {
			hash, err := id_tools.PeerIDFromBytes(k)
			if err != nil {
				return err
			}
			hashes = append(hashes, hash)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
