// Package chunker splits blobs into fixed-size content-addressed chunks and
// puts them back together.
package chunker

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"

	"github.com/kutluhann/decentralized-file-sharing-system/constants"
	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
)

var ErrMissingChunk = errors.New("missing chunk")

// Chunk is an immutable slice of file content, at most constants.ChunkSize bytes.
type Chunk []byte

func (c Chunk) Hash() id_tools.PeerID {
	return id_tools.HashBytes(c)
}

// Manifest is everything needed to rebuild a blob from its chunks.
type Manifest struct {
	FileHash    id_tools.PeerID   `msgpack:"file_hash" json:"file_hash"`
	ChunkHashes []id_tools.PeerID `msgpack:"chunk_hashes" json:"chunk_hashes"`
	Size        int64             `msgpack:"size" json:"size"`
}

// Split cuts data into consecutive chunks of at most constants.ChunkSize.
// Empty input yields no chunks and the hash of the empty string.
func Split(data []byte) (Manifest, []Chunk) {
	manifest := Manifest{
		FileHash:    id_tools.HashBytes(data),
		ChunkHashes: make([]id_tools.PeerID, 0, (len(data)+constants.ChunkSize-1)/constants.ChunkSize),
		Size:        int64(len(data)),
	}
	chunks := make([]Chunk, 0, cap(manifest.ChunkHashes))

	for start := 0; start < len(data); start += constants.ChunkSize {
		end := min(start+constants.ChunkSize, len(data))
		chunk := Chunk(bytes.Clone(data[start:end]))
		chunks = append(chunks, chunk)
		manifest.ChunkHashes = append(manifest.ChunkHashes, chunk.Hash())
	}
	return manifest, chunks
}

// SplitReader is Split for streams: it reads r to EOF one chunk at a time,
// hashing the whole stream alongside.
func SplitReader(r io.Reader) (Manifest, []Chunk, error) {
	whole := sha1.New()
	manifest := Manifest{ChunkHashes: []id_tools.PeerID{}}
	chunks := []Chunk{}

	buffer := make([]byte, constants.ChunkSize)
	for {
		n, err := io.ReadFull(r, buffer)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return Manifest{}, nil, fmt.Errorf("reading chunk %d: %w", len(chunks), err)
		}

		chunk := Chunk(bytes.Clone(buffer[:n]))
		whole.Write(chunk)
		chunks = append(chunks, chunk)
		manifest.ChunkHashes = append(manifest.ChunkHashes, chunk.Hash())
		manifest.Size += int64(n)

		if n < constants.ChunkSize {
			break
		}
	}

	copy(manifest.FileHash[:], whole.Sum(nil))
	return manifest, chunks, nil
}

// Reassemble concatenates chunks in the order given by hashes. The order of
// available does not matter; a hash with no matching chunk is an error.
func Reassemble(hashes []id_tools.PeerID, available []Chunk) ([]byte, error) {
	byHash := make(map[id_tools.PeerID]Chunk, len(available))
	size := 0
	for _, chunk := range available {
		byHash[chunk.Hash()] = chunk
	}

	ordered := make([]Chunk, 0, len(hashes))
	for i, hash := range hashes {
		chunk, ok := byHash[hash]
		if !ok {
			return nil, fmt.Errorf("%w: %s (index %d)", ErrMissingChunk, hash, i)
		}
		ordered = append(ordered, chunk)
		size += len(chunk)
	}

	out := make([]byte, 0, size)
	for _, chunk := range ordered {
		out = append(out, chunk...)
	}
	return out, nil
}

func (m Manifest) Reassemble(available []Chunk) ([]byte, error) {
	return Reassemble(m.ChunkHashes, available)
}
