package filesystem

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/kutluhann/decentralized-file-sharing-system/constants"
)

// Fingerprint is the aggregate digest of a subtree. Two subtrees with the
// same entries have the same fingerprint regardless of insertion order.
type Fingerprint [constants.KeySizeBytes]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Fingerprint) UnmarshalText(text []byte) error {
	if len(text) != hex.EncodedLen(len(f)) {
		return fmt.Errorf("fingerprint: expected %d hex characters, got %d", hex.EncodedLen(len(f)), len(text))
	}
	_, err := hex.Decode(f[:], text)
	return err
}

const (
	kindFile byte = 'f'
	kindDir  byte = 'd'
)

// fingerprint of a file is its content hash. A directory hashes its entries
// in name order as (kind, len(name), name, child fingerprint).
func (t *Tree) fingerprint() Fingerprint {
	if !t.IsDir() {
		return Fingerprint(t.File.FileHash)
	}

	h, err := blake2b.New(len(Fingerprint{}), nil)
	if err != nil {
		panic(err) // unreachable for sizes 1..64
	}
	var lenBuf [binary.MaxVarintLen64]byte
	for _, name := range t.sortedNames() {
		child := t.Children[name]
		kind := kindDir
		if !child.IsDir() {
			kind = kindFile
		}
		childFP := child.fingerprint()

		h.Write([]byte{kind})
		h.Write(lenBuf[:binary.PutUvarint(lenBuf[:], uint64(len(name)))])
		h.Write([]byte(name))
		h.Write(childFP[:])
	}

	var out Fingerprint
	copy(out[:], h.Sum(nil))
	return out
}

// Fingerprint computes the aggregate for the subtree rooted at p.
func (ns *Namespace) Fingerprint(p string) (Fingerprint, error) {
	parts, err := SplitPath(p)
	if err != nil {
		return Fingerprint{}, err
	}

	ns.mu.RLock()
	defer ns.mu.RUnlock()

	node, err := ns.resolve(parts)
	if err != nil {
		return Fingerprint{}, err
	}
	return node.fingerprint(), nil
}

// Fingerprint of a detached tree, e.g. one received from a peer.
func (t *Tree) Fingerprint() Fingerprint {
	if t == nil {
		return NewDirectory().fingerprint()
	}
	return t.fingerprint()
}
