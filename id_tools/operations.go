package id_tools

import (
	"bytes"
	"math/bits"

	"github.com/kutluhann/decentralized-file-sharing-system/constants"
)

// Xor returns the XOR distance between two identifiers.
func (id PeerID) Xor(other PeerID) PeerID {
	var result PeerID
	for i := 0; i < len(id); i++ {
		result[i] = id[i] ^ other[i]
	}
	return result
}

// PrefixLen counts the leading bits id and other have in common.
func (id PeerID) PrefixLen(other PeerID) int {
	for i := 0; i < len(id); i++ {
		x := id[i] ^ other[i]

		if x != 0 {
			return i*8 + bits.LeadingZeros8(x)
		}
	}
	return len(id) * 8
}

// BitLen is the position of the highest set bit plus one, i.e. the bit
// length of the identifier read as a big-endian unsigned integer.
func (id PeerID) BitLen() int {
	for i := 0; i < len(id); i++ {
		if id[i] != 0 {
			return (len(id)-i)*8 - bits.LeadingZeros8(id[i])
		}
	}
	return 0
}

// BucketIndex maps a distance onto the bucket covering [2^i, 2^(i+1)).
// Distance zero is our own id and returns -1.
func (id PeerID) BucketIndex() int {
	return id.BitLen() - 1
}

// PowerOfTwo returns the identifier whose only set bit is bit i (counted from
// the least significant bit).
func PowerOfTwo(i int) PeerID {
	var result PeerID
	if i < 0 || i >= constants.KeySizeBytes*8 {
		return result
	}
	result[len(result)-1-i/8] = 1 << (i % 8)
	return result
}

func (id PeerID) Compare(other PeerID) int {
	return bytes.Compare(id[:], other[:])
}

func (id PeerID) Less(other PeerID) bool {
	return id.Compare(other) < 0
}

func (id PeerID) IsZero() bool {
	return id == PeerID{}
}
