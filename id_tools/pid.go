package id_tools

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ecies "github.com/ecies/go/v2"

	"github.com/kutluhann/decentralized-file-sharing-system/constants"
)

var ErrInvalidIdentifier = errors.New("invalid identifier")

// PrivateKeyFilePath is the path to the private key file
var PrivateKeyFilePath = constants.PrivateKeyFile

// SetDataDirectory sets the data directory for storing private keys
func SetDataDirectory(dir string) {
	PrivateKeyFilePath = filepath.Join(dir, constants.PrivateKeyFile)
}

// PeerID is a 160-bit identifier shared by peers and content.
type PeerID [constants.KeySizeBytes]byte

func (id PeerID) String() string {
	return hex.EncodeToString(id[:])
}

// Short is the first 16 hex characters, enough for log lines.
func (id PeerID) Short() string {
	return id.String()[:16]
}

func (id PeerID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *PeerID) UnmarshalText(text []byte) error {
	parsed, err := ParsePeerID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParsePeerID decodes a 40 character hex string.
func ParsePeerID(s string) (PeerID, error) {
	var id PeerID
	s = strings.TrimSpace(s)
	if len(s) != hex.EncodedLen(len(id)) {
		return id, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidIdentifier, hex.EncodedLen(len(id)), len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return PeerID{}, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}
	return id, nil
}

// PeerIDFromBytes copies a raw identifier, rejecting the wrong length.
func PeerIDFromBytes(b []byte) (PeerID, error) {
	var id PeerID
	if len(b) != len(id) {
		return id, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidIdentifier, len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// HashBytes is the content address of data.
func HashBytes(data []byte) PeerID {
	return PeerID(sha1.Sum(data))
}

func GenerateNewPID() (*ecies.PrivateKey, PeerID, error) {
	privateKey, err := ecies.GenerateKey()
	if err != nil {
		return nil, PeerID{}, fmt.Errorf("generating identity key: %w", err)
	}
	return privateKey, GeneratePeerIDFromPublicKey(privateKey.PublicKey), nil
}

func SavePrivateKey(key *ecies.PrivateKey) error {
	if err := os.MkdirAll(filepath.Dir(PrivateKeyFilePath), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(PrivateKeyFilePath, []byte(key.Hex()), 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	return nil
}

func LoadPrivateKey() (*ecies.PrivateKey, PeerID, error) {
	raw, err := os.ReadFile(PrivateKeyFilePath)
	if err != nil {
		return nil, PeerID{}, fmt.Errorf("reading private key: %w", err)
	}
	privateKey, err := ecies.NewPrivateKeyFromHex(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, PeerID{}, fmt.Errorf("parsing private key: %w", err)
	}
	return privateKey, GeneratePeerIDFromPublicKey(privateKey.PublicKey), nil
}

// LoadOrGeneratePID loads the identity from PrivateKeyFilePath, creating and
// saving a fresh one when the file does not exist.
func LoadOrGeneratePID() (*ecies.PrivateKey, PeerID, error) {
	if _, err := os.Stat(PrivateKeyFilePath); err == nil {
		return LoadPrivateKey()
	}
	privateKey, peerID, err := GenerateNewPID()
	if err != nil {
		return nil, PeerID{}, err
	}
	if err := SavePrivateKey(privateKey); err != nil {
		return nil, PeerID{}, err
	}
	return privateKey, peerID, nil
}

func GeneratePeerIDFromPublicKey(pubKey *ecies.PublicKey) PeerID {
	// append the compressed key with the system salt
	dataToHash := append(pubKey.Bytes(true), []byte(constants.Salt)...)
	return HashBytes(dataToHash)
}

// It is to check whether the other peer's public key matches its peer ID
func CheckPublicKeyMatchesPeerID(pubKey *ecies.PublicKey, pid PeerID) bool {
	return GeneratePeerIDFromPublicKey(pubKey) == pid
}

// VerifyIdentity checks the key derives peerID and that the key pair can
// open a message sealed to its own public key.
func VerifyIdentity(privateKey *ecies.PrivateKey, peerID PeerID) error {
	if !CheckPublicKeyMatchesPeerID(privateKey.PublicKey, peerID) {
		return errors.New("public key does not match peer ID")
	}

	message := []byte(rand.Text())
	sealed, err := ecies.Encrypt(privateKey.PublicKey, message)
	if err != nil {
		return fmt.Errorf("sealing challenge: %w", err)
	}
	opened, err := ecies.Decrypt(privateKey, sealed)
	if err != nil {
		return fmt.Errorf("opening challenge: %w", err)
	}
	if string(opened) != string(message) {
		return errors.New("challenge round trip mismatch")
	}
	return nil
}
