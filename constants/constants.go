package constants

import "time"

const (
	Salt         = "dfss-ulak-bibliotheca"
	KeySizeBytes = 20 // SHA-1, 160-bit ID space
	K            = 20 // bucket capacity
	Alpha        = 3  // Concurrency parameter

	ChunkSize   = 256 * 1024
	MaxLastSeen = 10 * time.Second

	AnnounceInterval  = 1 * time.Second
	ReconcileInterval = 1 * time.Second
	RebalanceInterval = 10 * time.Second
	RPCTimeout        = 2 * time.Second

	// Dev topology used when no peers are configured: localhost:8000..8009
	DefaultBasePort  = 8000
	DefaultPeerCount = 10

	PrivateKeyFile = "private_key.hex"
	ChunkDBFile    = "chunks.db"
)
