package dht

import (
	"github.com/kutluhann/decentralized-file-sharing-system/filesystem"
	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
)

// Peer RPC payloads. Each route carries one request and one response body,
// msgpack encoded.

type AddNodeRequest struct {
	ID   string `msgpack:"id"`
	Host string `msgpack:"host"`
	Port int    `msgpack:"port"`
}

type AddNodeResponse struct {
	Success bool `msgpack:"success"`
}

type FingerprintResponse struct {
	Fingerprint filesystem.Fingerprint `msgpack:"fingerprint"`
}

// NamespaceMessage is the body of both get_namespace responses and
// merge_namespace requests.
type NamespaceMessage struct {
	Tree *filesystem.Tree `msgpack:"tree"`
}

type MergeNamespaceResponse struct {
	Ack bool `msgpack:"ack"`
}

type ChunkRequest struct {
	Hash id_tools.PeerID `msgpack:"hash"`
}

type ChunkResponse struct {
	Data []byte `msgpack:"data"`
}
