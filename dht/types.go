package dht

import (
	"net"
	"strconv"
	"time"

	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
)

// PeerRecord is a routing table entry. Two records are the same peer when
// their IDs match.
type PeerRecord struct {
	ID       id_tools.PeerID `msgpack:"id" json:"id"`
	Host     string          `msgpack:"host" json:"host"`
	Port     int             `msgpack:"port" json:"port"`
	LastSeen time.Time       `msgpack:"last_seen" json:"last_seen"`
}

func (p PeerRecord) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// AddResult says what Bucket.Add did with a record.
type AddResult int

const (
	Rejected AddResult = iota
	Inserted
	Refreshed
	Evicted
)

func (r AddResult) String() string {
	switch r {
	case Rejected:
		return "rejected"
	case Inserted:
		return "inserted"
	case Refreshed:
		return "refreshed"
	case Evicted:
		return "evicted"
	}
	return "unknown"
}
