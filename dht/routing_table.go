package dht

import (
	"iter"
	"slices"
	"time"

	"github.com/kutluhann/decentralized-file-sharing-system/constants"
	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
)

const bucketCount = constants.KeySizeBytes * 8

// RoutingTable holds 160 k-buckets.
// Bucket i covers peers at distance [2^i, 2^(i+1)) from self:
//   - Bucket 0:   Distance [2^0, 2^1)     (Closest nodes)
//   - Bucket 159: Distance [2^159, 2^160) (Furthest nodes)
//
// The bucket array never changes after construction; each bucket guards its
// own contacts.
type RoutingTable struct {
	self    id_tools.PeerID
	buckets [bucketCount]*Bucket
}

type tableSettings struct {
	capacity    int
	maxLastSeen time.Duration
	now         func() time.Time
}

type TableOption func(*tableSettings)

func WithBucketCapacity(k int) TableOption {
	return func(s *tableSettings) { s.capacity = k }
}

func WithMaxLastSeen(d time.Duration) TableOption {
	return func(s *tableSettings) { s.maxLastSeen = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TableOption {
	return func(s *tableSettings) { s.now = now }
}

func NewRoutingTable(self id_tools.PeerID, opts ...TableOption) *RoutingTable {
	settings := tableSettings{
		capacity:    constants.K,
		maxLastSeen: constants.MaxLastSeen,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	rt := &RoutingTable{self: self}
	for i := 0; i < bucketCount; i++ {
		rt.buckets[i] = NewBucket(self, i, settings.capacity, settings.maxLastSeen, settings.now)
	}
	return rt
}

func (rt *RoutingTable) Self() id_tools.PeerID { return rt.self }

// GetBucketIndex returns the bucket for id, or -1 for our own id. Sharing
// a longer prefix with self means a smaller distance and a lower bucket.
func (rt *RoutingTable) GetBucketIndex(id id_tools.PeerID) int {
	return bucketCount - 1 - rt.self.PrefixLen(id)
}

func (rt *RoutingTable) bucketFor(id id_tools.PeerID) *Bucket {
	index := rt.GetBucketIndex(id)
	if index < 0 {
		return nil
	}
	return rt.buckets[index]
}

// AddNode files a peer under the bucket for its distance from self. Our own
// id is never inserted.
func (rt *RoutingTable) AddNode(id id_tools.PeerID, host string, port int) AddResult {
	bucket := rt.bucketFor(id)
	if bucket == nil {
		return Rejected
	}
	return bucket.Add(PeerRecord{ID: id, Host: host, Port: port})
}

// AddNodeHex is AddNode for an id in its wire form.
func (rt *RoutingTable) AddNodeHex(idHex, host string, port int) (AddResult, error) {
	id, err := id_tools.ParsePeerID(idHex)
	if err != nil {
		return Rejected, err
	}
	return rt.AddNode(id, host, port), nil
}

// Touch marks a known peer as just seen.
func (rt *RoutingTable) Touch(id id_tools.PeerID) bool {
	bucket := rt.bucketFor(id)
	return bucket != nil && bucket.Touch(id)
}

func (rt *RoutingTable) Remove(id id_tools.PeerID) bool {
	bucket := rt.bucketFor(id)
	return bucket != nil && bucket.Remove(id)
}

func (rt *RoutingTable) Contains(id id_tools.PeerID) bool {
	bucket := rt.bucketFor(id)
	return bucket != nil && bucket.Contains(id)
}

// FindClosestNodes returns up to count peers ordered by distance to target.
// It starts at target's bucket and spills over to the neighbouring buckets
// until enough candidates are collected.
func (rt *RoutingTable) FindClosestNodes(target id_tools.PeerID, count int) []PeerRecord {
	if count <= 0 {
		return nil
	}

	index := max(rt.GetBucketIndex(target), 0)
	candidates := rt.buckets[index].GetContacts()

	for i := 1; len(candidates) < count && (index-i >= 0 || index+i < bucketCount); i++ {
		if index-i >= 0 {
			candidates = append(candidates, rt.buckets[index-i].GetContacts()...)
		}
		if index+i < bucketCount {
			candidates = append(candidates, rt.buckets[index+i].GetContacts()...)
		}
	}

	sortByDistance(candidates, target)

	if len(candidates) > count {
		return candidates[:count]
	}
	return candidates
}

func sortByDistance(peers []PeerRecord, target id_tools.PeerID) {
	slices.SortFunc(peers, func(a, b PeerRecord) int {
		return a.ID.Xor(target).Compare(b.ID.Xor(target))
	})
}

// AllPeers is a point-in-time view of every peer. The snapshot is taken when
// AllPeers is called; ranging over it again replays the same snapshot.
func (rt *RoutingTable) AllPeers() iter.Seq[PeerRecord] {
	var snapshot []PeerRecord
	for _, b := range rt.buckets {
		snapshot = append(snapshot, b.GetContacts()...)
	}
	return slices.Values(snapshot)
}

func (rt *RoutingTable) Len() int {
	total := 0
	for _, b := range rt.buckets {
		total += b.Len()
	}
	return total
}

// BucketInfo describes one non-empty bucket for display.
type BucketInfo struct {
	Index int          `json:"index"`
	Min   string       `json:"min_distance"`
	Peers []PeerRecord `json:"peers"`
}

func (rt *RoutingTable) Buckets() []BucketInfo {
	var out []BucketInfo
	for _, b := range rt.buckets {
		peers := b.GetContacts()
		if len(peers) == 0 {
			continue
		}
		out = append(out, BucketInfo{Index: b.Index(), Min: b.Min().String(), Peers: peers})
	}
	return out
}
