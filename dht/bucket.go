package dht

import (
	"sync"
	"time"

	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
)

// Bucket holds up to capacity peers whose distance from self lies in
// [2^index, 2^(index+1)).
type Bucket struct {
	index       int
	self        id_tools.PeerID
	min         id_tools.PeerID
	capacity    int
	maxLastSeen time.Duration
	now         func() time.Time

	contacts []PeerRecord
	mutex    sync.Mutex
}

func NewBucket(self id_tools.PeerID, index, capacity int, maxLastSeen time.Duration, now func() time.Time) *Bucket {
	if now == nil {
		now = time.Now
	}
	return &Bucket{
		index:       index,
		self:        self,
		min:         id_tools.PowerOfTwo(index),
		capacity:    capacity,
		maxLastSeen: maxLastSeen,
		now:         now,
		contacts:    make([]PeerRecord, 0, capacity),
	}
}

func (b *Bucket) Index() int { return b.index }

// Min is the smallest distance the bucket covers.
func (b *Bucket) Min() id_tools.PeerID { return b.min }

// Covers reports whether a distance from self falls in this bucket.
func (b *Bucket) Covers(distance id_tools.PeerID) bool {
	return distance.BucketIndex() == b.index
}

// offset is the peer's distance from the bucket minimum. Every distance in
// the bucket has bit index set, so this is distance-2^index.
func (b *Bucket) offset(id id_tools.PeerID) id_tools.PeerID {
	return id.Xor(b.self).Xor(b.min)
}

// Add inserts or refreshes a record:
//  1. a known id only has its LastSeen refreshed;
//  2. otherwise it is appended while there is room;
//  3. a full bucket first drops every peer not seen within maxLastSeen;
//  4. failing that the farthest peer is replaced if it is farther than the
//     newcomer, else the newcomer is dropped.
//
// A record whose distance falls outside the bucket is rejected.
func (b *Bucket) Add(record PeerRecord) AddResult {
	if !b.Covers(record.ID.Xor(b.self)) {
		return Rejected
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	now := b.now()
	record.LastSeen = now

	for i := range b.contacts {
		if b.contacts[i].ID == record.ID {
			b.contacts[i].LastSeen = now
			return Refreshed
		}
	}

	if len(b.contacts) < b.capacity {
		b.contacts = append(b.contacts, record)
		return Inserted
	}

	alive := b.contacts[:0]
	for _, c := range b.contacts {
		if now.Sub(c.LastSeen) < b.maxLastSeen {
			alive = append(alive, c)
		}
	}
	clear(b.contacts[len(alive):])
	b.contacts = alive
	if len(b.contacts) < b.capacity {
		b.contacts = append(b.contacts, record)
		return Evicted
	}

	farthest := 0
	for i := 1; i < len(b.contacts); i++ {
		if b.offset(b.contacts[farthest].ID).Less(b.offset(b.contacts[i].ID)) {
			farthest = i
		}
	}
	if b.offset(record.ID).Less(b.offset(b.contacts[farthest].ID)) {
		b.contacts = append(b.contacts[:farthest], b.contacts[farthest+1:]...)
		b.contacts = append(b.contacts, record)
		return Evicted
	}
	return Rejected
}

// Touch refreshes LastSeen of a known peer. It never inserts.
func (b *Bucket) Touch(id id_tools.PeerID) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for i := range b.contacts {
		if b.contacts[i].ID == id {
			b.contacts[i].LastSeen = b.now()
			return true
		}
	}
	return false
}

func (b *Bucket) Remove(id id_tools.PeerID) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for i := range b.contacts {
		if b.contacts[i].ID == id {
			b.contacts = append(b.contacts[:i], b.contacts[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Bucket) Contains(id id_tools.PeerID) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for _, c := range b.contacts {
		if c.ID == id {
			return true
		}
	}
	return false
}

// GetContacts returns a safe copy of the contacts in this bucket
func (b *Bucket) GetContacts() []PeerRecord {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	snapshot := make([]PeerRecord, len(b.contacts))
	copy(snapshot, b.contacts)
	return snapshot
}

// Len returns the number of contacts in the bucket
func (b *Bucket) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.contacts)
}
