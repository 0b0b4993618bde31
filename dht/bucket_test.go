package dht

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kutluhann/decentralized-file-sharing-system/constants"
	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// topBucketID returns an id in bucket 159 of the zero id, offset from the
// bucket minimum by n.
func topBucketID(n byte) id_tools.PeerID {
	var id id_tools.PeerID
	id[0] = 0x80
	id[len(id)-1] = n
	return id
}

func newTopBucket(clock *fakeClock) *Bucket {
	return NewBucket(id_tools.PeerID{}, 159, constants.K, constants.MaxLastSeen, clock.Now)
}

func fill(t *testing.T, b *Bucket, from, to byte) {
	t.Helper()
	for n := from; n <= to; n++ {
		require.Equal(t, Inserted, b.Add(PeerRecord{ID: topBucketID(n), Host: "localhost", Port: 8000 + int(n)}))
	}
}

func TestBucketRefreshDoesNotDuplicate(t *testing.T) {
	clock := &fakeClock{t: epoch}
	b := newTopBucket(clock)

	assert.Equal(t, Inserted, b.Add(PeerRecord{ID: topBucketID(1)}))
	clock.Advance(3 * time.Second)
	assert.Equal(t, Refreshed, b.Add(PeerRecord{ID: topBucketID(1)}))

	contacts := b.GetContacts()
	require.Len(t, contacts, 1)
	assert.Equal(t, epoch.Add(3*time.Second), contacts[0].LastSeen)
}

func TestBucketNeverExceedsCapacity(t *testing.T) {
	clock := &fakeClock{t: epoch}
	b := newTopBucket(clock)
	fill(t, b, 1, constants.K)

	for n := byte(100); n < 140; n++ {
		b.Add(PeerRecord{ID: topBucketID(n)})
		assert.LessOrEqual(t, b.Len(), constants.K)
	}
}

func TestBucketRejectsFartherPeerWhenFullAndFresh(t *testing.T) {
	clock := &fakeClock{t: epoch}
	b := newTopBucket(clock)
	fill(t, b, 1, constants.K)
	before := b.GetContacts()

	far := topBucketID(200)
	assert.Equal(t, Rejected, b.Add(PeerRecord{ID: far}))
	assert.Equal(t, constants.K, b.Len())
	assert.False(t, b.Contains(far))
	assert.Equal(t, before, b.GetContacts())
}

func TestBucketReplacesFarthestWithCloserPeer(t *testing.T) {
	clock := &fakeClock{t: epoch}
	b := newTopBucket(clock)
	fill(t, b, 1, constants.K)

	closest := topBucketID(0)
	assert.Equal(t, Evicted, b.Add(PeerRecord{ID: closest}))
	assert.Equal(t, constants.K, b.Len())
	assert.True(t, b.Contains(closest))
	assert.False(t, b.Contains(topBucketID(constants.K)))
}

func TestBucketPurgesStalePeers(t *testing.T) {
	clock := &fakeClock{t: epoch}
	b := newTopBucket(clock)
	fill(t, b, 1, constants.K-1)

	clock.Advance(5 * time.Second)
	fill(t, b, constants.K, constants.K)

	clock.Advance(constants.MaxLastSeen - time.Second)
	far := topBucketID(200)
	assert.Equal(t, Evicted, b.Add(PeerRecord{ID: far}))

	assert.Equal(t, 2, b.Len())
	assert.True(t, b.Contains(far))
	assert.True(t, b.Contains(topBucketID(constants.K)))
	assert.False(t, b.Contains(topBucketID(1)))
}

func TestBucketTouchAndRemove(t *testing.T) {
	clock := &fakeClock{t: epoch}
	b := newTopBucket(clock)
	fill(t, b, 1, 2)

	clock.Advance(time.Second)
	assert.True(t, b.Touch(topBucketID(2)))
	assert.False(t, b.Touch(topBucketID(3)))
	assert.Equal(t, 2, b.Len())

	assert.True(t, b.Remove(topBucketID(1)))
	assert.False(t, b.Remove(topBucketID(1)))
	contacts := b.GetContacts()
	require.Len(t, contacts, 1)
	assert.Equal(t, epoch.Add(time.Second), contacts[0].LastSeen)
}

func TestBucketCovers(t *testing.T) {
	b := newTopBucket(&fakeClock{t: epoch})
	assert.True(t, b.Covers(topBucketID(7)))
	assert.False(t, b.Covers(id_tools.PowerOfTwo(3)))
	assert.Equal(t, id_tools.PowerOfTwo(159), b.Min())
}

func TestBucketRejectsPeerOutsideItsRange(t *testing.T) {
	b := newTopBucket(&fakeClock{t: epoch})

	assert.Equal(t, Rejected, b.Add(PeerRecord{ID: id_tools.PowerOfTwo(3)}))
	assert.Equal(t, Rejected, b.Add(PeerRecord{ID: id_tools.PeerID{}}))
	assert.Equal(t, 0, b.Len())
}
