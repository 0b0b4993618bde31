package dht

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kutluhann/decentralized-file-sharing-system/chunker"
	"github.com/kutluhann/decentralized-file-sharing-system/constants"
	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
	"github.com/kutluhann/decentralized-file-sharing-system/storage"
)

// LookupState manages the candidate list while hunting for a chunk.
type LookupState struct {
	Target    id_tools.PeerID
	Shortlist []PeerRecord             // every peer known to this search, closest first
	Contacted map[id_tools.PeerID]bool // who we already asked
}

func NewLookupState(target id_tools.PeerID, initial []PeerRecord) *LookupState {
	state := &LookupState{
		Target:    target,
		Shortlist: make([]PeerRecord, 0, len(initial)),
		Contacted: make(map[id_tools.PeerID]bool),
	}
	state.Append(initial)
	return state
}

// Append adds peers not already on the shortlist and re-sorts it.
func (ls *LookupState) Append(peers []PeerRecord) {
	for _, p := range peers {
		exists := false
		for _, existing := range ls.Shortlist {
			if existing.ID == p.ID {
				exists = true
				break
			}
		}
		if !exists {
			ls.Shortlist = append(ls.Shortlist, p)
		}
	}
	sortByDistance(ls.Shortlist, ls.Target)
}

// PickNextBest returns the closest peer not queried yet, or nil.
func (ls *LookupState) PickNextBest() *PeerRecord {
	for i := range ls.Shortlist {
		p := &ls.Shortlist[i]
		if !ls.Contacted[p.ID] {
			return p
		}
	}
	return nil
}

func (ls *LookupState) MarkContacted(id id_tools.PeerID) {
	ls.Contacted[id] = true
}

// FetchChunk returns a chunk from the local store or, failing that, from the
// peers, asking the ones closest to the chunk hash first. Peer data is
// checked against the hash before it is cached and returned.
func (n *Node) FetchChunk(ctx context.Context, hash id_tools.PeerID) ([]byte, error) {
	data, err := n.Store.GetChunk(hash)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, storage.ErrChunkNotFound) {
		return nil, err
	}

	// Closest known peers first, then everyone else as a fallback.
	state := NewLookupState(hash, n.RoutingTable.FindClosestNodes(hash, constants.K))
	state.Append(slices.Collect(n.RoutingTable.AllPeers()))

	for {
		candidate := state.PickNextBest()
		if candidate == nil {
			break
		}
		state.MarkContacted(candidate.ID)

		data, err := n.askChunk(ctx, *candidate, hash)
		if err != nil {
			n.logger.Debug().Err(err).Str("peer", candidate.Address()).Str("chunk", hash.Short()).Msg("chunk fetch failed")
			continue
		}
		if err := n.Store.PutChunk(hash, data); err != nil {
			n.logger.Warn().Err(err).Str("chunk", hash.Short()).Msg("could not cache fetched chunk")
		}
		return data, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", chunker.ErrMissingChunk, hash)
}

func (n *Node) askChunk(ctx context.Context, peer PeerRecord, hash id_tools.PeerID) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, n.rpcTimeout)
	defer cancel()

	data, err := n.Network.GetChunk(callCtx, peer.Address(), hash)
	if err != nil {
		return nil, err
	}
	if id_tools.HashBytes(data) != hash {
		return nil, fmt.Errorf("%w: %s sent %s", storage.ErrHashMismatch, peer.Address(), hash.Short())
	}
	n.RoutingTable.Touch(peer.ID)
	return data, nil
}
