// Package replacer implements the LRU-K eviction policy: it tracks
// per-frame access history and picks eviction victims by backward
// k-distance. Grounded line-for-line on
// _examples/original_source/src/buffer/lru_k_replacer.cpp.
package replacer

import (
	"fmt"
	"sync"

	"github.com/ryogrid/pagecache/bufpoolerr"
	"github.com/ryogrid/pagecache/common"
	"github.com/ryogrid/pagecache/types"
)

const infiniteDistance = ^uint64(0)

// node is one tracked frame's access history.
type node struct {
	history   []uint64 // oldest first, bounded to k entries
	evictable bool
}

// LRUK selects eviction victims among at most N tracked frames using
// the backward k-distance defined in spec.md §4.1.
type LRUK struct {
	mu sync.Mutex

	k       int
	n       int
	current uint64

	// order preserves first-seen insertion order so eviction
	// tie-breaks are deterministic rather than dependent on map
	// iteration order, per SPEC_FULL.md §4.1.
	order []types.FrameID
	nodes map[types.FrameID]*node
	size  int
}

// New returns an LRUK tracking up to n frames with history depth k.
func New(n, k int) *LRUK {
	return &LRUK{
		n:     n,
		k:     k,
		nodes: make(map[types.FrameID]*node, n),
	}
}

// RecordAccess timestamps a new access to frameID, creating tracking
// state (initially non-evictable) on first sight.
func (r *LRUK) RecordAccess(frameID types.FrameID, _ common.AccessType) {
	bufpoolerr.AssertValidFrame(int(frameID), r.n, "LRUK.RecordAccess")

	r.mu.Lock()
	defer r.mu.Unlock()

	r.current++

	nd, ok := r.nodes[frameID]
	if !ok {
		nd = &node{}
		r.nodes[frameID] = nd
		r.order = append(r.order, frameID)
	}

	nd.history = append(nd.history, r.current)
	if len(nd.history) > r.k {
		nd.history = nd.history[1:]
	}
}

// SetEvictable toggles whether frameID participates in eviction. A
// no-op on untracked ids.
func (r *LRUK) SetEvictable(frameID types.FrameID, evictable bool) {
	bufpoolerr.AssertValidFrame(int(frameID), r.n, "LRUK.SetEvictable")

	r.mu.Lock()
	defer r.mu.Unlock()

	nd, ok := r.nodes[frameID]
	if !ok {
		return
	}
	if nd.evictable == evictable {
		return
	}
	nd.evictable = evictable
	if evictable {
		r.size++
	} else {
		r.size--
	}
}

// Evict selects the evictable frame with the greatest backward
// k-distance and removes its tracking state. Returns
// (types.InvalidFrameID, false) when nothing is evictable.
func (r *LRUK) Evict() (types.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return types.InvalidFrameID, false
	}

	victim := types.InvalidFrameID
	victimFound := false
	var victimDistance uint64
	var victimOldest uint64

	for _, frameID := range r.order {
		nd := r.nodes[frameID]
		if nd == nil || !nd.evictable || len(nd.history) == 0 {
			continue
		}

		oldest := nd.history[0]
		var distance uint64
		if len(nd.history) < r.k {
			distance = infiniteDistance
		} else {
			distance = r.current - oldest
		}

		if !victimFound {
			victim, victimDistance, victimOldest, victimFound = frameID, distance, oldest, true
			continue
		}

		switch {
		case distance > victimDistance:
			victim, victimDistance, victimOldest = frameID, distance, oldest
		case distance == victimDistance && distance == infiniteDistance && oldest < victimOldest:
			// Tie among +inf candidates: earliest oldest timestamp wins.
			victim, victimOldest = frameID, oldest
		}
	}

	if !victimFound {
		return types.InvalidFrameID, false
	}

	r.removeLocked(victim)
	return victim, true
}

// Remove drops tracking state for frameID. Fails (panics) with
// ErrNonEvictable if the frame is tracked but pinned; silently returns
// on untracked ids.
func (r *LRUK) Remove(frameID types.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nd, ok := r.nodes[frameID]
	if !ok {
		return
	}
	if !nd.evictable {
		panic(fmt.Errorf("%w: frame %d", bufpoolerr.ErrNonEvictable, frameID))
	}
	r.removeLocked(frameID)
}

// removeLocked assumes r.mu is held.
func (r *LRUK) removeLocked(frameID types.FrameID) {
	nd := r.nodes[frameID]
	if nd != nil && nd.evictable {
		r.size--
	}
	delete(r.nodes, frameID)
	for i, id := range r.order {
		if id == frameID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Size returns the number of currently evictable tracked frames.
func (r *LRUK) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
