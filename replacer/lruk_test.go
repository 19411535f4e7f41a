package replacer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryogrid/pagecache/bufpoolerr"
	"github.com/ryogrid/pagecache/common"
	"github.com/ryogrid/pagecache/types"
)

func TestLRUK_EvictPrefersFewerThanKAccesses(t *testing.T) {
	r := New(4, 2)

	// Frame 0 gets two accesses (full k-history).
	r.RecordAccess(0, common.AccessUnknown)
	r.RecordAccess(0, common.AccessUnknown)
	// Frame 1 gets a single access (+inf backward distance).
	r.RecordAccess(1, common.AccessUnknown)

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	victim, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, types.FrameID(1), victim, "frame with +inf distance should be evicted first")
	assert.Equal(t, 1, r.Size())
}

func TestLRUK_TieBreaksOnEarliestTimestamp(t *testing.T) {
	r := New(4, 2)

	r.RecordAccess(0, common.AccessUnknown) // oldest
	r.RecordAccess(1, common.AccessUnknown)
	r.RecordAccess(2, common.AccessUnknown) // newest

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)

	victim, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, types.FrameID(0), victim, "earliest of the +inf candidates should be evicted")
}

func TestLRUK_BackwardKDistance(t *testing.T) {
	r := New(4, 2)

	// Frame 0: accesses at t=1,2 -> kth-most-recent retained is t=1.
	r.RecordAccess(0, common.AccessUnknown)
	r.RecordAccess(0, common.AccessUnknown)
	// Frame 1: accesses at t=3,4 -> kth-most-recent retained is t=3,
	// a smaller backward distance from "now" than frame 0's.
	r.RecordAccess(1, common.AccessUnknown)
	r.RecordAccess(1, common.AccessUnknown)

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	victim, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, types.FrameID(0), victim, "the frame whose oldest retained access is furthest back wins")
}

func TestLRUK_SetEvictableIsNoOpOnUntracked(t *testing.T) {
	r := New(4, 2)
	r.SetEvictable(3, true) // untracked: must not panic
	assert.Equal(t, 0, r.Size())
}

func TestLRUK_RemoveUntrackedIsNoOp(t *testing.T) {
	r := New(4, 2)
	r.Remove(2) // untracked: must not panic
}

func TestLRUK_RemoveNonEvictablePanics(t *testing.T) {
	r := New(4, 2)
	r.RecordAccess(0, common.AccessUnknown)

	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		err, ok := rec.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, bufpoolerr.ErrNonEvictable)
	}()
	r.Remove(0)
}

func TestLRUK_RecordAccessInvalidFramePanics(t *testing.T) {
	r := New(2, 2)

	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		err, ok := rec.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, bufpoolerr.ErrInvalidFrame)
	}()
	r.RecordAccess(5, common.AccessUnknown)
}

func TestLRUK_EvictEmptyReturnsFalse(t *testing.T) {
	r := New(4, 2)
	_, ok := r.Evict()
	assert.False(t, ok)
}

func TestLRUK_HistoryBoundedToK(t *testing.T) {
	r := New(1, 2)
	for i := 0; i < 5; i++ {
		r.RecordAccess(0, common.AccessUnknown)
	}
	r.SetEvictable(0, true)

	nd := r.nodes[0]
	require.Len(t, nd.history, 2)
}

func TestLRUK_EvictRemovesHistory(t *testing.T) {
	r := New(2, 2)
	r.RecordAccess(0, common.AccessUnknown)
	r.SetEvictable(0, true)

	_, ok := r.Evict()
	require.True(t, ok)
	_, tracked := r.nodes[0]
	assert.False(t, tracked, "eviction must drop tracking state entirely")
}
