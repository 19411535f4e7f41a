// Package pageframe holds the in-memory frame slot and the scoped read
// and write guards that hand out safe access to it.
package pageframe

import (
	"sync"
	"sync/atomic"

	"github.com/ryogrid/pagecache/common"
	"github.com/ryogrid/pagecache/types"
)

// Frame is one fixed-size slot of the buffer pool: a page image plus
// the metadata needed to pin, latch and evict it.
type Frame struct {
	id types.FrameID

	rwlatch sync.RWMutex

	pinCount atomic.Int64
	dirty    atomic.Bool
	pageID   atomic.Int64 // types.PageID, stored as int64 for atomic access

	data [common.PageSize]byte
}

// NewFrame constructs a frame at a fixed position in the pool's frame
// array. The position never changes for the lifetime of the pool.
func NewFrame(id types.FrameID) *Frame {
	f := &Frame{id: id}
	f.pageID.Store(int64(types.InvalidPageID))
	return f
}

// ID returns the frame's fixed position in the pool's frame array.
func (f *Frame) ID() types.FrameID { return f.id }

// PageID returns the page id currently resident in this frame, or
// types.InvalidPageID if the frame is free. This is the reverse index
// spec.md §4.3/§9 calls out as an optional optimization.
func (f *Frame) PageID() types.PageID { return types.PageID(f.pageID.Load()) }

// PinCount returns the current pin count.
func (f *Frame) PinCount() int64 { return f.pinCount.Load() }

// IsDirty reports whether the frame's contents differ from disk.
func (f *Frame) IsDirty() bool { return f.dirty.Load() }

// Data returns a read-only view of the frame's page image.
func (f *Frame) Data() []byte { return f.data[:] }

// DataMut returns a writable view of the frame's page image.
func (f *Frame) DataMut() []byte { return f.data[:] }

// Latch exposes the frame's reader-writer latch to guards. It is not
// meant to be used outside this package and bufferpool's flush
// paths.
func (f *Frame) Latch() *sync.RWMutex { return &f.rwlatch }

// Pin atomically increments the pin count and returns the new value.
func (f *Frame) Pin() int64 { return f.pinCount.Add(1) }

// Unpin atomically decrements the pin count and returns the value
// immediately before the decrement, so callers can tell whether this
// was the last outstanding pin. The decrement and the returned
// previous value come from the same atomic op, so two concurrent
// Unpin calls on the same frame never observe the same prev.
func (f *Frame) Unpin() int64 {
	return f.pinCount.Add(-1) + 1
}

// MarkDirty unconditionally sets the dirty flag. Called by WriteGuard
// at acquisition, per the fidelity decision recorded in SPEC_FULL.md
// §4.2.
func (f *Frame) MarkDirty() { f.dirty.Store(true) }

// ClearDirty clears the dirty flag after a successful write-back.
func (f *Frame) ClearDirty() { f.dirty.Store(false) }

// Bind associates this (currently unpinned, zeroed) frame with pageID.
// Called only from bufferpool's miss resolution, which holds the pool
// latch and knows the frame carries zero pins.
func (f *Frame) Bind(pageID types.PageID) { f.pageID.Store(int64(pageID)) }

// Reset zeroes the page buffer and clears pin/dirty/page-id state,
// mirroring BusTub's FrameHeader::Reset(). Called when a frame is
// about to be reused for a different page.
func (f *Frame) Reset() {
	for i := range f.data {
		f.data[i] = 0
	}
	f.pinCount.Store(0)
	f.dirty.Store(false)
	f.pageID.Store(int64(types.InvalidPageID))
}
