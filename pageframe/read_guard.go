package pageframe

import (
	"sync"

	"github.com/ryogrid/pagecache/bufpoolerr"
	"github.com/ryogrid/pagecache/diskio"
	"github.com/ryogrid/pagecache/replacer"
	"github.com/ryogrid/pagecache/types"
)

// ReadGuard is a move-only scoped handle holding a frame's latch in
// shared mode over an already-pinned frame. Acquired by bufferpool,
// released by Drop.
//
// The caller (bufferpool.Manager) must pin the frame and mark it
// non-evictable in rep while still holding the pool latch, then
// release that latch before calling NewReadGuard — this guard only
// takes the frame latch, never the pool latch, on acquire. That keeps
// the lock order fixed (pool latch only ever held alone or released
// before the frame latch is taken) and closes the window where a
// frame could sit in the page table pinned-for-zero but marked
// non-evictable.
type ReadGuard struct {
	pageID    types.PageID
	frame     *Frame
	replacer  *replacer.LRUK
	poolLatch *sync.Mutex
	scheduler *diskio.Scheduler
	valid     bool
}

// NewReadGuard takes the frame's latch in shared mode. frame must
// already be pinned and marked non-evictable by the caller before this
// is called — see bufferpool.Manager.CheckedReadPage.
func NewReadGuard(pageID types.PageID, frame *Frame, rep *replacer.LRUK, poolLatch *sync.Mutex, sched *diskio.Scheduler) *ReadGuard {
	frame.Latch().RLock()

	return &ReadGuard{
		pageID:    pageID,
		frame:     frame,
		replacer:  rep,
		poolLatch: poolLatch,
		scheduler: sched,
		valid:     true,
	}
}

// PageID returns the guarded page's id.
func (g *ReadGuard) PageID() types.PageID {
	bufpoolerr.AssertGuardValid(g.valid, "ReadGuard.PageID")
	return g.pageID
}

// Data returns a read-only view of the page image.
func (g *ReadGuard) Data() []byte {
	bufpoolerr.AssertGuardValid(g.valid, "ReadGuard.Data")
	return g.frame.Data()
}

// IsDirty reports whether the underlying frame is dirty.
func (g *ReadGuard) IsDirty() bool {
	bufpoolerr.AssertGuardValid(g.valid, "ReadGuard.IsDirty")
	return g.frame.IsDirty()
}

// Flush synchronously writes the frame through the disk scheduler and
// clears the dirty flag on success. A read guard may flush because its
// shared latch already excludes concurrent writers. No-op on a clean
// frame.
func (g *ReadGuard) Flush() bool {
	bufpoolerr.AssertGuardValid(g.valid, "ReadGuard.Flush")
	if !g.frame.IsDirty() {
		return true
	}
	ok := g.scheduler.ScheduleWrite(g.pageID, g.frame.Data())
	if ok {
		g.frame.ClearDirty()
	}
	return ok
}

// Move transfers ownership of the guard's frame latch and pin to a new
// ReadGuard value and leaves the receiver inert, modeling the source's
// move constructor: after Move, any further use of g is a precondition
// violation. Calling Move on an already-inert guard is itself such a
// violation.
func (g *ReadGuard) Move() *ReadGuard {
	bufpoolerr.AssertGuardValid(g.valid, "ReadGuard.Move")

	moved := &ReadGuard{
		pageID:    g.pageID,
		frame:     g.frame,
		replacer:  g.replacer,
		poolLatch: g.poolLatch,
		scheduler: g.scheduler,
		valid:     true,
	}

	g.valid = false
	g.pageID = types.InvalidPageID
	g.frame = nil
	g.replacer = nil
	g.poolLatch = nil
	g.scheduler = nil

	return moved
}

// Drop releases the guard: decrements the pin, releases the frame
// latch, and — if that was the last pin — marks the frame evictable
// again. Idempotent: a second Drop on an already-dropped guard is a
// no-op.
func (g *ReadGuard) Drop() {
	if !g.valid {
		return
	}

	prev := g.frame.Unpin()
	g.frame.Latch().RUnlock()

	if prev == 1 {
		g.poolLatch.Lock()
		g.replacer.SetEvictable(g.frame.ID(), true)
		g.poolLatch.Unlock()
	}

	g.valid = false
	g.pageID = types.InvalidPageID
	g.frame = nil
	g.replacer = nil
	g.poolLatch = nil
	g.scheduler = nil
}
