// Package bufferpool implements the buffer pool manager: it owns a
// fixed array of frames, the page-id-to-frame mapping, the free list,
// the LRU-K replacer and the disk scheduler, and serves fetch/new/
// delete/flush requests under a pinning protocol. Grounded on
// _examples/original_source/src/buffer/buffer_pool_manager.cpp, with
// the disk-failure redesign recorded in SPEC_FULL.md §4.3/§9.
package bufferpool

import (
	"fmt"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ryogrid/pagecache/common"
	"github.com/ryogrid/pagecache/diskio"
	"github.com/ryogrid/pagecache/pageframe"
	"github.com/ryogrid/pagecache/replacer"
	"github.com/ryogrid/pagecache/types"
)

// Manager is the buffer pool: capacity-limited, concurrency-safe
// cache of disk pages.
type Manager struct {
	mu sync.Mutex // pool latch: page table, free list, replacer calls

	frames    []*pageframe.Frame
	freeList  []types.FrameID
	pageTable map[types.PageID]types.FrameID

	replacer  *replacer.LRUK
	scheduler *diskio.Scheduler
}

// nextPageID is shared by every Manager in the process, so a page id
// is never handed out twice.
var nextPageID atomic.Int64

// New allocates N frames per opts.PoolSize, pushes them all to the
// free list, and initializes an empty page table and replacer.
func New(opts Options) *Manager {
	if opts.Disk == nil {
		panic("bufferpool: Options.Disk must not be nil")
	}

	m := &Manager{
		frames:    make([]*pageframe.Frame, opts.PoolSize),
		freeList:  make([]types.FrameID, 0, opts.PoolSize),
		pageTable: make(map[types.PageID]types.FrameID, opts.PoolSize),
		replacer:  replacer.New(opts.PoolSize, opts.ReplacerK),
		scheduler: diskio.NewScheduler(opts.Disk),
	}

	for i := 0; i < opts.PoolSize; i++ {
		fid := types.FrameID(i)
		m.frames[i] = pageframe.NewFrame(fid)
		m.freeList = append(m.freeList, fid)
	}

	return m
}

// Size returns the pool's frame capacity, N.
func (m *Manager) Size() int { return len(m.frames) }

// Close shuts down the disk scheduler. Callers should FlushAllPages
// first if durability of dirty pages matters.
func (m *Manager) Close() { m.scheduler.ShutDown() }

// NewPage returns a fresh, process-wide monotonic page id. It does not
// allocate a frame — the page becomes resident only on first fetch.
func (m *Manager) NewPage() types.PageID {
	return types.PageID(nextPageID.Add(1) - 1)
}

// GetPinCount reports the pin count of a resident page, for tests.
func (m *Manager) GetPinCount(id types.PageID) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.pageTable[id]
	if !ok {
		return 0, false
	}
	return m.frames[fid].PinCount(), true
}

// PoolAudit returns the set of page ids currently resident in the
// pool. Grounded in the teacher's own BufMgr.PoolAudit() method name
// (lib/container/blink_tree/bufmgr.go), backed here by golang-set.
func (m *Manager) PoolAudit() mapset.Set[types.PageID] {
	m.mu.Lock()
	defer m.mu.Unlock()

	resident := mapset.NewSet[types.PageID]()
	for pid := range m.pageTable {
		resident.Add(pid)
	}
	return resident
}

// pickFrame returns a frame to use for a miss, preferring the free
// list and falling back to the replacer's victim. Assumes m.mu held.
// On a dirty victim, writes it back through the scheduler; on failure
// the victim frame is left resident and dirty and pickFrame reports
// failure rather than erasing the old mapping — the disk-failure
// redesign noted in SPEC_FULL.md §9.
func (m *Manager) pickFrame() (types.FrameID, bool) {
	if n := len(m.freeList); n > 0 {
		fid := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return fid, true
	}

	fid, ok := m.replacer.Evict()
	if !ok {
		return types.InvalidFrameID, false
	}

	frame := m.frames[fid]
	victimPageID := frame.PageID()
	if victimPageID != types.InvalidPageID {
		if frame.IsDirty() {
			if !m.scheduler.ScheduleWrite(victimPageID, frame.Data()) {
				common.Logger().Error("bufferpool: victim write-back failed, aborting fetch",
					"page", victimPageID, "frame", fid)
				// Leave the mapping intact and frame dirty; Evict
				// dropped the frame's history, so track it again with
				// one fresh access and mark it evictable so a retry
				// can still find it.
				m.replacer.RecordAccess(fid, common.AccessUnknown)
				m.replacer.SetEvictable(fid, true)
				return types.InvalidFrameID, false
			}
			frame.ClearDirty()
		}
		delete(m.pageTable, victimPageID)
	}

	return fid, true
}

// CheckedReadPage is the fallible form of ReadPage: it returns
// (nil, false) rather than aborting when no frame can be produced.
func (m *Manager) CheckedReadPage(id types.PageID) (*pageframe.ReadGuard, bool) {
	m.mu.Lock()

	if fid, ok := m.pageTable[id]; ok {
		frame := m.frames[fid]
		frame.Pin()
		m.replacer.RecordAccess(fid, common.AccessUnknown)
		m.replacer.SetEvictable(fid, false)
		m.mu.Unlock()
		return pageframe.NewReadGuard(id, frame, m.replacer, &m.mu, m.scheduler), true
	}

	fid, ok := m.pickFrame()
	if !ok {
		m.mu.Unlock()
		return nil, false
	}

	frame := m.frames[fid]
	frame.Reset()
	if !m.scheduler.ScheduleRead(id, frame.DataMut()) {
		// Reading the requested page failed: the frame stays free,
		// nothing is published to the page table.
		common.Logger().Error("bufferpool: read-in failed", "page", id, "frame", fid)
		m.freeList = append(m.freeList, fid)
		m.mu.Unlock()
		return nil, false
	}

	frame.Bind(id)
	m.pageTable[id] = fid
	frame.Pin()
	m.replacer.RecordAccess(fid, common.AccessUnknown)
	m.replacer.SetEvictable(fid, false)

	m.mu.Unlock()
	return pageframe.NewReadGuard(id, frame, m.replacer, &m.mu, m.scheduler), true
}

// CheckedWritePage is the fallible form of WritePage.
func (m *Manager) CheckedWritePage(id types.PageID) (*pageframe.WriteGuard, bool) {
	m.mu.Lock()

	if fid, ok := m.pageTable[id]; ok {
		frame := m.frames[fid]
		frame.Pin()
		m.replacer.RecordAccess(fid, common.AccessUnknown)
		m.replacer.SetEvictable(fid, false)
		m.mu.Unlock()
		return pageframe.NewWriteGuard(id, frame, m.replacer, &m.mu, m.scheduler), true
	}

	fid, ok := m.pickFrame()
	if !ok {
		m.mu.Unlock()
		return nil, false
	}

	frame := m.frames[fid]
	frame.Reset()
	if !m.scheduler.ScheduleRead(id, frame.DataMut()) {
		common.Logger().Error("bufferpool: read-in failed", "page", id, "frame", fid)
		m.freeList = append(m.freeList, fid)
		m.mu.Unlock()
		return nil, false
	}

	frame.Bind(id)
	m.pageTable[id] = fid
	frame.Pin()
	m.replacer.RecordAccess(fid, common.AccessUnknown)
	m.replacer.SetEvictable(fid, false)

	m.mu.Unlock()
	return pageframe.NewWriteGuard(id, frame, m.replacer, &m.mu, m.scheduler), true
}

// ReadPage is the infallible form: it aborts the process if no guard
// can be produced, per spec.md §4.3.
func (m *Manager) ReadPage(id types.PageID) *pageframe.ReadGuard {
	g, ok := m.CheckedReadPage(id)
	if !ok {
		panic(fmt.Sprintf("bufferpool: CheckedReadPage failed to bring in page %d", id))
	}
	return g
}

// WritePage is the infallible form: it aborts the process if no guard
// can be produced, per spec.md §4.3.
func (m *Manager) WritePage(id types.PageID) *pageframe.WriteGuard {
	g, ok := m.CheckedWritePage(id)
	if !ok {
		panic(fmt.Sprintf("bufferpool: CheckedWritePage failed to bring in page %d", id))
	}
	return g
}

// DeletePage removes id from the pool and releases its disk
// allocation. Returns false only if the page is currently pinned.
func (m *Manager) DeletePage(id types.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fid, ok := m.pageTable[id]; ok {
		frame := m.frames[fid]
		if frame.PinCount() > 0 {
			return false
		}
		delete(m.pageTable, id)
		// pin_count == 0 here. CheckedReadPage/CheckedWritePage always
		// pin a frame and mark it non-evictable in the same critical
		// section as publishing it to the page table (under m.mu), so
		// there is no window where a resident, unpinned frame is
		// anything but evictable — Remove's precondition always holds.
		m.replacer.Remove(fid)
		frame.Reset()
		m.freeList = append(m.freeList, fid)
	}

	m.scheduler.ScheduleDeallocate(id)
	return true
}

// FlushPage writes id's resident page to disk if dirty, taking the
// frame's write latch to serialize with concurrent writers. Returns
// false if id is not resident.
func (m *Manager) FlushPage(id types.PageID) bool {
	m.mu.Lock()
	fid, ok := m.pageTable[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	frame := m.frames[fid]
	m.mu.Unlock()

	frame.Latch().Lock()
	defer frame.Latch().Unlock()
	return m.flushFrameLocked(id, frame)
}

// FlushPageUnsafe has the same semantics as FlushPage but omits the
// frame latch, trusting the caller to already hold an appropriate
// guard over id.
func (m *Manager) FlushPageUnsafe(id types.PageID) bool {
	m.mu.Lock()
	fid, ok := m.pageTable[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	frame := m.frames[fid]
	m.mu.Unlock()

	return m.flushFrameLocked(id, frame)
}

func (m *Manager) flushFrameLocked(id types.PageID, frame *pageframe.Frame) bool {
	if !frame.IsDirty() {
		return true
	}
	ok := m.scheduler.ScheduleWrite(id, frame.Data())
	if ok {
		frame.ClearDirty()
	}
	return ok
}

// FlushAllPages collects resident pages under the pool latch, then
// flushes each under its own frame latch, to avoid holding the pool
// latch across I/O.
func (m *Manager) FlushAllPages() {
	m.mu.Lock()
	targets := make(map[types.PageID]*pageframe.Frame, len(m.pageTable))
	for pid, fid := range m.pageTable {
		targets[pid] = m.frames[fid]
	}
	m.mu.Unlock()

	for pid, frame := range targets {
		frame.Latch().Lock()
		m.flushFrameLocked(pid, frame)
		frame.Latch().Unlock()
	}
}

// FlushAllPagesUnsafe flushes every resident page under the pool latch
// alone, omitting per-frame latches.
func (m *Manager) FlushAllPagesUnsafe() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for pid, fid := range m.pageTable {
		m.flushFrameLocked(pid, m.frames[fid])
	}
}
