package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryogrid/pagecache/diskio"
)

func newTestManager(t *testing.T, size, k int) *Manager {
	t.Helper()
	opts := Options{PoolSize: size, ReplacerK: k, Disk: diskio.NewMemManager()}
	m := New(opts)
	t.Cleanup(m.Close)
	return m
}

// Scenario 1: pin every frame, a fourth checked fetch must fail.
func TestManager_PoolExhaustedOnAllPinned(t *testing.T) {
	m := newTestManager(t, 3, 2)

	p0, p1, p2, p3 := m.NewPage(), m.NewPage(), m.NewPage(), m.NewPage()

	g0 := m.WritePage(p0)
	g1 := m.WritePage(p1)
	g2 := m.WritePage(p2)
	defer g0.Drop()
	defer g1.Drop()
	defer g2.Drop()

	_, ok := m.CheckedWritePage(p3)
	assert.False(t, ok, "no free frame and nothing evictable: must fail, not abort")
}

// Scenario 3 + round-trip: write bytes through a write guard, drop,
// fetch again, observe them.
func TestManager_RoundTripAfterWrite(t *testing.T) {
	m := newTestManager(t, 3, 2)
	p0 := m.NewPage()

	wg := m.WritePage(p0)
	wg.DataMut()[0] = 0xAB
	wg.Drop()

	rg := m.ReadPage(p0)
	assert.Equal(t, byte(0xAB), rg.Data()[0])
	rg.Drop()
}

// Round-trip across an interposed eviction: force pressure by filling
// the pool with other pages, then re-fetch the original.
func TestManager_RoundTripSurvivesEviction(t *testing.T) {
	m := newTestManager(t, 2, 2)

	p0 := m.NewPage()
	wg := m.WritePage(p0)
	wg.DataMut()[0] = 0xCD
	wg.Drop()

	// Fill the pool with two more pages, unpinned, to force p0 out.
	p1, p2 := m.NewPage(), m.NewPage()
	g1 := m.ReadPage(p1)
	g1.Drop()
	g2 := m.ReadPage(p2)
	g2.Drop()

	rg := m.ReadPage(p0)
	assert.Equal(t, byte(0xCD), rg.Data()[0], "dirty page must survive eviction round-trip")
	rg.Drop()
}

// Scenario 4: flush is idempotent.
func TestManager_FlushIdempotent(t *testing.T) {
	m := newTestManager(t, 3, 2)
	p0 := m.NewPage()

	wg := m.WritePage(p0)
	wg.DataMut()[0] = 1
	wg.Drop()

	ok1 := m.FlushPage(p0)
	require.True(t, ok1)

	pinBefore, _ := m.GetPinCount(p0)
	ok2 := m.FlushPage(p0)
	require.True(t, ok2)
	pinAfter, _ := m.GetPinCount(p0)
	assert.Equal(t, pinBefore, pinAfter)
}

// Scenario 5: deleting a never-resident page deallocates and returns
// true both times.
func TestManager_DeleteNonResidentPage(t *testing.T) {
	m := newTestManager(t, 3, 2)
	p := m.NewPage()

	assert.True(t, m.DeletePage(p))
	assert.True(t, m.DeletePage(p))
}

// Scenario 6: deleting a pinned page fails.
func TestManager_DeletePinnedPageFails(t *testing.T) {
	m := newTestManager(t, 3, 2)
	p0 := m.NewPage()

	rg := m.ReadPage(p0)
	defer rg.Drop()

	assert.False(t, m.DeletePage(p0))
}

// Monotonic page ids: two NewPage calls never collide, and the
// sequence is strictly increasing.
func TestManager_NewPageMonotonic(t *testing.T) {
	m := newTestManager(t, 3, 2)
	a := m.NewPage()
	b := m.NewPage()
	assert.Less(t, int64(a), int64(b))
}

// Eviction exclusion: a pinned page's frame is never chosen as a
// victim, so fetching one more page than capacity with one page
// pinned must fail rather than evict the pinned page.
func TestManager_PinnedFrameNeverEvicted(t *testing.T) {
	m := newTestManager(t, 1, 2)
	p0 := m.NewPage()
	g0 := m.WritePage(p0)
	defer g0.Drop()

	p1 := m.NewPage()
	_, ok := m.CheckedReadPage(p1)
	assert.False(t, ok)

	count, resident := m.GetPinCount(p0)
	require.True(t, resident)
	assert.Equal(t, int64(1), count)
}

// Capacity bound: at most N frames are ever simultaneously resident.
func TestManager_CapacityBound(t *testing.T) {
	m := newTestManager(t, 2, 2)

	ids := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		p := m.NewPage()
		g := m.ReadPage(p)
		g.Drop()
		ids = append(ids, i)
	}

	audit := m.PoolAudit()
	assert.LessOrEqual(t, audit.Cardinality(), 2)
}

// Guard uniqueness: a write guard excludes concurrent write or read
// access — checked here only via pin accounting: a live write guard
// must itself show pin_count 1. Latch-level exclusion is not exercised
// by this test.
func TestManager_WriteGuardHoldsExclusivePin(t *testing.T) {
	m := newTestManager(t, 3, 2)
	p0 := m.NewPage()

	wg := m.WritePage(p0)
	count, _ := m.GetPinCount(p0)
	assert.Equal(t, int64(1), count)
	wg.Drop()
}

func TestManager_SizeReportsCapacity(t *testing.T) {
	m := newTestManager(t, 7, 2)
	assert.Equal(t, 7, m.Size())
}
