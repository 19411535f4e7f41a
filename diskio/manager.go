// Package diskio is the external collaborator spec.md treats as given:
// a block device abstraction keyed by page id, plus the single-worker
// asynchronous scheduler that sits in front of it.
package diskio

import "github.com/ryogrid/pagecache/types"

// Manager reads and writes fixed-size page images and allocates page
// ids on disk. It is the synchronous primitive; Scheduler is the
// asynchronous façade every other component actually talks to.
type Manager interface {
	ReadPage(id types.PageID, data []byte) error
	WritePage(id types.PageID, data []byte) error
	AllocatePage() types.PageID
	DeallocatePage(id types.PageID)
	GetNumWrites() uint64
	Size() int64
	ShutDown()
}
