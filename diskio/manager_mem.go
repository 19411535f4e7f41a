package diskio

import (
	"io"
	"sync"

	"github.com/dsnet/golib/memfile"

	"github.com/ryogrid/pagecache/common"
	"github.com/ryogrid/pagecache/types"
)

// MemManager is an in-memory Manager backed by memfile.File. It gives
// tests a deterministic, filesystem-free disk — exactly the role the
// teacher's VirtualDiskManagerImpl plays for its own test suite.
type MemManager struct {
	mu         sync.Mutex
	db         *memfile.File
	nextPageID types.PageID
	numWrites  uint64
	size       int64
}

// NewMemManager returns a fresh, empty in-memory Manager.
func NewMemManager() *MemManager {
	return &MemManager{db: memfile.New(make([]byte, 0))}
}

func (d *MemManager) ShutDown() {}

func (d *MemManager) WritePage(pageId types.PageID, pageData []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	offset := int64(pageId) * int64(common.PageSize)
	if _, err := d.db.WriteAt(pageData, offset); err != nil {
		return err
	}
	d.numWrites++
	if offset+int64(len(pageData)) > d.size {
		d.size = offset + int64(len(pageData))
	}
	return nil
}

func (d *MemManager) ReadPage(pageID types.PageID, pageData []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	offset := int64(pageID) * int64(common.PageSize)
	if offset >= d.size {
		// Never written: the buffer pool already zeroed the frame via
		// Reset(), so a freshly allocated page reads back as zeros
		// instead of failing the fetch.
		for i := range pageData {
			pageData[i] = 0
		}
		return nil
	}

	n, err := d.db.ReadAt(pageData, offset)
	if err != nil && err != io.EOF {
		return err
	}
	if n < len(pageData) {
		for i := n; i < len(pageData); i++ {
			pageData[i] = 0
		}
	}
	return nil
}

func (d *MemManager) AllocatePage() types.PageID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextPageID
	d.nextPageID++
	return id
}

func (d *MemManager) DeallocatePage(types.PageID) {}

func (d *MemManager) GetNumWrites() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.numWrites
}

func (d *MemManager) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}
