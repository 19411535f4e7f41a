package diskio

import (
	"github.com/ryogrid/pagecache/common"
	"github.com/ryogrid/pagecache/types"
)

// direction distinguishes a read request from a write request.
type direction int

const (
	read direction = iota
	write
)

// Request bundles a disk operation with a completion channel the
// caller blocks on. Deallocate requests carry a nil Data.
type Request struct {
	PageID      types.PageID
	Data        []byte
	dir         direction
	Deallocate  bool
	completion  chan bool
}

// Scheduler serializes disk access through a single background worker,
// mirroring original_source/src/storage/disk/disk_scheduler.cpp: one
// goroutine drains a buffered channel of requests in submission order,
// fulfilling each one's completion channel with success/failure.
type Scheduler struct {
	manager Manager
	queue   chan *Request
	done    chan struct{}
}

// NewScheduler starts the worker goroutine and returns a ready
// Scheduler. Callers must eventually call ShutDown.
func NewScheduler(manager Manager) *Scheduler {
	s := &Scheduler{
		manager: manager,
		queue:   make(chan *Request, 256),
		done:    make(chan struct{}),
	}
	go s.worker()
	return s
}

// Schedule enqueues r and returns without waiting for it to complete
// (it blocks only while the queue is full); the caller reads r's
// completion channel to learn the outcome.
func (s *Scheduler) Schedule(r *Request) {
	s.queue <- r
}

// ScheduleRead enqueues a synchronous-looking read and blocks until the
// worker has filled data from disk, returning its success.
func (s *Scheduler) ScheduleRead(id types.PageID, data []byte) bool {
	r := &Request{PageID: id, Data: data, dir: read, completion: make(chan bool, 1)}
	s.Schedule(r)
	return <-r.completion
}

// ScheduleWrite enqueues a synchronous-looking write and blocks until
// the worker has persisted data, returning its success.
func (s *Scheduler) ScheduleWrite(id types.PageID, data []byte) bool {
	r := &Request{PageID: id, Data: data, dir: write, completion: make(chan bool, 1)}
	s.Schedule(r)
	return <-r.completion
}

// ScheduleDeallocate enqueues a deallocation; it always reports success
// since the underlying Manager's DeallocatePage cannot fail.
func (s *Scheduler) ScheduleDeallocate(id types.PageID) bool {
	r := &Request{PageID: id, dir: write, Deallocate: true, completion: make(chan bool, 1)}
	s.Schedule(r)
	return <-r.completion
}

// ShutDown enqueues the end-of-stream marker, waits for the worker to
// drain everything queued ahead of it, then returns.
func (s *Scheduler) ShutDown() {
	s.queue <- nil
	<-s.done
}

func (s *Scheduler) worker() {
	defer close(s.done)
	for req := range s.queue {
		if req == nil {
			return
		}
		s.execute(req)
	}
}

func (s *Scheduler) execute(req *Request) {
	if req.Deallocate {
		s.manager.DeallocatePage(req.PageID)
		req.completion <- true
		return
	}

	var err error
	if req.dir == write {
		err = s.manager.WritePage(req.PageID, req.Data)
	} else {
		err = s.manager.ReadPage(req.PageID, req.Data)
	}
	if err != nil {
		common.Logger().Error("diskio: request failed", "page", req.PageID, "write", req.dir == write, "err", err)
	}
	req.completion <- err == nil
}
