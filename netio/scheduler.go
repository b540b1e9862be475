package netio

import "runtime"

// Scheduler is the cooperative task runtime surface the rest of the core
// consumes: spawn a new task, voluntarily yield, and bracket a blocking
// system call that the scheduler cannot otherwise absorb.
type Scheduler interface {
	// Spawn starts fn as a new task. The caller does not wait for it.
	Spawn(fn func())

	// Yield voluntarily reschedules the current task.
	Yield()

	// BeginBlocking runs fn on a worker and blocks the calling task until it
	// completes, the way migrating to a worker thread would in a cooperative
	// single-threaded runtime. Use this to bracket a synchronous call --
	// DNS resolution, disk stat -- that has no nonblocking equivalent.
	BeginBlocking(fn func())
}

// GoScheduler is the default Scheduler, mapping Spawn onto a goroutine,
// Yield onto runtime.Gosched, and BeginBlocking onto a bounded worker pool
// fed by a BlockingQueue so a flood of blocking calls backpressures instead
// of spawning unbounded goroutines.
type GoScheduler struct {
	work *BlockingQueue
}

// NewGoScheduler creates a GoScheduler with workers blocking-call workers,
// each pulling jobs off a queue of capacity queueSize (must be a power of
// two).
func NewGoScheduler(workers, queueSize int) *GoScheduler {
	s := &GoScheduler{work: NewBlockingQueue(queueSize)}
	for i := 0; i < workers; i++ {
		go s.runWorker()
	}
	return s
}

func (s *GoScheduler) runWorker() {
	for {
		job := s.work.Pop().(func())
		job()
	}
}

// Spawn implements Scheduler.
func (s *GoScheduler) Spawn(fn func()) {
	go fn()
}

// Yield implements Scheduler.
func (s *GoScheduler) Yield() {
	runtime.Gosched()
}

// BeginBlocking implements Scheduler. It enqueues fn onto the worker pool
// and blocks until a worker has run it to completion.
func (s *GoScheduler) BeginBlocking(fn func()) {
	done := make(chan struct{})
	s.work.Push(func() {
		fn()
		close(done)
	})
	<-done
}
