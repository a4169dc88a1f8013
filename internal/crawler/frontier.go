package crawler

import (
	"context"
	"errors"
	"sync"

	"page-crawler/pkg/models"
)

var (
	ErrDepthExceeded  = errors.New("frontier: depth limit exceeded")
	ErrPageLimit      = errors.New("frontier: page limit reached")
	ErrFrontierFull   = errors.New("frontier: queue is full")
	ErrFrontierClosed = errors.New("frontier: closed")
)

// Frontier is the breadth-first queue of entries waiting to be fetched.
//
// It tracks how many popped entries are still being worked on so that Pop can
// tell "empty for now" apart from "empty for good": once the queue is empty
// and nothing is in flight the frontier closes itself and every waiting Pop
// returns.
type Frontier struct {
	maxDepth int
	maxPages int
	capacity int

	mu       sync.Mutex
	queue    []models.FrontierEntry
	pushed   int
	inFlight int
	closed   bool
	wake     chan struct{}
	done     chan struct{}
}

// NewFrontier builds a frontier. A negative maxDepth, and a maxPages or
// capacity of zero or less, mean unlimited.
func NewFrontier(maxDepth, maxPages, capacity int) *Frontier {
	return &Frontier{
		maxDepth: maxDepth,
		maxPages: maxPages,
		capacity: capacity,
		wake:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Check reports whether an entry at depth could still be pushed.
func (f *Frontier) Check(depth int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkLocked(depth)
}

func (f *Frontier) checkLocked(depth int) error {
	if f.closed {
		return ErrFrontierClosed
	}
	if f.maxDepth >= 0 && depth > f.maxDepth {
		return ErrDepthExceeded
	}
	if f.maxPages > 0 && f.pushed >= f.maxPages {
		return ErrPageLimit
	}
	if f.capacity > 0 && len(f.queue) >= f.capacity {
		return ErrFrontierFull
	}
	return nil
}

// Push appends entry to the queue. It never blocks; a rejected entry is
// reported through the returned error and dropped.
func (f *Frontier) Push(entry models.FrontierEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkLocked(entry.Depth); err != nil {
		return err
	}
	f.queue = append(f.queue, entry)
	f.pushed++
	f.broadcastLocked()
	return nil
}

// AdmissionSet records which URLs have been handed to the frontier.
type AdmissionSet interface {
	Contains(u models.NormalizedURL) bool
	TryAdmit(u models.NormalizedURL) bool
}

// Admit pushes entry only if visited has not seen entry.Normalized, marking it
// in the same critical section. A URL that was already admitted reports
// ErrAlreadyVisited before any limit is checked, and a URL rejected by a limit
// is never marked.
func (f *Frontier) Admit(entry models.FrontierEntry, visited AdmissionSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFrontierClosed
	}
	if visited.Contains(entry.Normalized) {
		return ErrAlreadyVisited
	}
	if err := f.checkLocked(entry.Depth); err != nil {
		return err
	}
	if !visited.TryAdmit(entry.Normalized) {
		return ErrAlreadyVisited
	}
	f.queue = append(f.queue, entry)
	f.pushed++
	f.broadcastLocked()
	return nil
}

// Pop hands out the oldest entry, blocking while the queue is empty but other
// entries are still in flight. ok is false once the frontier is closed or ctx
// is done. Every successful Pop must be paired with a call to Done.
func (f *Frontier) Pop(ctx context.Context) (entry models.FrontierEntry, ok bool) {
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return models.FrontierEntry{}, false
		}
		if len(f.queue) > 0 {
			entry = f.queue[0]
			f.queue[0] = models.FrontierEntry{}
			f.queue = f.queue[1:]
			f.inFlight++
			f.mu.Unlock()
			return entry, true
		}
		if f.inFlight == 0 {
			f.closeLocked()
			f.mu.Unlock()
			return models.FrontierEntry{}, false
		}
		wake := f.wake
		f.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return models.FrontierEntry{}, false
		}
	}
}

// Done marks a popped entry as finished.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight > 0 {
		f.inFlight--
	}
	if f.inFlight == 0 && len(f.queue) == 0 {
		f.closeLocked()
	}
}

// Drain closes the frontier immediately, discarding pending entries, and
// returns how many were dropped.
func (f *Frontier) Drain() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	dropped := len(f.queue)
	f.queue = nil
	f.closeLocked()
	return dropped
}

// Closed is closed once the frontier will hand out no more entries.
func (f *Frontier) Closed() <-chan struct{} {
	return f.done
}

func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Pushed returns how many entries were ever accepted.
func (f *Frontier) Pushed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushed
}

func (f *Frontier) closeLocked() {
	if f.closed {
		return
	}
	f.closed = true
	close(f.done)
	f.broadcastLocked()
}

func (f *Frontier) broadcastLocked() {
	close(f.wake)
	f.wake = make(chan struct{})
}
