package router

import (
	"sync"
	"time"
)

// DefaultFrameInterval is the default coalescing window for pending
// notifications.
const DefaultFrameInterval = 16 * time.Millisecond

// Scheduler defers pending notifications.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func())

func (f SchedulerFunc) Schedule(fn func()) { f(fn) }

// Immediate runs scheduled functions synchronously.
var Immediate Scheduler = SchedulerFunc(func(fn func()) { fn() })

// FrameScheduler runs at most one function per frame. Functions scheduled
// while a frame is pending replace the pending one.
type FrameScheduler struct {
	interval time.Duration

	mu      sync.Mutex
	pending func()
}

// NewFrameScheduler creates a scheduler with the given frame interval.
// A non-positive interval uses DefaultFrameInterval.
func NewFrameScheduler(interval time.Duration) *FrameScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameScheduler{interval: interval}
}

func (s *FrameScheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.pending = fn
		return
	}
	s.pending = fn
	time.AfterFunc(s.interval, s.flush)
}

func (s *FrameScheduler) flush() {
	s.mu.Lock()
	fn := s.pending
	s.pending = nil
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}
