package session

import "time"

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler creates eviction timers and tells the time.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

// wallClock schedules on the runtime timer heap.
type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

func (wallClock) Now() time.Time { return time.Now() }
