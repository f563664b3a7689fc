package session

import "time"

// Clock is the session's view of time. Throttling compares timestamps;
// AfterFunc only schedules the post-ready restore seek.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine after d. The returned func
	// cancels the call if it has not happened yet.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
