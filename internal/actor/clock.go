package actor

import "time"

// Clock is the time source of runtimes. Reducers never read it; runtimes
// stamp the inputs they emit instead.
type Clock interface {
	Now() time.Time
}

// RealClock is a Clock backed by time.Now.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }
