package clock

import "time"

// Clock provides the current instant so settlement dates can be injected in tests
type Clock interface {
	Now() time.Time
}

// UTCClock implements Clock using the system clock, normalised to UTC
type UTCClock struct{}

// New creates a new UTCClock
func New() *UTCClock {
	return &UTCClock{}
}

// Now returns the current UTC time
func (c *UTCClock) Now() time.Time {
	return time.Now().UTC()
}

// Starting returns a Clock that reads at when created and advances with the
// system clock from there, used for replaying a run as of a given instant
func Starting(at time.Time) Clock {
	return &offsetClock{offset: at.Sub(time.Now())}
}

type offsetClock struct {
	offset time.Duration
}

func (c *offsetClock) Now() time.Time {
	return time.Now().Add(c.offset).UTC()
}
