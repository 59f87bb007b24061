package animation

import "time"

// Clock provides wall time. Animation progress is driven by the tick time
// handed to the scheduler, never by a Clock; the scheduler only reads its
// Clock to measure how long a tick took. Tests inject a fake clock to make
// that measurement deterministic.
type Clock interface {
	Now() time.Time
}

// SystemClock uses system time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
