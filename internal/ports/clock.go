package ports

import "time"

// Clock abstracts wall-clock time for stores that stamp records.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
