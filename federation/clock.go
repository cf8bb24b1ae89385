package federation

import "time"

// Clock abstracts the current epoch time so builders and the resolver can be tested against
// fixed instants instead of wall-clock time.
type Clock interface {
	Now() int64
}

// SystemClock is a Clock backed by the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 {
	return time.Now().Unix()
}

// FixedClock is a Clock that always returns the same instant, for deterministic tests.
type FixedClock int64

func (c FixedClock) Now() int64 {
	return int64(c)
}
