package phraseflow

import "time"

// Clock supplies the current instant. Injected so sliding-window logic is
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

var _ Clock = SystemClock{}

func (SystemClock) Now() time.Time { return time.Now() }
