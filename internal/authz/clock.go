package authz

import "time"

// Clock supplies the current time to the engine. Every expiry check and
// time restriction is computed from this source only, so a decision is
// replayable given the same store contents and clock reading.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock { return systemClock{} }
