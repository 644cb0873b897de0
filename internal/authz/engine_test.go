package authz

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Timi16/Teye-Contracts/pkg/store"
)

// fakeClock is an adjustable clock for deterministic expiry tests.
type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() time.Time { return time.Unix(c.now, 0) }

// newTestEngine builds an engine over a fresh memory store with the clock
// pinned at now.
func newTestEngine(now int64) (*Engine, *fakeClock) {
	clock := &fakeClock{now: now}
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewEngine(store.NewMemory(), clock, log, nil), clock
}
