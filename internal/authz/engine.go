// Package authz implements the layered permission-resolution engine:
// role assignments with per-user overlays, full-role and scoped
// delegations, group access-control lists, and an attribute-based policy
// evaluator, composed by the resolver entry points.
package authz

import (
	"github.com/sirupsen/logrus"

	"github.com/Timi16/Teye-Contracts/pkg/monitoring"
	"github.com/Timi16/Teye-Contracts/pkg/store"
)

// Engine resolves permissions against a keyed state store. It performs no
// locking and spawns no goroutines; atomicity across operations is the
// caller's transaction boundary. All expiry is evaluated lazily against
// the injected clock.
type Engine struct {
	store   store.Store
	clock   Clock
	logger  *logrus.Logger
	metrics *monitoring.MetricsCollector
}

// NewEngine creates a new resolution engine. metrics may be nil when the
// engine runs without a collector, as in unit tests.
func NewEngine(st store.Store, clock Clock, logger *logrus.Logger, metrics *monitoring.MetricsCollector) *Engine {
	return &Engine{
		store:   st,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// now returns the engine clock reading as unix seconds.
func (e *Engine) now() int64 {
	return e.clock.Now().Unix()
}
