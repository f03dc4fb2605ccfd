package browserpool

import (
	"context"
	"time"
)

// Engine is a live automation-engine handle the pool manages.
// Implementations must tolerate Close being called while work is in flight;
// shutdown is best-effort.
type Engine interface {
	// Connected reports whether the underlying engine process is still
	// attached. A disconnected engine is retired, never re-issued.
	Connected() bool

	// Reset returns the engine to a clean reusable condition, closing any
	// auxiliary automation contexts it accumulated.
	Reset(ctx context.Context) error

	// Close terminates the engine process.
	Close(ctx context.Context) error
}

// Launcher starts new engines for the pool.
type Launcher interface {
	Launch(ctx context.Context) (Engine, error)
}

// Instance is one pooled engine. While idle it is owned exclusively by the
// pool; during a lease it belongs to exactly one caller. All bookkeeping
// fields are guarded by the pool's mutex.
type Instance struct {
	id         string
	engine     Engine
	createdAt  time.Time
	lastUsedAt time.Time
	usageCount int
}

// ID returns the instance's opaque identity.
func (i *Instance) ID() string { return i.id }

// Engine returns the leased engine handle.
func (i *Instance) Engine() Engine { return i.engine }

// CreatedAt returns when the instance was launched.
func (i *Instance) CreatedAt() time.Time { return i.createdAt }

// LastUsedAt returns when the instance was last acquired.
func (i *Instance) LastUsedAt() time.Time { return i.lastUsedAt }

// UsageCount returns how many times the instance has been acquired.
func (i *Instance) UsageCount() int { return i.usageCount }
