package round

import (
	"time"

	"github.com/google/uuid"
)

// #region capabilities
// IDSource issues round identifiers. Identifiers must never repeat.
type IDSource interface {
	NewID() string
}

// Clock supplies evaluation timestamps.
type Clock interface {
	Now() time.Time
}

// UUIDSource issues random v4 UUIDs.
type UUIDSource struct{}

func (UUIDSource) NewID() string { return uuid.New().String() }

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Env bundles the injected identifier and time sources.
type Env struct {
	IDs   IDSource
	Clock Clock
}

// DefaultEnv returns the production sources.
func DefaultEnv() Env {
	return Env{IDs: UUIDSource{}, Clock: SystemClock{}}
}

func (e Env) withDefaults() Env {
	if e.IDs == nil {
		e.IDs = UUIDSource{}
	}
	if e.Clock == nil {
		e.Clock = SystemClock{}
	}
	return e
}

// #endregion capabilities
