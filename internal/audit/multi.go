package audit

import (
	"context"
	"errors"
	"fmt"
)

// #region multi-sink
// MultiSink writes each record to every sink in order. The record is
// confirmed only if every sink confirms it.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink fans out to sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Append seals rec once so every sink stores the same digest.
func (m *MultiSink) Append(ctx context.Context, rec Record) error {
	if len(m.sinks) == 0 {
		return errors.New("append audit: no sinks configured")
	}
	sealed, err := Seal(rec)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	var errs []error
	for i, s := range m.sinks {
		if err := s.Append(ctx, sealed); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// #endregion multi-sink
