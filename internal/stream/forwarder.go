package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// DefaultSubject is where released epochs are published when no subject is
// configured.
const DefaultSubject = "gate.epochs.released"

const flushTimeout = 10 * time.Second

// #region forwarder
// NATSForwarder releases approved epoch batches downstream. The epochs are
// published exactly as they were evaluated.
type NATSForwarder struct {
	conn    *nats.Conn
	subject string
}

// NewNATSForwarder connects to NATS with automatic reconnection. Extra
// nats.Option values are appended to the defaults.
func NewNATSForwarder(url, subject string, opts ...nats.Option) (*NATSForwarder, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	defaults := []nats.Option{
		nats.Name("decision-gate forwarder"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSForwarder{conn: nc, subject: subject}, nil
}

// Subject returns the subject epochs are published on.
func (f *NATSForwarder) Subject() string {
	return f.subject
}

// Forward publishes epochs as one JSON array and waits for the server to
// acknowledge the flush, so a nil return means the batch left the process.
func (f *NATSForwarder) Forward(ctx context.Context, epochs []verdict.EpochRow) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("forwarding epochs: %w", err)
	}
	if epochs == nil {
		epochs = []verdict.EpochRow{}
	}
	data, err := json.Marshal(epochs)
	if err != nil {
		return fmt.Errorf("marshaling epochs: %w", err)
	}
	if err := f.conn.Publish(f.subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", f.subject, err)
	}
	if err := f.flush(ctx); err != nil {
		return fmt.Errorf("flushing %s: %w", f.subject, err)
	}
	return nil
}

// FlushWithContext refuses contexts without a deadline.
func (f *NATSForwarder) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); ok {
		return f.conn.FlushWithContext(ctx)
	}
	return f.conn.FlushTimeout(flushTimeout)
}

// Close drains pending publishes and closes the connection.
func (f *NATSForwarder) Close() error {
	return f.conn.Drain()
}

// #endregion forwarder
