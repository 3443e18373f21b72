package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// #region jetstream-sink
// JetStreamSink appends audit records to a JetStream stream. A record counts
// as written once the server acknowledges it; the round id is used as the
// message id so a redelivered append is de-duplicated server-side.
type JetStreamSink struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	stream  string
	subject string
}

// NewJetStreamSink connects to url and ensures an append-only stream named
// stream captures subject.>.
func NewJetStreamSink(ctx context.Context, url, stream, subject string) (*JetStreamSink, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       stream,
		Subjects:   []string{subject + ".>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		DenyDelete: true,
		DenyPurge:  true,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", stream, err)
	}
	return &JetStreamSink{conn: nc, js: js, stream: stream, subject: subject}, nil
}

// Subject returns the subject a record of kind k is published on.
func (s *JetStreamSink) Subject(k Kind) string {
	return s.subject + "." + string(k)
}

// Append publishes rec and waits for the stream's acknowledgement.
func (s *JetStreamSink) Append(ctx context.Context, rec Record) error {
	if rec.Digest == "" {
		sealed, err := Seal(rec)
		if err != nil {
			return fmt.Errorf("append audit: %w", err)
		}
		rec = sealed
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("append audit: marshal: %w", err)
	}
	if _, err := s.js.Publish(ctx, s.Subject(rec.Kind), data, jetstream.WithMsgID(rec.RoundID)); err != nil {
		return fmt.Errorf("append audit %s: %w", rec.RoundID, err)
	}
	return nil
}

// Close closes the NATS connection.
func (s *JetStreamSink) Close() error {
	s.conn.Close()
	return nil
}

// #endregion jetstream-sink
