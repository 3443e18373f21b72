package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/audit"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/channel"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/config"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/gate"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/router"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/stream"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// authority is what both transports offer.
type authority interface {
	Evaluate(ctx context.Context, req verdict.BatchRequest) ([]verdict.Check, error)
	Submit(ctx context.Context, frame verdict.EvolutionFrame) (verdict.RawDecision, error)
	HostSummary(ctx context.Context, host string) (verdict.HostSummary, error)
}

// closers runs cleanup in reverse order of registration.
type closers []func() error

func (c *closers) add(f func() error) { *c = append(*c, f) }

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

func openAuthority(cfg *config.Config, cl *closers) (authority, error) {
	switch cfg.Authority.Transport {
	case config.TransportGRPC:
		ch, err := channel.NewGRPCChannel(cfg.Authority.GRPCAddr)
		if err != nil {
			return nil, err
		}
		cl.add(ch.Close)
		return ch, nil
	default:
		opts := []channel.Option{channel.WithHTTPClient(&http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Authority.Timeout,
		})}
		if cfg.Authority.RateLimit > 0 {
			burst := cfg.Authority.Burst
			if burst < 1 {
				burst = 1
			}
			opts = append(opts, channel.WithRateLimit(cfg.Authority.RateLimit, burst))
		}
		return channel.NewHTTPChannel(cfg.Authority.URL, cfg.Authority.RPCURL, opts...), nil
	}
}

// openSink returns the SQL sink, fanned out with JetStream when enabled.
func openSink(ctx context.Context, cfg *config.Config, cl *closers) (router.AuditSink, error) {
	sqlSink, err := audit.OpenSQLSink(ctx, cfg.Audit.Driver, cfg.Audit.DSN)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	cl.add(sqlSink.Close)
	if !cfg.Audit.JetStream {
		return sqlSink, nil
	}

	js, err := audit.NewJetStreamSink(ctx, cfg.NATS.URL, cfg.Audit.Stream, cfg.Audit.Subject)
	if err != nil {
		return nil, fmt.Errorf("open audit stream: %w", err)
	}
	cl.add(js.Close)
	return audit.NewMultiSink(sqlSink, js), nil
}

// openForwarder returns nil, leaving Proceed record-only, when no NATS URL is
// configured.
func openForwarder(cfg *config.Config, cl *closers) (router.Forwarder, error) {
	if cfg.NATS.URL == "" {
		return nil, nil
	}
	f, err := stream.NewNATSForwarder(cfg.NATS.URL, cfg.NATS.ForwardSubject)
	if err != nil {
		return nil, fmt.Errorf("open forwarder: %w", err)
	}
	cl.add(f.Close)
	return f, nil
}

func newGate(cfg *config.Config) *gate.Gate {
	return gate.NewGate(gate.GateConfig{RequireFailureMessage: cfg.Gate.RequireFailureMessage})
}
