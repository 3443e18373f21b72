// Package config loads gate configuration.
// Precedence: defaults < YAML or TOML file < environment variables.
package config

import (
	"time"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// Transport names.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Config holds everything needed to wire a gating round.
type Config struct {
	Host        string                 `yaml:"host" toml:"host"`
	Parallelism int                    `yaml:"parallelism" toml:"parallelism"`
	Authority   Authority              `yaml:"authority" toml:"authority"`
	Audit       Audit                  `yaml:"audit" toml:"audit"`
	NATS        NATS                   `yaml:"nats" toml:"nats"`
	Gate        Gate                   `yaml:"gate" toml:"gate"`
	Policy      verdict.PolicyEnvelope `yaml:"policy" toml:"policy"`
	Logging     Logging                `yaml:"logging" toml:"logging"`
}

// Authority locates the decision authority.
type Authority struct {
	Transport string        `yaml:"transport" toml:"transport"` // "http" | "grpc"
	URL       string        `yaml:"url" toml:"url"`             // invariant checker base URL
	RPCURL    string        `yaml:"rpc_url" toml:"rpc_url"`     // ledger JSON-RPC endpoint
	GRPCAddr  string        `yaml:"grpc_addr" toml:"grpc_addr"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout"`
	RateLimit float64       `yaml:"rate_limit" toml:"rate_limit"` // requests per second; 0 = unlimited
	Burst     int           `yaml:"burst" toml:"burst"`
}

// Audit selects the audit sinks.
type Audit struct {
	Driver    string `yaml:"driver" toml:"driver"` // "sqlite" | "pgx"
	DSN       string `yaml:"dsn" toml:"dsn"`
	JetStream bool   `yaml:"jetstream" toml:"jetstream"`
	Stream    string `yaml:"stream" toml:"stream"`
	Subject   string `yaml:"subject" toml:"subject"`
}

// NATS configures the connection used for forwarding and the JetStream sink.
type NATS struct {
	URL            string `yaml:"url" toml:"url"`
	ForwardSubject string `yaml:"forward_subject" toml:"forward_subject"`
}

// Gate holds evaluator strictness.
type Gate struct {
	RequireFailureMessage bool `yaml:"require_failure_message" toml:"require_failure_message"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `yaml:"level" toml:"level"`   // debug | info | warn | error
	Format string `yaml:"format" toml:"format"` // text | json
}

// Defaults returns a config that works against local services.
func Defaults() Config {
	return Config{
		Host:        "localhost",
		Parallelism: 4,
		Authority: Authority{
			Transport: TransportHTTP,
			URL:       "http://localhost:8080",
			RPCURL:    "http://localhost:8545",
			GRPCAddr:  "localhost:50051",
			Timeout:   30 * time.Second,
		},
		Audit: Audit{
			Driver:  "sqlite",
			DSN:     "gate_audit.db",
			Stream:  "GATE_AUDIT",
			Subject: "gate.audit",
		},
		NATS: NATS{
			ForwardSubject: "gate.epochs.released",
		},
		Gate:    Gate{RequireFailureMessage: true},
		Policy:  verdict.StrictPolicy(),
		Logging: Logging{Level: "info", Format: "text"},
	}
}
