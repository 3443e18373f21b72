package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, TransportHTTP, cfg.Authority.Transport)
	assert.Equal(t, verdict.StrictPolicy(), cfg.Policy)
	assert.True(t, cfg.Gate.RequireFailureMessage)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "gate.yaml", `
host: bci-07
authority:
  transport: grpc
  grpc_addr: authority:50051
  timeout: 5s
audit:
  driver: pgx
  dsn: postgres://gate@db/audit
policy:
  cognitive_liberty: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bci-07", cfg.Host)
	assert.Equal(t, TransportGRPC, cfg.Authority.Transport)
	assert.Equal(t, 5*time.Second, cfg.Authority.Timeout)
	assert.Equal(t, "pgx", cfg.Audit.Driver)
	assert.False(t, cfg.Policy.CognitiveLiberty)
	assert.True(t, cfg.Policy.MentalPrivacy, "unset policy fields stay strict")
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "gate.toml", `
host = "bci-09"
parallelism = 8

[authority]
url = "http://checker:9000"
rate_limit = 2.5
burst = 3

[gate]
require_failure_message = false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bci-09", cfg.Host)
	assert.Equal(t, 8, cfg.Parallelism)
	assert.Equal(t, "http://checker:9000", cfg.Authority.URL)
	assert.Equal(t, 2.5, cfg.Authority.RateLimit)
	assert.False(t, cfg.Gate.RequireFailureMessage)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "gate.yaml", "host: from-file\n")
	t.Setenv("GATE_HOST_ID", "from-env")
	t.Setenv("GATE_AUDIT_DSN", "/var/lib/gate/audit.db")
	t.Setenv("GATE_PARALLELISM", "2")
	t.Setenv("GATE_TIMEOUT", "750ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Host)
	assert.Equal(t, "/var/lib/gate/audit.db", cfg.Audit.DSN)
	assert.Equal(t, 2, cfg.Parallelism)
	assert.Equal(t, 750*time.Millisecond, cfg.Authority.Timeout)
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("GATE_PARALLELISM", "many")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "gate.ini", "host=x\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown transport", func(c *Config) { c.Authority.Transport = "smoke-signal" }},
		{"http without urls", func(c *Config) { c.Authority.URL, c.Authority.RPCURL = "", "" }},
		{"grpc without addr", func(c *Config) { c.Authority.Transport, c.Authority.GRPCAddr = TransportGRPC, "" }},
		{"unknown driver", func(c *Config) { c.Audit.Driver = "mysql" }},
		{"empty dsn", func(c *Config) { c.Audit.DSN = "" }},
		{"jetstream without nats", func(c *Config) { c.Audit.JetStream = true }},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"zero timeout", func(c *Config) { c.Authority.Timeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestLoadPolicy(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, verdict.StrictPolicy(), p)

	jsonPath := writeFile(t, "policy.json", `{"mental_privacy": false}`)
	p, err = LoadPolicy(jsonPath)
	require.NoError(t, err)
	assert.False(t, p.MentalPrivacy)
	assert.True(t, p.SoulNonAddressable)

	yamlPath := writeFile(t, "policy.yaml", "non_commercial_neural: false\n")
	p, err = LoadPolicy(yamlPath)
	require.NoError(t, err)
	assert.False(t, p.NonCommercialNeural)
	assert.True(t, p.MentalIntegrity)

	badPath := writeFile(t, "policy.json", `{"mental_privacy": "maybe"}`)
	p, err = LoadPolicy(badPath)
	require.Error(t, err)
	assert.Equal(t, verdict.StrictPolicy(), p, "a bad policy file falls back to strict")

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
