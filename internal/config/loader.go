package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// #region load
// Load returns the config at path layered over Defaults, then overridden by
// GATE_* environment variables. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}

	if err := loadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, nil
}

func loadFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

// #endregion load

// #region env
func loadEnv(cfg *Config) error {
	cfg.Host = envOr("GATE_HOST_ID", cfg.Host)
	cfg.Authority.Transport = envOr("GATE_TRANSPORT", cfg.Authority.Transport)
	cfg.Authority.URL = envOr("GATE_AUTHORITY_URL", cfg.Authority.URL)
	cfg.Authority.RPCURL = envOr("GATE_RPC_URL", cfg.Authority.RPCURL)
	cfg.Authority.GRPCAddr = envOr("GATE_GRPC_ADDR", cfg.Authority.GRPCAddr)
	cfg.Audit.Driver = envOr("GATE_AUDIT_DRIVER", cfg.Audit.Driver)
	cfg.Audit.DSN = envOr("GATE_AUDIT_DSN", cfg.Audit.DSN)
	cfg.NATS.URL = envOr("GATE_NATS_URL", cfg.NATS.URL)
	cfg.NATS.ForwardSubject = envOr("GATE_FORWARD_SUBJECT", cfg.NATS.ForwardSubject)
	cfg.Logging.Level = envOr("GATE_LOG_LEVEL", cfg.Logging.Level)

	if v := os.Getenv("GATE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GATE_TIMEOUT: %w", err)
		}
		cfg.Authority.Timeout = d
	}
	if v := os.Getenv("GATE_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GATE_PARALLELISM: %w", err)
		}
		cfg.Parallelism = n
	}
	if v := os.Getenv("GATE_AUDIT_JETSTREAM"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GATE_AUDIT_JETSTREAM: %w", err)
		}
		cfg.Audit.JetStream = b
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion env

// #region validate
// Validate rejects configs that cannot wire a round.
func (c *Config) Validate() error {
	var errs []error
	switch c.Authority.Transport {
	case TransportHTTP:
		if c.Authority.URL == "" && c.Authority.RPCURL == "" {
			errs = append(errs, errors.New("authority: http transport needs url or rpc_url"))
		}
	case TransportGRPC:
		if c.Authority.GRPCAddr == "" {
			errs = append(errs, errors.New("authority: grpc transport needs grpc_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("authority: unknown transport %q", c.Authority.Transport))
	}
	if c.Authority.Timeout <= 0 {
		errs = append(errs, errors.New("authority: timeout must be positive"))
	}
	if c.Authority.RateLimit < 0 {
		errs = append(errs, errors.New("authority: rate_limit must not be negative"))
	}

	switch c.Audit.Driver {
	case "sqlite", "pgx":
		if c.Audit.DSN == "" {
			errs = append(errs, errors.New("audit: dsn is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("audit: unknown driver %q", c.Audit.Driver))
	}
	if c.Audit.JetStream && c.NATS.URL == "" {
		errs = append(errs, errors.New("audit: jetstream requires nats.url"))
	}

	if c.Parallelism < 1 {
		errs = append(errs, errors.New("parallelism must be at least 1"))
	}
	return errors.Join(errs...)
}

// #endregion validate

// #region policy
// LoadPolicy reads a policy envelope from a JSON or YAML file. Fields the
// file omits keep their strict (enabled) value. An empty path returns
// verdict.StrictPolicy.
func LoadPolicy(path string) (verdict.PolicyEnvelope, error) {
	policy := verdict.StrictPolicy()
	if path == "" {
		return policy, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("read policy %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &policy)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &policy)
	default:
		return policy, fmt.Errorf("policy %s: unsupported format %q", path, filepath.Ext(path))
	}
	if err != nil {
		return verdict.StrictPolicy(), fmt.Errorf("parse policy %s: %w", path, err)
	}
	return policy, nil
}

// #endregion policy
