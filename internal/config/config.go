// Package config reads node settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/ryandielhenn/cachelab/pkg/hashtable"
)

type Config struct {
	ListenAddr string
	SelfID     string
	SelfAddr   string

	InitialBuckets int
	DefaultTTL     time.Duration // zero disables expiry
	HashFunc       string

	MaxBodyBytes    int64
	LogLevel        string
	ShutdownTimeout time.Duration

	EtcdEndpoints   []string
	RegistrationTTL int64 // seconds
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":8080",
		InitialBuckets:  hashtable.DefaultSize,
		HashFunc:        "additive",
		MaxBodyBytes:    1 << 20,
		LogLevel:        "info",
		ShutdownTimeout: 5 * time.Second,
		RegistrationTTL: 10,
	}
}

// FromEnv loads the configuration from the process environment.
func FromEnv() (Config, error) {
	return Load(os.Getenv)
}

// Load builds a Config from DefaultConfig overridden by the variables getenv
// returns. Every malformed or invalid variable is reported in the error.
func Load(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	var errs error

	if v := getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	cfg.SelfID = getenv("SELF_ID")
	if cfg.SelfID == "" {
		cfg.SelfID = uuid.NewString()
	}
	cfg.SelfAddr = getenv("SELF_ADDR")
	if cfg.SelfAddr == "" {
		cfg.SelfAddr = cfg.ListenAddr
	}

	if v := getenv("INITIAL_BUCKETS"); v != "" {
		n, err := strconv.Atoi(v)
		errs = multierr.Append(errs, wrap("INITIAL_BUCKETS", err))
		if err == nil {
			cfg.InitialBuckets = n
		}
	}
	if v := strings.TrimSpace(getenv("DEFAULT_TTL_MS")); v != "" && v != "none" {
		ms, err := strconv.ParseInt(v, 10, 64)
		errs = multierr.Append(errs, wrap("DEFAULT_TTL_MS", err))
		if err == nil {
			cfg.DefaultTTL = time.Duration(ms) * time.Millisecond
		}
	}
	if v := getenv("HASH_FUNC"); v != "" {
		cfg.HashFunc = v
	}
	if v := getenv("MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		errs = multierr.Append(errs, wrap("MAX_BODY_BYTES", err))
		if err == nil {
			cfg.MaxBodyBytes = n
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("SHUTDOWN_TIMEOUT_MS"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		errs = multierr.Append(errs, wrap("SHUTDOWN_TIMEOUT_MS", err))
		if err == nil {
			cfg.ShutdownTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := getenv("ETCD_ENDPOINTS"); v != "" {
		for _, ep := range strings.Split(v, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				cfg.EtcdEndpoints = append(cfg.EtcdEndpoints, ep)
			}
		}
	}
	if v := getenv("REGISTRATION_TTL"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		errs = multierr.Append(errs, wrap("REGISTRATION_TTL", err))
		if err == nil {
			cfg.RegistrationTTL = n
		}
	}

	return cfg, multierr.Append(errs, cfg.Validate())
}

// Validate reports every out-of-range setting at once.
func (c Config) Validate() error {
	var errs error
	if c.ListenAddr == "" {
		errs = multierr.Append(errs, fmt.Errorf("LISTEN_ADDR must not be empty"))
	}
	if c.InitialBuckets <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("INITIAL_BUCKETS must be positive, got %d", c.InitialBuckets))
	}
	if c.DefaultTTL < 0 {
		errs = multierr.Append(errs, fmt.Errorf("DEFAULT_TTL_MS must not be negative, got %s", c.DefaultTTL))
	}
	if _, err := hashtable.HasherByName(c.HashFunc); err != nil {
		errs = multierr.Append(errs, wrap("HASH_FUNC", err))
	}
	if c.MaxBodyBytes <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes))
	}
	if c.ShutdownTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT_MS must be positive, got %s", c.ShutdownTimeout))
	}
	if len(c.EtcdEndpoints) > 0 && c.RegistrationTTL <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("REGISTRATION_TTL must be positive, got %d", c.RegistrationTTL))
	}
	return errs
}

func wrap(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}
