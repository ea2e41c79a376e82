// Package config loads the TOML file that configures ckeylockd: the bind
// address, the client-facing shared secret, the snapshot passphrase and
// path, and an optional worker cap for inbound frame dispatch.
//
// Grounded on the original Rust implementation's conf.rs (same field
// names, same TOML shape) and on the teacher's infrastructure/config
// package for the env-var fallback convention, adapted from
// EnvOrSecret/GetEnv-style helpers to the toml-file-first model this
// service actually uses.
package config

import (
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/oblivisheee/ckeylock/internal/apperror"
)

// DefaultPath is the configuration file ckeylockd reads when none is given
// on the command line.
const DefaultPath = "Ckeylock.toml"

// Config is the on-disk shape of Ckeylock.toml.
type Config struct {
	Bind         string  `toml:"bind"`
	Password     *string `toml:"password"`
	DumpPassword string  `toml:"dump_password"`
	DumpPath     string  `toml:"dump_path"`
	Workers      *int    `toml:"workers"`
}

// Load reads and parses the TOML file at path. A missing file surfaces as
// apperror.CodeConfigNotFound so callers can tell "no config" apart from a
// malformed one.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.ConfigNotFound(path)
		}
		return nil, apperror.ConfigIO(err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, apperror.ConfigParse(err)
	}
	return &cfg, nil
}

// RequiresAuth reports whether clients must present an Authorization header
// matching Password. A nil or empty Password disables the check.
func (c *Config) RequiresAuth() bool {
	return c.Password != nil && *c.Password != ""
}

// WorkerLimit returns the configured concurrent-frame-dispatch cap, or 0
// (unbounded) when Workers is absent or non-positive.
func (c *Config) WorkerLimit() int {
	if c.Workers == nil || *c.Workers <= 0 {
		return 0
	}
	return *c.Workers
}

// envOr returns the trimmed value of the environment variable key, or
// fallback if it is unset or blank.
func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// BindFromEnv resolves the address a client dials by CKEYLOCK_BIND,
// falling back to fallback when unset.
func BindFromEnv(fallback string) string {
	return envOr("CKEYLOCK_BIND", fallback)
}

// PasswordFromEnv resolves the shared secret a client authenticates with by
// CKEYLOCK_PASSWORD, falling back to fallback when unset.
func PasswordFromEnv(fallback string) string {
	return envOr("CKEYLOCK_PASSWORD", fallback)
}

