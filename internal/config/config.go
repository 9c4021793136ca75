// Package config loads volxfer settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eugenetaranov/volxfer/internal/outcome"
	"github.com/eugenetaranov/volxfer/internal/transfer"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VOLXFER_"

// Config holds volxfer settings.
type Config struct {
	// DockerBinary is the container-runtime CLI on both hosts.
	DockerBinary string `yaml:"docker_binary"`

	// SSHBinary is the ssh client used for the transfer hop.
	SSHBinary string `yaml:"ssh_binary"`

	// SSHOptions are passed to ssh as -o options.
	SSHOptions []string `yaml:"ssh_options"`

	// Image runs the disposable archive and extract containers.
	Image string `yaml:"image"`

	// DefaultUser is assumed for hosts given without "user@".
	DefaultUser string `yaml:"default_user"`

	// DefaultHost is used when no --host flag is given.
	DefaultHost string `yaml:"default_host"`

	// Mode is "direct" or "staged".
	Mode string `yaml:"mode"`

	// FailurePolicy is "stderr" or "exit-code".
	FailurePolicy string `yaml:"failure_policy"`

	// CheckSource verifies the local source volume before transferring.
	CheckSource bool `yaml:"check_source"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DockerBinary:  "docker",
		SSHBinary:     "ssh",
		Image:         "alpine",
		Mode:          string(transfer.ModeDirect),
		FailurePolicy: string(outcome.PolicyStderr),
		CheckSource:   true,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/volxfer/config.yaml, falling back to
// ~/.config.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "volxfer", "config.yaml")
}

// Load builds the configuration from defaults, the YAML file at path and
// VOLXFER_* environment variables, in increasing precedence. A .env file in
// the working directory is loaded first if present. A missing file at path is
// not an error.
func Load(path string) (*Config, error) {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.DockerBinary, "DOCKER_BINARY")
	setString(&c.SSHBinary, "SSH_BINARY")
	setString(&c.Image, "IMAGE")
	setString(&c.DefaultUser, "DEFAULT_USER")
	setString(&c.DefaultHost, "DEFAULT_HOST")
	setString(&c.Mode, "MODE")
	setString(&c.FailurePolicy, "FAILURE_POLICY")

	if v := os.Getenv(EnvPrefix + "SSH_OPTIONS"); v != "" {
		c.SSHOptions = strings.Split(v, ",")
	}

	if v := os.Getenv(EnvPrefix + "CHECK_SOURCE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ValidationError{Field: "check_source", Err: err}
		}
		c.CheckSource = b
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config field '%s': %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"docker_binary", c.DockerBinary},
		{"ssh_binary", c.SSHBinary},
		{"image", c.Image},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Err: errors.New("cannot be empty")}
		}
	}

	if _, err := transfer.ParseMode(c.Mode); err != nil {
		return &ValidationError{Field: "mode", Err: err}
	}
	if _, err := outcome.ParsePolicy(c.FailurePolicy); err != nil {
		return &ValidationError{Field: "failure_policy", Err: err}
	}

	return nil
}

// TransferMode returns the parsed transfer mode.
func (c *Config) TransferMode() transfer.Mode {
	m, _ := transfer.ParseMode(c.Mode)
	return m
}

// Policy returns the parsed failure policy.
func (c *Config) Policy() outcome.Policy {
	p, _ := outcome.ParsePolicy(c.FailurePolicy)
	return p
}

// YAML renders the configuration.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return string(data), nil
}
