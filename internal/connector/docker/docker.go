// Package docker builds container-runtime CLI invocations for the local daemon
// and for daemons on remote hosts reached over SSH.
package docker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eugenetaranov/volxfer/internal/connector"
)

// ErrEmptyHost is returned when a host identifier is blank.
var ErrEmptyHost = errors.New("host cannot be empty")

// Host identifies a remote machine reachable over SSH.
type Host struct {
	// User is the SSH login, empty when ssh should pick it.
	User string

	// Address is the hostname or IP address, optionally with ":port".
	Address string
}

// ParseHost parses "user@address" or a bare "address". A bare address gets
// defaultUser when one is given.
func ParseHost(s, defaultUser string) (Host, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Host{}, ErrEmptyHost
	}

	if user, addr, ok := strings.Cut(s, "@"); ok {
		if addr == "" {
			return Host{}, fmt.Errorf("invalid host %q: missing address", s)
		}
		return Host{User: user, Address: addr}, nil
	}

	return Host{User: defaultUser, Address: s}, nil
}

// SSHTarget returns the destination in the form the ssh client accepts.
func (h Host) SSHTarget() string {
	addr, _, _ := strings.Cut(h.Address, ":")
	if h.User == "" {
		return addr
	}
	return h.User + "@" + addr
}

// Port returns the explicit SSH port, or "" if none was given.
func (h Host) Port() string {
	_, port, _ := strings.Cut(h.Address, ":")
	return port
}

// DaemonURL returns the ssh:// URL used with the CLI's -H flag.
func (h Host) DaemonURL() string {
	if h.User == "" {
		return "ssh://" + h.Address
	}
	return "ssh://" + h.User + "@" + h.Address
}

// String returns the host as the user typed it.
func (h Host) String() string {
	if h.User == "" {
		return h.Address
	}
	return h.User + "@" + h.Address
}

// CLI runs container-runtime commands through a connector.Runner.
type CLI struct {
	runner connector.Runner
	binary string
}

// Option configures the CLI.
type Option func(*CLI)

// WithBinary sets the container-runtime binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		c.binary = binary
	}
}

// New creates a new CLI using runner to execute commands.
func New(runner connector.Runner, opts ...Option) *CLI {
	c := &CLI{
		runner: runner,
		binary: "docker",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Binary returns the container-runtime binary name.
func (c *CLI) Binary() string {
	return c.binary
}

// Remote runs a command against the daemon on host.
func (c *CLI) Remote(ctx context.Context, host Host, args ...string) (*connector.Result, error) {
	return c.runner.Exec(ctx, c.binary, RemoteArgs(host, args...)...)
}

// RemoteArgs prefixes args with the -H flag selecting the daemon on host.
func RemoteArgs(host Host, args ...string) []string {
	return append([]string{"-H", host.DaemonURL()}, args...)
}
