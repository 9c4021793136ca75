// Package local provides a connector for executing commands on the local machine.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eugenetaranov/volxfer/internal/connector"
)

// Connector executes commands on the local machine.
type Connector struct {
	env map[string]string
	log zerolog.Logger
}

// Option configures the local connector.
type Option func(*Connector)

// WithEnv adds an environment variable for command execution.
func WithEnv(key, value string) Option {
	return func(c *Connector) {
		if c.env == nil {
			c.env = make(map[string]string)
		}
		c.env[key] = value
	}
}

// WithLogger sets the logger used to trace commands at debug level.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Connector) {
		c.log = log
	}
}

// New creates a new local connector.
func New(opts ...Option) *Connector {
	c := &Connector{
		log: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect verifies we're on a supported platform and that program is on PATH.
func (c *Connector) Connect(ctx context.Context, program string) error {
	switch runtime.GOOS {
	case "darwin", "linux":
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if _, err := exec.LookPath(program); err != nil {
		return fmt.Errorf("%s command not found: %w", program, err)
	}
	return nil
}

// Exec runs a program locally and returns the result.
func (c *Connector) Exec(ctx context.Context, name string, args ...string) (*connector.Result, error) {
	execCmd := exec.CommandContext(ctx, name, args...)
	if len(c.env) > 0 {
		execCmd.Env = os.Environ()
		for k, v := range c.env {
			execCmd.Env = append(execCmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	display := describe(name, args)
	c.log.Debug().Str("cmd", display).Msg("exec")

	err := execCmd.Run()

	result := &connector.Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			c.log.Debug().Str("cmd", display).Int("exit_code", result.ExitCode).Msg("exec failed")
			return result, &connector.ExecError{
				Cmd:    display,
				Stderr: result.Stderr,
				Code:   result.ExitCode,
				Err:    err,
			}
		}
		// Command failed to start
		return nil, &connector.ExecError{Cmd: display, Code: -1, Err: err}
	}

	return result, nil
}

// String returns a description of the connection.
func (c *Connector) String() string {
	u, err := user.Current()
	if err != nil {
		return "local"
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	return fmt.Sprintf("local://%s@%s", u.Username, hostname)
}

func describe(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// Ensure Connector implements the connector.Runner interface.
var _ connector.Runner = (*Connector)(nil)
