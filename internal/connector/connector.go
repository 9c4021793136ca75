// Package connector defines the interface for executing commands on the local
// machine, which may in turn reach remote hosts over SSH.
package connector

import (
	"context"
	"fmt"
	"strings"
)

// Result holds the output from command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Lines returns stdout split into lines, with surrounding whitespace trimmed
// and empty lines dropped.
func (r *Result) Lines() []string {
	if r == nil {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(r.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Runner executes a program with an ordered argument list.
type Runner interface {
	// Exec runs name with args and returns the captured output.
	// A non-zero exit or a failure to start is reported as an *ExecError.
	Exec(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecError is returned when a command could not be run or exited non-zero.
type ExecError struct {
	Cmd    string
	Stderr string
	// Code is the exit code, or -1 if the process never started.
	Code int
	Err  error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("command failed with exit code %d: %s", e.Code, e.Cmd)
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", strings.TrimSpace(e.Stderr))
	} else if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
