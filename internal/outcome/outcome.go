// Package outcome classifies command results into user-facing outcomes.
package outcome

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eugenetaranov/volxfer/internal/connector"
)

// Kind tags an Outcome.
type Kind int

const (
	// Succeeded means the command ran and reported no failure.
	Succeeded Kind = iota

	// CommandFailure means the command ran but reported failure on stderr.
	CommandFailure

	// TransportError means the command could not be run or exited non-zero.
	TransportError
)

func (k Kind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case CommandFailure:
		return "command failure"
	case TransportError:
		return "transport error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Policy decides which signals count as a command failure.
type Policy string

const (
	// PolicyStderr treats any stderr output as a failure.
	PolicyStderr Policy = "stderr"

	// PolicyExitCode only trusts the exit code; stderr becomes a warning.
	PolicyExitCode Policy = "exit-code"
)

// ParsePolicy validates a policy name. An empty name selects PolicyStderr.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyStderr:
		return PolicyStderr, nil
	case PolicyExitCode:
		return PolicyExitCode, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want %q or %q)", s, PolicyStderr, PolicyExitCode)
	}
}

// Outcome is the tagged result of a list or transfer operation.
type Outcome struct {
	Kind    Kind
	Message string

	// Warning holds stderr that was tolerated under PolicyExitCode.
	Warning string
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Kind == Succeeded
}

// Success creates a successful Outcome.
func Success(msg string) Outcome {
	return Outcome{Kind: Succeeded, Message: msg}
}

// Classify maps a command result to an Outcome. prefix is used for the
// message of a TransportError; a success carries an empty message.
func Classify(res *connector.Result, err error, policy Policy, prefix string) Outcome {
	if err != nil {
		return Outcome{Kind: TransportError, Message: transportMessage(prefix, err)}
	}

	if res == nil || res.Stderr == "" {
		return Outcome{Kind: Succeeded}
	}

	if policy == PolicyExitCode {
		return Outcome{Kind: Succeeded, Warning: strings.TrimSpace(res.Stderr)}
	}
	return Outcome{Kind: CommandFailure, Message: strings.TrimSpace(res.Stderr)}
}

func transportMessage(prefix string, err error) string {
	var execErr *connector.ExecError
	if errors.As(err, &execErr) {
		stderr := strings.TrimSpace(execErr.Stderr)
		if stderr == "" && execErr.Err != nil {
			stderr = execErr.Err.Error()
		}
		return fmt.Sprintf("%s: %s Exit code: %d", prefix, stderr, execErr.Code)
	}
	return fmt.Sprintf("%s: %v", prefix, err)
}
