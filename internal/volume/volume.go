// Package volume lists the named volumes known to a container runtime on a
// remote host.
package volume

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/eugenetaranov/volxfer/internal/connector/docker"
	"github.com/eugenetaranov/volxfer/internal/outcome"
)

// nameFormat asks the CLI for one bare volume name per line.
const nameFormat = "{{ .Name }}"

// Lister lists volumes on remote hosts.
type Lister struct {
	cli         *docker.CLI
	defaultUser string
	policy      outcome.Policy
	log         zerolog.Logger
}

// Option configures the Lister.
type Option func(*Lister)

// WithDefaultUser sets the SSH user assumed for bare host addresses.
func WithDefaultUser(user string) Option {
	return func(l *Lister) {
		l.defaultUser = user
	}
}

// WithPolicy sets the failure policy.
func WithPolicy(p outcome.Policy) Option {
	return func(l *Lister) {
		l.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Lister) {
		l.log = log
	}
}

// NewLister creates a Lister that runs commands through cli.
func NewLister(cli *docker.CLI, opts ...Option) *Lister {
	l := &Lister{
		cli:    cli,
		policy: outcome.PolicyStderr,
		log:    zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// List returns the volume names on host in the order the runtime reports
// them. On failure it returns no names and a failed Outcome; never both.
func (l *Lister) List(ctx context.Context, host string) ([]string, outcome.Outcome) {
	h, err := docker.ParseHost(host, l.defaultUser)
	if err != nil {
		return []string{}, outcome.Outcome{
			Kind:    outcome.TransportError,
			Message: fmt.Sprintf("Unable to list volumes for docker host %q: %v", host, err),
		}
	}

	res, err := l.cli.Remote(ctx, h, "volume", "ls", "--format", nameFormat)
	out := outcome.Classify(res, err, l.policy, fmt.Sprintf("Unable to list volumes for docker host %s", host))
	if !out.OK() {
		l.log.Debug().Str("host", h.String()).Str("kind", out.Kind.String()).Msg(out.Message)
		return []string{}, out
	}
	if out.Warning != "" {
		l.log.Warn().Str("host", h.String()).Msg(out.Warning)
	}

	names := lo.Uniq(res.Lines())
	l.log.Debug().Str("host", h.String()).Int("count", len(names)).Msg("listed volumes")
	return names, out
}
