// Package transfer copies the contents of a local volume into a volume on a
// remote host by streaming a tar archive over SSH.
//
// The archive and extract stages are composed into a single shell pipeline
// and submitted as one command. Nothing is retried and a submitted pipeline
// cannot be cancelled. Existing destination data is only removed after the
// archive has been unpacked in full.
package transfer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eugenetaranov/volxfer/internal/connector"
	"github.com/eugenetaranov/volxfer/internal/connector/docker"
	"github.com/eugenetaranov/volxfer/internal/outcome"
)

// Request describes one transfer.
type Request struct {
	// SourceVolume is the volume on the local host.
	SourceVolume string

	// DestinationHost is the host receiving the data.
	DestinationHost string

	// DestinationVolume is the volume on DestinationHost that gets replaced.
	DestinationVolume string
}

// State is the lifecycle of one Transfer call.
type State int

const (
	Idle State = iota
	InProgress
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InProgress:
		return "in progress"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Orchestrator runs transfers.
type Orchestrator struct {
	runner       connector.Runner
	shell        string
	dockerBinary string
	sshBinary    string
	sshOptions   []string
	image        string
	mode         Mode
	policy       outcome.Policy
	defaultUser  string
	stagingName  func(dest string) string
	onState      func(State)
	log          zerolog.Logger
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithImage sets the image used for the disposable containers.
func WithImage(image string) Option {
	return func(o *Orchestrator) {
		o.image = image
	}
}

// WithDockerBinary sets the container-runtime binary on both hosts.
func WithDockerBinary(binary string) Option {
	return func(o *Orchestrator) {
		o.dockerBinary = binary
	}
}

// WithSSH sets the ssh binary and extra -o options.
func WithSSH(binary string, options ...string) Option {
	return func(o *Orchestrator) {
		o.sshBinary = binary
		o.sshOptions = options
	}
}

// WithMode sets the transfer mode.
func WithMode(m Mode) Option {
	return func(o *Orchestrator) {
		o.mode = m
	}
}

// WithPolicy sets the failure policy.
func WithPolicy(p outcome.Policy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithDefaultUser sets the SSH user assumed for bare host addresses.
func WithDefaultUser(user string) Option {
	return func(o *Orchestrator) {
		o.defaultUser = user
	}
}

// WithStateHook registers a callback invoked on every state change.
func WithStateHook(fn func(State)) Option {
	return func(o *Orchestrator) {
		o.onState = fn
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// New creates an Orchestrator that submits pipelines through runner.
func New(runner connector.Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner:       runner,
		shell:        "/bin/sh",
		dockerBinary: "docker",
		sshBinary:    "ssh",
		image:        "alpine",
		mode:         ModeDirect,
		policy:       outcome.PolicyStderr,
		stagingName:  defaultStagingName,
		onState:      func(State) {},
		log:          zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func defaultStagingName(dest string) string {
	return fmt.Sprintf("%s-volxfer-staging-%s", dest, uuid.NewString()[:8])
}

// Plan returns the shell pipeline Transfer would submit for req.
func (o *Orchestrator) Plan(req Request) (string, error) {
	host, err := docker.ParseHost(req.DestinationHost, o.defaultUser)
	if err != nil {
		return "", err
	}

	p := pipeline{
		dockerBinary: o.dockerBinary,
		sshBinary:    o.sshBinary,
		sshOptions:   o.sshOptions,
		image:        o.image,
		mode:         o.mode,
		source:       req.SourceVolume,
		host:         host,
		dest:         req.DestinationVolume,
	}
	if o.mode == ModeStaged {
		p.staging = o.stagingName(req.DestinationVolume)
	}
	return p.render(), nil
}

// Transfer runs the archive/extract pipeline for req and reports the outcome.
// The destination volume name is not validated; callers must not submit an
// empty one.
func (o *Orchestrator) Transfer(ctx context.Context, req Request) outcome.Outcome {
	o.onState(InProgress)

	out := o.transfer(ctx, req)
	if out.OK() {
		o.onState(Succeeded)
	} else {
		o.onState(Failed)
	}
	return out
}

func (o *Orchestrator) transfer(ctx context.Context, req Request) outcome.Outcome {
	log := o.log.With().
		Str("source", req.SourceVolume).
		Str("host", req.DestinationHost).
		Str("dest", req.DestinationVolume).
		Str("mode", string(o.mode)).
		Logger()

	script, err := o.Plan(req)
	if err != nil {
		return outcome.Outcome{
			Kind:    outcome.TransportError,
			Message: fmt.Sprintf("%s: %v", o.failurePrefix(req), err),
		}
	}

	log.Info().Msgf("Transferring data from source volume %s to destination volume %s in host %s",
		req.SourceVolume, req.DestinationVolume, req.DestinationHost)
	log.Debug().Str("pipeline", script).Msg("submitting pipeline")

	res, err := o.runner.Exec(ctx, o.shell, "-c", script)
	out := outcome.Classify(res, err, o.policy, o.failurePrefix(req))
	if !out.OK() {
		log.Debug().Str("kind", out.Kind.String()).Msg(out.Message)
		return out
	}
	if out.Warning != "" {
		log.Warn().Msg(out.Warning)
	}

	done := outcome.Success(fmt.Sprintf("Volume %s transferred to destination volume %s in host %s",
		req.SourceVolume, req.DestinationVolume, req.DestinationHost))
	done.Warning = out.Warning
	return done
}

func (o *Orchestrator) failurePrefix(req Request) string {
	return fmt.Sprintf("Failed to transfer volume %s to destination volume %s", req.SourceVolume, req.DestinationVolume)
}
