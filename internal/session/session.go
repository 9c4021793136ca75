// Package session drives one interactive volume transfer: it lists
// destination volumes, runs the transfer and reports every outcome to the
// user through a Notifier.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eugenetaranov/volxfer/internal/busy"
	"github.com/eugenetaranov/volxfer/internal/outcome"
	"github.com/eugenetaranov/volxfer/internal/transfer"
)

// Notifier shows messages to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// VolumeLister lists volumes on a host.
type VolumeLister interface {
	List(ctx context.Context, host string) ([]string, outcome.Outcome)
}

// Transferrer runs a transfer.
type Transferrer interface {
	Transfer(ctx context.Context, req transfer.Request) outcome.Outcome
}

// SourceChecker verifies the source volume before a transfer starts.
type SourceChecker interface {
	CheckSource(ctx context.Context, name string) error
}

// Session wires the lister and orchestrator to the user-facing side effects.
type Session struct {
	lister   VolumeLister
	transfer Transferrer
	notifier Notifier
	busy     busy.Indicator
	checker  SourceChecker
	onClose  func()
	log      zerolog.Logger
}

// Option configures the Session.
type Option func(*Session)

// WithBusy sets the busy indicator. The default only records state.
func WithBusy(ind busy.Indicator) Option {
	return func(s *Session) {
		s.busy = ind
	}
}

// WithSourceChecker enables the source-volume preflight.
func WithSourceChecker(c SourceChecker) Option {
	return func(s *Session) {
		s.checker = c
	}
}

// WithOnClose registers the callback run when a transfer settles.
func WithOnClose(fn func()) Option {
	return func(s *Session) {
		s.onClose = fn
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// New creates a Session.
func New(lister VolumeLister, t Transferrer, notifier Notifier, opts ...Option) *Session {
	s := &Session{
		lister:   lister,
		transfer: t,
		notifier: notifier,
		busy:     &busy.Flag{},
		onClose:  func() {},
		log:      zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Volumes returns the volume names on host for suggestion. A failure is
// reported through the Notifier and yields no names and ok=false.
func (s *Session) Volumes(ctx context.Context, host string) (names []string, ok bool) {
	names, out := s.lister.List(ctx, host)
	if !out.OK() {
		s.notifier.Error(out.Message)
		return []string{}, false
	}
	return names, true
}

// CanSubmit reports whether req may be submitted. A transfer needs a
// destination volume name.
func CanSubmit(req transfer.Request) bool {
	return strings.TrimSpace(req.DestinationVolume) != ""
}

// Transfer runs req. Exactly one success or error notification is emitted,
// the busy indicator is held for the duration of the call, and the close
// callback runs once after the indicator is released, on every path.
func (s *Session) Transfer(ctx context.Context, req transfer.Request) outcome.Outcome {
	defer s.onClose()

	release := busy.Acquire(s.busy)
	defer release()

	if s.checker != nil {
		if err := s.checker.CheckSource(ctx, req.SourceVolume); err != nil {
			out := outcome.Outcome{
				Kind: outcome.CommandFailure,
				Message: fmt.Sprintf("Failed to transfer volume %s to destination volume %s: %v",
					req.SourceVolume, req.DestinationVolume, err),
			}
			s.log.Debug().Err(err).Str("source", req.SourceVolume).Msg("source preflight failed")
			s.notifier.Error(out.Message)
			return out
		}
	}

	out := s.transfer.Transfer(ctx, req)
	if out.OK() {
		s.notifier.Success(out.Message)
	} else {
		s.notifier.Error(out.Message)
	}
	return out
}
