// Package busy provides the indicator shown while an operation is in flight.
package busy

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Indicator is switched on while an operation runs.
type Indicator interface {
	Set(busy bool)
}

// Acquire switches ind on and returns a func that switches it off. The
// returned func is safe to call more than once; only the first call has an
// effect. Use it with defer so every exit path releases the indicator.
func Acquire(ind Indicator) (release func()) {
	ind.Set(true)
	var once sync.Once
	return func() {
		once.Do(func() { ind.Set(false) })
	}
}

// Flag is an Indicator that only records its state.
type Flag struct {
	mu          sync.Mutex
	busy        bool
	transitions []bool
}

// Set records the new state.
func (f *Flag) Set(busy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = busy
	f.transitions = append(f.transitions, busy)
}

// Busy reports the current state.
func (f *Flag) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// Transitions returns every state passed to Set, in order.
func (f *Flag) Transitions() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.transitions...)
}

// Spinner is an Indicator that animates an indeterminate spinner.
type Spinner struct {
	w           io.Writer
	description string
	interval    time.Duration

	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	stop chan struct{}
	done chan struct{}
}

// NewSpinner creates a Spinner writing to w.
func NewSpinner(w io.Writer, description string) *Spinner {
	return &Spinner{
		w:           w,
		description: description,
		interval:    100 * time.Millisecond,
	}
}

// Set starts or stops the spinner.
func (s *Spinner) Set(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if busy {
		s.start()
	} else {
		s.halt()
	}
}

func (s *Spinner) start() {
	if s.bar != nil {
		return
	}

	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.w),
		progressbar.OptionSetDescription(s.description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func(bar *progressbar.ProgressBar, stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}(s.bar, s.stop, s.done)
}

func (s *Spinner) halt() {
	if s.bar == nil {
		return
	}

	close(s.stop)
	<-s.done
	_ = s.bar.Finish()
	s.bar = nil
}
