package proc

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

const pollInterval = 250 * time.Millisecond

// Waiter blocks until a process disappears. It is an interface so callers
// can swap in a bounded-timeout implementation without changing call sites.
type Waiter interface {
	WaitForDeath(ctx context.Context, pid int) error
}

// PollWaiter probes the PID every 250ms until it is gone. It never times out
// on its own (known limitation); cancel the context to stop waiting early.
type PollWaiter struct {
	logger *slog.Logger
	clock  clockwork.Clock
	probe  func(pid int) bool
}

func NewPollWaiter(logger *slog.Logger) *PollWaiter {
	return &PollWaiter{
		logger: logger.With(slog.String("component", "procwait")),
		clock:  clockwork.NewRealClock(),
		probe:  Alive,
	}
}

// WithClock replaces the waiter's clock. Useful for testing.
func (w *PollWaiter) WithClock(clock clockwork.Clock) *PollWaiter {
	w.clock = clock
	return w
}

// WithProbe replaces the liveness probe. Useful for testing.
func (w *PollWaiter) WithProbe(probe func(pid int) bool) *PollWaiter {
	w.probe = probe
	return w
}

func (w *PollWaiter) WaitForDeath(ctx context.Context, pid int) error {
	for w.probe(pid) {
		w.logger.Debug("process still alive, waiting", slog.Int("pid", pid))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clock.After(pollInterval):
		}
	}
	return nil
}
