package agent

import (
	"context"
	"errors"
	"time"
)

// ErrStopTimeout is returned when a running cycle does not finish within the
// Stop deadline.
var ErrStopTimeout = errors.New("agent stop timed out")

// Start launches the background cycle loop. It returns immediately; cycles
// run every cfg.Interval until Stop or context cancellation.
func (a *Agent) Start(ctx context.Context) {
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	go a.loop(ctx)
	a.logger.Info().Dur("interval", a.cfg.Interval).Msg("agent loop started")
}

func (a *Agent) loop(ctx context.Context) {
	defer close(a.done)
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case <-ticker.C:
			// A manual trigger may hold the cycle lock; skip the tick
			// rather than queue behind it.
			if !a.cycleMu.TryLock() {
				a.logger.Debug().Msg("cycle in progress, skipping tick")
				continue
			}
			res := a.runCycle()
			a.cycleMu.Unlock()
			if res.DecisionsMade > 0 {
				a.logger.Info().
					Int("made", res.DecisionsMade).
					Int("executed", res.DecisionsExecuted).
					Int("pending", res.PendingApprovals).
					Msg("autonomous cycle")
			}
		}
	}
}

// Stop signals the loop and waits for the current cycle to finish, bounded
// by timeout. No new cycle starts after the signal is observed.
func (a *Agent) Stop(timeout time.Duration) error {
	if a.stop == nil {
		return nil
	}
	select {
	case <-a.stop:
		// Already stopped.
	default:
		close(a.stop)
	}
	select {
	case <-a.done:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}
