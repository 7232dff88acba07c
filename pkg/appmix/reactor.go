package appmix

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// driver is the only thing that pumps the reactor
type driver struct {
	logger  *zap.SugaredLogger
	reactor Reactor
}

func newDriver(logger *zap.SugaredLogger, reactor Reactor) *driver {
	return &driver{
		logger:  logger.Named("reactor"),
		reactor: reactor,
	}
}

// runUntil performs blocking dispatch steps until done returns true.
// The context is checked between steps; without a deadline this waits forever.
func (d *driver) runUntil(ctx context.Context, done func() bool) error {
	steps := 0

	for !done() {
		if err := ctx.Err(); err != nil {
			d.logger.Warnw("Gave up waiting for reactor", "steps", steps, "error", err)
			return fmt.Errorf("wait for operation: %w", err)
		}

		if _, err := d.reactor.Iterate(true); err != nil {
			d.logger.Warnw("Reactor iteration failed", "steps", steps, "error", err)
			return fmt.Errorf("iterate reactor: %w", err)
		}

		steps++
	}

	return nil
}

// runUntilConnected pumps the reactor until the connection settles on Ready, Failed or Terminated
func (d *driver) runUntilConnected(ctx context.Context, conn *connection) (State, error) {
	if err := d.runUntil(ctx, conn.settled); err != nil {
		return conn.state, err
	}

	d.logger.Debugw("Connection settled", "state", conn.state)

	return conn.state, nil
}

// runFor dispatches whatever arrives during the given duration
func (d *driver) runFor(duration time.Duration) error {
	deadline := time.Now().Add(duration)

	// non-blocking first, so a zero duration still drains what's already pending
	for {
		n, err := d.reactor.Iterate(false)
		if err != nil {
			return fmt.Errorf("iterate reactor: %w", err)
		}

		if n == 0 {
			break
		}
	}

	return d.runUntil(context.Background(), func() bool { return !time.Now().Before(deadline) })
}
