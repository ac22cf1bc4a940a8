package clone

import (
	"context"
	"time"

	"github.com/docker/clonekit/log"
	"github.com/docker/clonekit/transport"
	"github.com/pkg/errors"
)

// Stream applies updates from sub and pushes a generated record to push
// every TickInterval, until ctx is done or sub is torn down.
//
// Waiting for an update and waiting for the next tick are the same wait:
// each iteration receives with a timeout that ends at the next tick, so a
// steady flow of updates cannot hold back emission by more than one
// interval.
//
// Stream returns ctx.Err() on cancellation and an error matching
// ErrTornDown when the subscribe channel goes away. Applied state is kept
// in both cases.
func (c *Client) Stream(ctx context.Context, sub transport.Subscriber, push transport.Pusher) error {
	clk := c.config.Clock
	next := clk.Now().Add(c.config.TickInterval)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := sub.Recv(ctx, untilNextTick(clk.Now(), next))
		switch {
		case err == nil:
			if c.Apply(rec) {
				c.logger(ctx).Debugf("received update=%d", rec.Sequence)
			}
		case errors.Is(err, transport.ErrTimeout):
		case errors.Is(err, transport.ErrMalformed):
			c.malformed++
			malformedCounter.Inc()
			log.G(ctx).WithError(err).Debug("clone: skipping malformed update")
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			// transport.ErrClosed, or any other failure of the
			// subscribe channel: there is nothing left to read.
			return errors.Wrap(ErrTornDown, err.Error())
		}

		if now := clk.Now(); !now.Before(next) {
			c.emit(ctx, push)
			next = clk.Now().Add(c.config.TickInterval)
		}
	}
}

func untilNextTick(now, next time.Time) time.Duration {
	if d := next.Sub(now); d > 0 {
		return d
	}
	return 0
}
