package clone

import (
	"context"

	"github.com/docker/clonekit/api"
	"github.com/docker/clonekit/log"
	"github.com/docker/clonekit/transport"
	"github.com/pkg/errors"
)

// Bootstrap requests a snapshot over req and loads it into the store. The
// terminator's sequence becomes the client's sequence; until it arrives the
// sequence stays 0. Malformed records are skipped.
//
// Bootstrap may only run once. If it returns an error, the error matches
// ErrIncompleteBootstrap; the records received so far remain in the store.
func (c *Client) Bootstrap(ctx context.Context, req transport.Requester) error {
	if c.bootstrapped {
		return errBootstrapped
	}
	c.bootstrapped = true
	start := c.config.Clock.Now()

	if err := req.Request(ctx, api.NewSnapshotRequest()); err != nil {
		return incomplete(ctx, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return incomplete(ctx, err)
		}

		rec, err := req.Recv(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrMalformed) {
				c.malformed++
				malformedCounter.Inc()
				log.G(ctx).WithError(err).Debug("clone: skipping malformed snapshot record")
				continue
			}
			return incomplete(ctx, err)
		}

		if rec.IsTerminator() {
			c.sequence = rec.Sequence
			c.synced = true
			sequenceGauge.Set(float64(c.sequence))
			snapshotTimer.UpdateSince(start)
			log.G(ctx).WithField("records", c.snapshotRecords).Infof("received snapshot=%d", c.sequence)
			return nil
		}

		if err := c.store.Put(rec); err != nil {
			c.malformed++
			malformedCounter.Inc()
			continue
		}
		c.snapshotRecords++
		snapshotCounter.Inc()
	}
}

// incomplete wraps the reason a snapshot stopped short. The result matches
// both ErrIncompleteBootstrap and the cause.
func incomplete(ctx context.Context, cause error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		cause = ctxErr
	}
	return &bootstrapError{cause: cause}
}

type bootstrapError struct {
	cause error
}

func (e *bootstrapError) Error() string {
	return ErrIncompleteBootstrap.Error() + ": " + e.cause.Error()
}

func (e *bootstrapError) Is(target error) bool {
	return target == ErrIncompleteBootstrap
}

func (e *bootstrapError) Unwrap() error {
	return e.cause
}

func (e *bootstrapError) Cause() error {
	return e.cause
}
