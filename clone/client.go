// Package clone implements the client side of the clone pattern: take a
// snapshot of a replicated key-value store once, then keep a local mirror
// current by applying the ordered stream of updates, while pushing
// generated updates toward the collector on a fixed tick.
//
// A Client is driven from a single goroutine. Its store and sequence are
// not guarded by locks; the store may be read concurrently.
package clone

import (
	"context"
	"time"

	"github.com/docker/clonekit/api"
	"github.com/docker/clonekit/log"
	"github.com/docker/clonekit/store"
	"github.com/docker/clonekit/transport"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Client mirrors a replicated key-value store.
type Client struct {
	config Config
	store  *store.MemoryStore

	// sequence is the highest sequence accepted so far. It never
	// decreases.
	sequence     int64
	bootstrapped bool
	synced       bool

	snapshotRecords int
	applied         int64
	discarded       int64
	malformed       int64
	emitted         int64
	pushFailures    int64
	echoed          int64

	// pending holds emitted key/body pairs awaiting their echo when
	// ExpectLoopback is set.
	pending map[string]string

	started time.Time
	reason  error
}

// New creates a client with an empty store at sequence 0.
func New(config Config) (*Client, error) {
	config.setDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: config,
		store:  store.NewMemoryStore(),
	}
	if config.ExpectLoopback {
		c.pending = make(map[string]string)
	}
	return c, nil
}

// Store returns the local mirror.
func (c *Client) Store() *store.MemoryStore {
	return c.store
}

// Sequence returns the highest sequence applied so far.
func (c *Client) Sequence() int64 {
	return c.sequence
}

// Synced reports whether the snapshot completed.
func (c *Client) Synced() bool {
	return c.synced
}

// Apply merges rec into the store if its sequence is higher than any seen
// so far, and reports whether it did. Stale and duplicate records are
// dropped without error; so are terminators, which only carry a sequence
// during bootstrap.
func (c *Client) Apply(rec *api.Record) bool {
	if rec == nil || rec.IsTerminator() || rec.Sequence <= c.sequence {
		c.discarded++
		discardedCounter.Inc()
		return false
	}
	if err := c.store.Put(rec); err != nil {
		// only a record without a key gets here
		c.malformed++
		malformedCounter.Inc()
		return false
	}

	c.sequence = rec.Sequence
	c.applied++
	appliedCounter.Inc()
	sequenceGauge.Set(float64(c.sequence))
	c.checkEcho(rec)
	return true
}

// Run dials a session, bootstraps from its snapshot channel and then
// streams until ctx is done or the subscribe channel is torn down. Every
// channel is closed exactly once, whatever the exit path.
//
// Run returns an error only if dialing or bootstrapping failed for a reason
// other than cancellation. How streaming ended is reported by Summary.
func (c *Client) Run(ctx context.Context, dialer transport.Dialer) error {
	ctx = log.WithModule(ctx, "clone")
	c.started = c.config.Clock.Now()

	session, err := dialer.Dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.reason = ctx.Err()
			return nil
		}
		c.reason = err
		return errors.Wrap(err, "clone: dial")
	}
	ctx = log.WithLogger(ctx, log.G(ctx).WithField("session.id", session.ID))

	defer closeChannel(ctx, "subscribe", session.Subscriber)
	defer closeChannel(ctx, "updates", session.Updates)

	err = c.Bootstrap(ctx, session.Snapshot)
	closeChannel(ctx, "snapshot", session.Snapshot)
	if err != nil {
		c.reason = err
		if ctx.Err() != nil {
			log.G(ctx).Info("clone: interrupted during bootstrap")
			return nil
		}
		return err
	}

	err = c.Stream(ctx, session.Subscriber, session.Updates)
	c.reason = err
	switch {
	case errors.Is(err, ErrTornDown):
		log.G(ctx).WithError(err).Warn("clone: subscribe channel torn down")
	case ctx.Err() != nil:
		log.G(ctx).Info("clone: interrupted")
	}
	return nil
}

type closer interface {
	Close() error
}

func closeChannel(ctx context.Context, name string, ch closer) {
	if ch == nil {
		return
	}
	if err := ch.Close(); err != nil {
		log.G(ctx).WithError(err).WithField("channel", name).Debug("clone: close failed")
	}
}

func (c *Client) logger(ctx context.Context) *logrus.Entry {
	return log.G(ctx).WithField("sequence", c.sequence)
}
