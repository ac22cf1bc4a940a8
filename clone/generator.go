package clone

import (
	"context"
	"strconv"

	"github.com/docker/clonekit/api"
	"github.com/docker/clonekit/transport"
	"github.com/sirupsen/logrus"
)

// generate returns a record with a random key and body. The sequence is
// left at 0 for the authority to assign.
func (c *Client) generate() *api.Record {
	return &api.Record{
		Key:  strconv.Itoa(c.config.Rand.Intn(c.config.KeySpace)),
		Body: []byte(strconv.Itoa(c.config.Rand.Intn(c.config.BodySpace))),
	}
}

// emit pushes a generated record. Failures are logged and counted, never
// returned: delivery is at most once.
func (c *Client) emit(ctx context.Context, push transport.Pusher) {
	rec := c.generate()
	logger := c.logger(ctx).WithFields(logrus.Fields{
		"key":  rec.Key,
		"body": string(rec.Body),
	})

	if err := push.Push(ctx, rec); err != nil {
		c.pushFailures++
		pushFailureCounter.Inc()
		logger.WithError(err).Debug("clone: push failed")
		return
	}

	c.emitted++
	emittedCounter.Inc()
	c.remember(rec)
	logger.Debug("clone: emitted update")
}

// remember notes an emitted record so that its echo can be recognised.
// The set is bounded; when full it is reset.
func (c *Client) remember(rec *api.Record) {
	if c.pending == nil {
		return
	}
	if len(c.pending) >= maxPendingEchoes {
		c.pending = make(map[string]string)
	}
	c.pending[rec.Key] = string(rec.Body)
}

func (c *Client) checkEcho(rec *api.Record) {
	if c.pending == nil {
		return
	}
	if body, ok := c.pending[rec.Key]; ok && body == string(rec.Body) {
		delete(c.pending, rec.Key)
		c.echoed++
		echoedCounter.Inc()
	}
}
