package clone

import (
	"context"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/docker/clonekit/api"
	"github.com/docker/clonekit/transport"
)

var epoch = time.Date(2016, time.June, 1, 0, 0, 0, 0, time.UTC)

// scriptedRequester replays a fixed snapshot. Once the script runs out it
// blocks until the context is done.
type scriptedRequester struct {
	replies   []reply
	requested *api.Record
	closed    bool
}

type reply struct {
	rec *api.Record
	err error
}

func (r *scriptedRequester) Request(ctx context.Context, req *api.Record) error {
	r.requested = req
	return nil
}

func (r *scriptedRequester) Recv(ctx context.Context) (*api.Record, error) {
	if len(r.replies) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	next := r.replies[0]
	r.replies = r.replies[1:]
	return next.rec, next.err
}

func (r *scriptedRequester) Close() error {
	r.closed = true
	return nil
}

func records(recs ...*api.Record) []reply {
	replies := make([]reply, 0, len(recs))
	for _, rec := range recs {
		replies = append(replies, reply{rec: rec})
	}
	return replies
}

// simSubscriber simulates a subscribe channel on a fake clock. Each step
// arrives after its delay, measured from the previous arrival; Recv moves
// the clock forward by however long it waited. When the script is done
// the channel stays idle until the clock reaches until, then cancels.
// Idle waits never run past until.
type simSubscriber struct {
	clock  *fakeclock.FakeClock
	steps  []step
	waited time.Duration
	until  time.Time
	cancel context.CancelFunc

	// echo, when set, is consulted on idle waits and may return a
	// record to deliver immediately.
	echo func() *api.Record

	timeouts []time.Duration
	closed   bool
}

type step struct {
	after time.Duration
	rec   *api.Record
	err   error
}

func (s *simSubscriber) Recv(ctx context.Context, timeout time.Duration) (*api.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.timeouts = append(s.timeouts, timeout)

	if len(s.steps) == 0 {
		if s.echo != nil {
			if rec := s.echo(); rec != nil {
				return rec, nil
			}
		}
		now := s.clock.Now()
		if !now.Before(s.until) {
			s.cancel()
			return nil, ctx.Err()
		}
		if rest := s.until.Sub(now); rest < timeout {
			timeout = rest
		}
		s.clock.Increment(timeout)
		return nil, transport.ErrTimeout
	}

	next := s.steps[0]
	if remaining := next.after - s.waited; remaining <= timeout {
		s.clock.Increment(remaining)
		s.steps = s.steps[1:]
		s.waited = 0
		return next.rec, next.err
	}

	s.clock.Increment(timeout)
	s.waited += timeout
	return nil, transport.ErrTimeout
}

func (s *simSubscriber) Close() error {
	s.closed = true
	return nil
}

// recordingPusher keeps every pushed record with the time it was pushed.
type recordingPusher struct {
	clock  clock.Clock
	pushed []*api.Record
	at     []time.Time
	err    error
	closed bool
}

func (p *recordingPusher) Push(ctx context.Context, rec *api.Record) error {
	if p.err != nil {
		return p.err
	}
	p.pushed = append(p.pushed, rec.Copy())
	p.at = append(p.at, p.clock.Now())
	return nil
}

func (p *recordingPusher) Close() error {
	p.closed = true
	return nil
}

// fixedDialer hands out a prepared session.
type fixedDialer struct {
	session *transport.Session
	err     error
}

func (d *fixedDialer) Dial(ctx context.Context) (*transport.Session, error) {
	return d.session, d.err
}
