package clone

import (
	"context"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/docker/clonekit/api"
	"github.com/docker/clonekit/transport"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMonotonic(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	rnd := rand.New(rand.NewSource(1))

	var accepted []int64
	for i := 0; i < 1000; i++ {
		rec := &api.Record{Key: strconv.Itoa(rnd.Intn(50)), Sequence: int64(rnd.Intn(500)), Body: []byte("x")}
		before := c.Sequence()
		if c.Apply(rec) {
			assert.True(t, rec.Sequence > before)
			accepted = append(accepted, rec.Sequence)
		} else {
			assert.Equal(t, before, c.Sequence())
		}
	}

	require.NotEmpty(t, accepted)
	for i := 1; i < len(accepted); i++ {
		assert.True(t, accepted[i] > accepted[i-1])
	}
	assert.Equal(t, accepted[len(accepted)-1], c.Sequence())
}

func TestApplyDuplicate(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	rec := &api.Record{Key: "k", Sequence: 1, Body: []byte("a")}

	assert.True(t, c.Apply(rec))
	assert.False(t, c.Apply(rec))

	assert.Equal(t, int64(1), c.Sequence())
	assert.Equal(t, map[string]string{"k": "a"}, c.Store().Map())
	s := c.Summary()
	assert.Equal(t, int64(1), s.Applied)
	assert.Equal(t, int64(1), s.Discarded)
}

func TestApplyOverwritesKey(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	assert.True(t, c.Apply(&api.Record{Key: "k", Sequence: 1, Body: []byte("a")}))
	assert.True(t, c.Apply(&api.Record{Key: "k", Sequence: 2, Body: []byte("b")}))

	assert.Equal(t, map[string]string{"k": "b"}, c.Store().Map())
}

func TestApplyIgnoresTerminatorAndHeartbeat(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	assert.True(t, c.Apply(&api.Record{Key: "k", Sequence: 3, Body: []byte("a")}))

	// heartbeat: same sequence, nothing to apply
	assert.False(t, c.Apply(&api.Record{Key: "HUGZ", Sequence: 3}))
	assert.False(t, c.Apply(api.NewTerminator(10)))
	assert.False(t, c.Apply(nil))

	assert.Equal(t, int64(3), c.Sequence())
	assert.Equal(t, 1, c.Store().Len())
}

func TestStreamEndToEnd(t *testing.T) {
	c, clk := newTestClient(t, Config{})
	require.NoError(t, c.Bootstrap(context.Background(), &scriptedRequester{replies: records(
		&api.Record{Key: "7", Sequence: 1, Body: []byte("a")},
		&api.Record{Key: "3", Sequence: 2, Body: []byte("b")},
		api.NewTerminator(2),
	)}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := &simSubscriber{
		clock: clk,
		steps: []step{
			{after: 100 * time.Millisecond, rec: &api.Record{Key: "7", Sequence: 2, Body: []byte("x")}},
			{after: 100 * time.Millisecond, rec: &api.Record{Key: "9", Sequence: 3, Body: []byte("y")}},
		},
		until:  clk.Now().Add(500 * time.Millisecond),
		cancel: cancel,
	}
	push := &recordingPusher{clock: clk}

	err := c.Stream(ctx, sub, push)
	assert.Equal(t, context.Canceled, err)

	assert.Equal(t, map[string]string{"7": "a", "3": "b", "9": "y"}, c.Store().Map())
	assert.Equal(t, int64(3), c.Sequence())

	s := c.Summary()
	assert.Equal(t, int64(1), s.Applied)
	assert.Equal(t, int64(1), s.Discarded)
	assert.Empty(t, push.pushed, "no tick elapsed")
}

func TestStreamCadenceIdle(t *testing.T) {
	c, clk := newTestClient(t, Config{})
	start := clk.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := &simSubscriber{clock: clk, until: start.Add(5 * time.Second), cancel: cancel}
	push := &recordingPusher{clock: clk}

	assert.Equal(t, context.Canceled, c.Stream(ctx, sub, push))

	require.Len(t, push.at, 5)
	for i, at := range push.at {
		assert.Equal(t, start.Add(time.Duration(i+1)*time.Second), at)
	}
	for _, timeout := range sub.timeouts[:5] {
		assert.Equal(t, time.Second, timeout)
	}
	assert.Equal(t, int64(5), c.Summary().Emitted)
}

func TestStreamCadenceUnderTraffic(t *testing.T) {
	c, clk := newTestClient(t, Config{})
	start := clk.Now()

	var steps []step
	for i := 1; i <= 20; i++ {
		steps = append(steps, step{
			after: 300 * time.Millisecond,
			rec:   &api.Record{Key: strconv.Itoa(i), Sequence: int64(i), Body: []byte("v")},
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := &simSubscriber{clock: clk, steps: steps, until: start.Add(6 * time.Second), cancel: cancel}
	push := &recordingPusher{clock: clk}

	assert.Equal(t, context.Canceled, c.Stream(ctx, sub, push))

	// traffic every 300ms never delays a tick
	require.Len(t, push.at, 6)
	for i, at := range push.at {
		assert.Equal(t, start.Add(time.Duration(i+1)*time.Second), at)
	}
	assert.Equal(t, int64(20), c.Sequence())
	assert.Equal(t, int64(20), c.Summary().Applied)
}

func TestStreamSkipsMalformed(t *testing.T) {
	c, clk := newTestClient(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := &simSubscriber{
		clock: clk,
		steps: []step{
			{after: 10 * time.Millisecond, err: errors.Wrap(transport.ErrMalformed, "bad tag")},
			{after: 10 * time.Millisecond, rec: &api.Record{Key: "k", Sequence: 1, Body: []byte("a")}},
		},
		until:  clk.Now().Add(100 * time.Millisecond),
		cancel: cancel,
	}

	assert.Equal(t, context.Canceled, c.Stream(ctx, sub, &recordingPusher{clock: clk}))
	assert.Equal(t, int64(1), c.Sequence())
	assert.Equal(t, int64(1), c.Summary().Malformed)
}

func TestStreamTornDown(t *testing.T) {
	c, clk := newTestClient(t, Config{})

	sub := &simSubscriber{
		clock: clk,
		steps: []step{
			{after: 10 * time.Millisecond, rec: &api.Record{Key: "k", Sequence: 4, Body: []byte("a")}},
			{after: 10 * time.Millisecond, err: transport.ErrClosed},
		},
		until: clk.Now().Add(time.Hour),
	}

	err := c.Stream(context.Background(), sub, &recordingPusher{clock: clk})
	assert.True(t, errors.Is(err, ErrTornDown))
	assert.Equal(t, int64(4), c.Sequence())
	assert.Equal(t, map[string]string{"k": "a"}, c.Store().Map())
}

func TestStreamUnknownSubscriberFailure(t *testing.T) {
	c, clk := newTestClient(t, Config{})
	sub := &simSubscriber{
		clock: clk,
		steps: []step{{after: 0, err: errors.New("boom")}},
		until: clk.Now().Add(time.Hour),
	}

	err := c.Stream(context.Background(), sub, &recordingPusher{clock: clk})
	assert.True(t, errors.Is(err, ErrTornDown))
	assert.Contains(t, err.Error(), "boom")
}

func TestStreamPushFailureNotFatal(t *testing.T) {
	c, clk := newTestClient(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := &simSubscriber{clock: clk, until: clk.Now().Add(3 * time.Second), cancel: cancel}
	push := &recordingPusher{clock: clk, err: transport.ErrClosed}

	assert.Equal(t, context.Canceled, c.Stream(ctx, sub, push))
	s := c.Summary()
	assert.Equal(t, int64(0), s.Emitted)
	assert.Equal(t, int64(3), s.PushFailures)
}

func TestStreamCancelledBeforeStart(t *testing.T) {
	c, clk := newTestClient(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sub := &simSubscriber{clock: clk, until: clk.Now().Add(time.Hour)}
	assert.Equal(t, context.Canceled, c.Stream(ctx, sub, &recordingPusher{clock: clk}))
	assert.Empty(t, sub.timeouts)
}

func TestGenerate(t *testing.T) {
	c, _ := newTestClient(t, Config{KeySpace: 10, BodySpace: 100, Rand: rand.New(rand.NewSource(7))})

	for i := 0; i < 200; i++ {
		rec := c.generate()
		key, err := strconv.Atoi(rec.Key)
		require.NoError(t, err)
		assert.True(t, key >= 0 && key < 10)

		body, err := strconv.Atoi(string(rec.Body))
		require.NoError(t, err)
		assert.True(t, body >= 0 && body < 100)

		assert.Equal(t, int64(0), rec.Sequence)
	}
}

func TestEmitDoesNotApplyLocally(t *testing.T) {
	c, clk := newTestClient(t, Config{})
	push := &recordingPusher{clock: clk}

	c.emit(context.Background(), push)
	require.Len(t, push.pushed, 1)
	assert.Equal(t, 0, c.Store().Len())
	assert.Equal(t, int64(0), c.Sequence())
}

func TestLoopbackEcho(t *testing.T) {
	c, clk := newTestClient(t, Config{ExpectLoopback: true})
	push := &recordingPusher{clock: clk}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// play the authority: stamp every pushed record and send it back
	echoed := 0
	sub := &simSubscriber{clock: clk, until: clk.Now().Add(3 * time.Second), cancel: cancel}
	sub.echo = func() *api.Record {
		if echoed == len(push.pushed) {
			return nil
		}
		rec := push.pushed[echoed].Copy()
		echoed++
		rec.Sequence = int64(echoed)
		return rec
	}

	assert.Equal(t, context.Canceled, c.Stream(ctx, sub, push))

	s := c.Summary()
	assert.Equal(t, int64(3), s.Emitted)
	assert.Equal(t, int64(3), s.Applied)
	assert.Equal(t, int64(3), s.Echoed)
	assert.Equal(t, int64(3), c.Sequence())
}

func TestUntilNextTick(t *testing.T) {
	assert.Equal(t, time.Second, untilNextTick(epoch, epoch.Add(time.Second)))
	assert.Equal(t, time.Duration(0), untilNextTick(epoch.Add(2*time.Second), epoch.Add(time.Second)))
	assert.Equal(t, time.Duration(0), untilNextTick(epoch, epoch))
}
