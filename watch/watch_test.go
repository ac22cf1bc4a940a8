package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchPrefix(t *testing.T) {
	q := NewQueue(0)

	all := q.Watch("")
	sevens := q.Watch("7")
	require.Equal(t, 2, q.Len())

	q.Publish(Event{Topic: "7", Frame: []byte("a")})
	q.Publish(Event{Topic: "3", Frame: []byte("b")})
	q.Publish(Event{Topic: "77", Frame: []byte("c")})

	for _, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, string(recv(t, all).Frame))
	}
	for _, want := range []string{"a", "c"} {
		assert.Equal(t, want, string(recv(t, sevens).Frame))
	}

	q.StopWatch(sevens)
	waitClosed(t, sevens)
	assert.Equal(t, 1, q.Len())

	q.Publish(Event{Topic: "7", Frame: []byte("d")})
	assert.Equal(t, "d", string(recv(t, all).Frame))

	q.Close()
	waitClosed(t, all)
	assert.Equal(t, 0, q.Len())
}

func TestWatchBuffered(t *testing.T) {
	q := NewQueue(4)
	ch := q.Watch("")

	for i := 0; i < 10; i++ {
		q.Publish(Event{Topic: "k", Frame: []byte{byte(i)}})
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, []byte{byte(i)}, recv(t, ch).Frame)
	}
	q.StopWatch(ch)
}

func recv(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}
