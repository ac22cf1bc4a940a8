// Package watch is a broadcast queue for record frames. Every watcher gets
// its own unbounded buffer, so a slow watcher never blocks the publisher or
// the other watchers.
package watch

import "strings"

// Event is one message travelling through the queue.
type Event struct {
	// Topic is the key the frame was published under. Watchers filter on
	// topic prefixes.
	Topic string
	// Frame is the encoded record, passed through untouched.
	Frame []byte
}

// Queue is the structure used to publish events and watch for them.
type Queue struct {
	pub *publisher
}

// NewQueue creates a new publish/subscribe queue which supports watchers.
// The channels that it will create for subscriptions will have the buffer
// size specified by buffer.
func NewQueue(buffer int) *Queue {
	return &Queue{
		pub: newPublisher(buffer),
	}
}

// Watch returns a channel which will receive every event published to the
// queue from this point whose topic starts with prefix. An empty prefix
// matches every topic. The channel is closed by StopWatch or Close.
func (q *Queue) Watch(prefix string) chan Event {
	if prefix == "" {
		return q.pub.subscribe(nil)
	}
	return q.pub.subscribe(func(ev Event) bool {
		return strings.HasPrefix(ev.Topic, prefix)
	})
}

// StopWatch stops a watcher from receiving further events, and closes its
// channel.
func (q *Queue) StopWatch(ch chan Event) {
	q.pub.evict(ch)
}

// Publish adds an event to the queue.
func (q *Queue) Publish(ev Event) {
	q.pub.publish(ev)
}

// Close closes every watcher channel. Events published afterwards are
// dropped.
func (q *Queue) Close() {
	q.pub.close()
}

// Len returns the number of active watchers.
func (q *Queue) Len() int {
	return q.pub.length()
}
