package watch

import (
	"container/list"
	"sync"
)

// publisher fans events out to subscribers. Events reach each subscriber in
// publish order and none are lost while the subscriber is registered.
type publisher struct {
	mu          sync.Mutex
	buffer      int
	subscribers map[chan<- Event]*subscriber
	cond        *sync.Cond
	closed      bool
}

type subscriber struct {
	// The publisher's mutex must be locked when accessing queued.
	queued list.List
	match  func(Event) bool
	done   chan struct{}
}

func newPublisher(buffer int) *publisher {
	pub := &publisher{
		buffer:      buffer,
		subscribers: make(map[chan<- Event]*subscriber),
	}
	pub.cond = sync.NewCond(&pub.mu)

	return pub
}

func (p *publisher) length() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

// subscribe registers a subscriber. A nil match accepts every event.
func (p *publisher) subscribe(match func(Event) bool) chan Event {
	ch := make(chan Event, p.buffer)
	sub := &subscriber{
		match: match,
		done:  make(chan struct{}),
	}
	sub.queued.Init()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch
	}
	p.subscribers[ch] = sub
	p.mu.Unlock()

	go p.deliver(ch, sub)

	return ch
}

func (p *publisher) evict(ch chan Event) {
	p.mu.Lock()
	if sub, ok := p.subscribers[ch]; ok {
		delete(p.subscribers, ch)
		close(sub.done)
	}
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *publisher) publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, sub := range p.subscribers {
		sub.queued.PushBack(ev)
	}
	p.cond.Broadcast()
}

func (p *publisher) close() {
	p.mu.Lock()
	p.closed = true
	for ch, sub := range p.subscribers {
		delete(p.subscribers, ch)
		close(sub.done)
	}
	p.cond.Broadcast()
	p.mu.Unlock()
}

// deliver runs for as long as the subscriber is registered, moving queued
// events onto its channel. The channel is closed once the subscriber is
// evicted; events still queued at that point are dropped.
func (p *publisher) deliver(ch chan<- Event, sub *subscriber) {
	defer close(ch)

	p.mu.Lock()
	for {
		for sub.queued.Len() > 0 {
			ev := sub.queued.Remove(sub.queued.Front()).(Event)

			p.mu.Unlock()

			// Matching happens here rather than in publish to keep
			// it out of the lock.
			if sub.match == nil || sub.match(ev) {
				select {
				case ch <- ev:
				case <-sub.done:
					return
				}
			}

			p.mu.Lock()
		}

		select {
		case <-sub.done:
			p.mu.Unlock()
			return
		default:
		}

		p.cond.Wait()
	}
}
