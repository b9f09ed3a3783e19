// Package amevents fans application-level events out from the container
// manager to whoever drives the application lifecycle.
package amevents

import (
	"sync/atomic"

	"github.com/dtrain-ml/dtrain/appmaster/internal/sproto"
)

const (
	mainBufferSize        = 1024
	perConsumerBufferSize = 64
)

type subscribeRequest struct {
	id      int64
	updates chan<- sproto.AppEvent
}

type unsubscribeRequest struct {
	id int64
}

// Publisher is a single-topic event bus. Publishing never blocks on slow
// consumers beyond the per-consumer buffer.
type Publisher struct {
	id          atomic.Int64
	events      chan<- sproto.AppEvent
	subEvents   chan<- subscribeRequest
	unsubEvents chan<- unsubscribeRequest
}

// NewPublisher starts the fan-out routine and returns the publisher.
func NewPublisher() *Publisher {
	in := make(chan sproto.AppEvent, mainBufferSize)
	// This channel is used to synchronize receipt of unsubscription with
	// draining the updates channel, do not buffer it.
	subs := make(chan subscribeRequest)
	unsubs := make(chan unsubscribeRequest)
	go fanOut(in, subs, unsubs)
	return &Publisher{events: in, subEvents: subs, unsubEvents: unsubs}
}

// Publish delivers the event to every current subscriber.
func (p *Publisher) Publish(ev sproto.AppEvent) {
	p.events <- ev
}

// Subscription is one consumer's view of the bus.
type Subscription struct {
	C           <-chan sproto.AppEvent
	unsubscribe func()
}

// Close unsubscribes and drains any buffered events.
func (s *Subscription) Close() {
	s.unsubscribe()
}

// Subscribe registers a new consumer.
func (p *Publisher) Subscribe() *Subscription {
	id := p.id.Add(1)
	updates := make(chan sproto.AppEvent, perConsumerBufferSize)
	p.subEvents <- subscribeRequest{id: id, updates: updates}
	return &Subscription{
		C: updates,
		unsubscribe: func() {
			// Fire off the unsub request asynchronously and drain the
			// channel, in the event we stopped consuming, our channel was
			// full, and the fan-out routine is blocked sending to us.
			done := make(chan struct{})
			go func() {
				p.unsubEvents <- unsubscribeRequest{id: id}
				close(done)
			}()
			for {
				select {
				case <-updates:
				case <-done:
					return
				}
			}
		},
	}
}

func fanOut(
	in <-chan sproto.AppEvent,
	subs <-chan subscribeRequest,
	unsubs <-chan unsubscribeRequest,
) {
	subsByID := map[int64]chan<- sproto.AppEvent{}
	for {
		select {
		case ev := <-in:
			for _, c := range subsByID {
				c <- ev
			}
		case msg := <-subs:
			subsByID[msg.id] = msg.updates
		case msg := <-unsubs:
			if updates, ok := subsByID[msg.id]; ok {
				close(updates)
				delete(subsByID, msg.id)
			}
		}
	}
}
