/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package fanout

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/scoir/canis-webhooks/pkg/events"
)

const DefaultBufferSize = 64

var (
	ErrClosed       = errors.New("hub closed")
	ErrSlowConsumer = errors.New("subscriber evicted: buffer full")
)

// Hub delivers published events to live subscriptions. Publishing never
// blocks: a subscription whose buffer is full is evicted and its channel closed.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]*Subscription
	bufferSize int
	closed     bool
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Hub{
		subs:       map[string]*Subscription{},
		bufferSize: bufferSize,
	}
}

// Subscription receives the events of one wallet, optionally restricted to a
// topic and a payload field.
type Subscription struct {
	ID       string
	WalletID string
	Topic    events.Topic
	filter   events.Filter

	hub *Hub
	ch  chan *events.Event

	mu  sync.Mutex
	err error
}

// Subscribe registers a subscription. Only the field part of filter is applied
// by the hub; state matching belongs to the reader.
func (r *Hub) Subscribe(walletID string, topic events.Topic, filter events.Filter) (*Subscription, error) {
	if walletID == "" {
		return nil, errors.New("wallet id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	sub := &Subscription{
		ID:       uuid.New().String(),
		WalletID: walletID,
		Topic:    topic,
		filter:   filter.WithoutState(),
		hub:      r,
		ch:       make(chan *events.Event, r.bufferSize),
	}
	r.subs[sub.ID] = sub

	return sub, nil
}

// Publish sends ev to every matching subscription and returns how many received it.
func (r *Hub) Publish(ev *events.Event) int {
	var slow []*Subscription
	sent := 0

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return 0
	}

	for _, sub := range r.subs {
		if !sub.matches(ev) {
			continue
		}

		select {
		case sub.ch <- ev:
			sent++
		default:
			slow = append(slow, sub)
		}
	}
	r.mu.RUnlock()

	for _, sub := range slow {
		log.WithFields(log.Fields{
			"subscriber_id": sub.ID,
			"wallet_id":     sub.WalletID,
			"topic":         sub.Topic,
		}).Warn("evicting slow subscriber")
		r.remove(sub, ErrSlowConsumer)
	}

	return sent
}

// Broadcast lets the hub serve as the ingest broadcaster of a single process.
func (r *Hub) Broadcast(ev *events.Event) error {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()

	if closed {
		return ErrClosed
	}

	r.Publish(ev)
	return nil
}

// Len returns the number of live subscriptions.
func (r *Hub) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subs)
}

// Close ends every subscription. Subsequent subscribes fail.
func (r *Hub) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	for id, sub := range r.subs {
		sub.setErr(ErrClosed)
		close(sub.ch)
		delete(r.subs, id)
	}

	return nil
}

func (r *Hub) remove(sub *Subscription, reason error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[sub.ID]; !ok {
		return
	}

	sub.setErr(reason)
	close(sub.ch)
	delete(r.subs, sub.ID)
}

// C delivers matching events in publish order. It is closed when the
// subscription ends for any reason.
func (r *Subscription) C() <-chan *events.Event {
	return r.ch
}

// Close unsubscribes. It is safe to call more than once.
func (r *Subscription) Close() {
	r.hub.remove(r, nil)
}

// Err reports why the subscription ended, nil when closed by its owner.
func (r *Subscription) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

func (r *Subscription) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *Subscription) matches(ev *events.Event) bool {
	if ev.WalletID != r.WalletID {
		return false
	}

	if r.Topic != events.All && ev.Topic != r.Topic {
		return false
	}

	return r.filter.Matches(ev)
}
