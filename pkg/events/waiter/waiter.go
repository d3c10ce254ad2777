/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package waiter

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/scoir/canis-webhooks/pkg/events"
	"github.com/scoir/canis-webhooks/pkg/events/fanout"
	"github.com/scoir/canis-webhooks/pkg/events/store"
)

const (
	DefaultTimeout  = 60 * time.Second
	DefaultLookBack = 5 * time.Second
)

type subscriber interface {
	Subscribe(walletID string, topic events.Topic, filter events.Filter) (*fanout.Subscription, error)
}

// Criteria selects the events a wait or stream is interested in.
type Criteria struct {
	WalletID string
	Topic    events.Topic
	Filter   events.Filter
}

type options struct {
	timeout  time.Duration
	lookBack time.Duration
}

type Option func(opts *options)

// WithTimeout bounds a single wait.
func WithTimeout(d time.Duration) Option {
	return func(opts *options) {
		if d > 0 {
			opts.timeout = d
		}
	}
}

// WithLookBack overrides how far back history is searched before waiting on
// live events. Zero disables the history check.
func WithLookBack(d time.Duration) Option {
	return func(opts *options) {
		if d >= 0 {
			opts.lookBack = d
		}
	}
}

// Waiter resolves waits against recent history first and live events second.
type Waiter struct {
	store    store.Store
	hub      subscriber
	timeout  time.Duration
	lookBack time.Duration
	now      func() time.Time
}

// New returns a Waiter. A timeout of zero or less uses DefaultTimeout. A
// negative lookBack uses DefaultLookBack and zero disables history.
func New(st store.Store, hub subscriber, timeout, lookBack time.Duration) *Waiter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if lookBack < 0 {
		lookBack = DefaultLookBack
	}

	return &Waiter{
		store:    st,
		hub:      hub,
		timeout:  timeout,
		lookBack: lookBack,
		now:      time.Now,
	}
}

func (r *Waiter) options(opts []Option) *options {
	o := &options{timeout: r.timeout, lookBack: r.lookBack}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// WaitForState waits for the next event of a wallet topic reaching desiredState.
func (r *Waiter) WaitForState(ctx context.Context, walletID string, topic events.Topic, desiredState string, opts ...Option) (events.Payload, error) {
	ev, err := r.Wait(ctx, Criteria{
		WalletID: walletID,
		Topic:    topic,
		Filter:   events.Filter{DesiredState: desiredState},
	}, opts...)
	if err != nil {
		return nil, err
	}

	return ev.Payload, nil
}

// WaitForEvent waits for an event whose payload field equals fieldID and, when
// desiredState is set, whose state equals desiredState.
func (r *Waiter) WaitForEvent(ctx context.Context, walletID string, topic events.Topic, field, fieldID, desiredState string, opts ...Option) (events.Payload, error) {
	if field == "" || fieldID == "" {
		return nil, errors.New("field and field id are required")
	}

	ev, err := r.Wait(ctx, Criteria{
		WalletID: walletID,
		Topic:    topic,
		Filter:   events.Filter{Field: field, FieldID: fieldID, DesiredState: desiredState},
	}, opts...)
	if err != nil {
		return nil, err
	}

	return ev.Payload, nil
}

// Wait returns the first event matching c. The subscription is registered
// before history is consulted so an event ingested in between is not missed.
func (r *Waiter) Wait(ctx context.Context, c Criteria, opts ...Option) (*events.Event, error) {
	if c.WalletID == "" {
		return nil, errors.New("wallet id is required")
	}
	if c.Topic == events.All {
		return nil, errors.New("topic is required")
	}
	if c.Filter.Field != "" && c.Filter.FieldID == "" {
		return nil, errors.New("field id is required")
	}

	o := r.options(opts)
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	m := newMatcher(c)
	since := r.now().Add(-o.lookBack)

	for {
		sub, err := r.hub.Subscribe(c.WalletID, c.Topic, c.Filter)
		if err != nil {
			return nil, errors.Wrap(err, "unable to subscribe")
		}

		if o.lookBack > 0 {
			ev := r.history(c, m, since)
			if ev != nil {
				sub.Close()
				return ev, nil
			}
		}

		ev, err := r.await(ctx, sub, m)
		sub.Close()

		if err == fanout.ErrSlowConsumer {
			log.WithFields(log.Fields{"wallet_id": c.WalletID, "topic": c.Topic}).
				Info("wait subscription evicted, resubscribing")
			continue
		}
		if err == context.DeadlineExceeded {
			return nil, &events.EventWaitTimeout{
				WalletID:     c.WalletID,
				Topic:        c.Topic,
				Field:        c.Filter.Field,
				FieldID:      c.Filter.FieldID,
				DesiredState: c.Filter.DesiredState,
				Timeout:      o.timeout,
			}
		}

		return ev, err
	}
}

func (r *Waiter) await(ctx context.Context, sub *fanout.Subscription, m *matcher) (*events.Event, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-sub.C():
			if !ok {
				if err := sub.Err(); err != nil {
					return nil, err
				}
				return nil, errors.New("subscription closed")
			}

			if m.match(ev) {
				return ev, nil
			}
		}
	}
}

// history returns the most recent matching event since the lookback cutoff.
// Store failures are logged and treated as an empty history.
func (r *Waiter) history(c Criteria, m *matcher, since time.Time) *events.Event {
	fields := log.Fields{"wallet_id": c.WalletID, "topic": c.Topic}

	if !m.guarded {
		ev, err := r.store.Query(c.WalletID, c.Topic, c.Filter, since)
		if err != nil {
			log.WithFields(fields).WithError(err).Warn("event history unavailable")
			return nil
		}
		return ev
	}

	evs, err := r.store.List(c.WalletID, c.Topic, since)
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("event history unavailable")
		return nil
	}

	for _, ev := range evs {
		m.observe(ev)
	}

	for i := len(evs) - 1; i >= 0; i-- {
		if m.match(evs[i]) {
			return evs[i]
		}
	}

	return nil
}
