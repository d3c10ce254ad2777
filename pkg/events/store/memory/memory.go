/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/scoir/canis-webhooks/pkg/events"
	"github.com/scoir/canis-webhooks/pkg/events/store"
)

const (
	DefaultRetention = 5 * time.Minute
	DefaultMaxEvents = 200
)

type Config struct {
	Retention time.Duration `mapstructure:"retention"`
	MaxEvents int           `mapstructure:"maxEvents"`
}

// Provider opens in-process stores. Events do not survive a restart and are
// not shared between processes.
type Provider struct {
	config *Config
}

func NewProvider(config *Config) *Provider {
	if config == nil {
		config = &Config{}
	}

	return &Provider{config: config}
}

func (r *Provider) Open() (store.Store, error) {
	return New(r.config.Retention, r.config.MaxEvents), nil
}

type bucket struct {
	events []*events.Event
}

// Store keeps a bounded slice of events per (wallet, topic), oldest first.
type Store struct {
	sync.RWMutex
	wallets   map[string]map[events.Topic]*bucket
	retention time.Duration
	maxEvents int
	closed    bool
	now       func() time.Time
}

func New(retention time.Duration, maxEvents int) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	return &Store{
		wallets:   map[string]map[events.Topic]*bucket{},
		retention: retention,
		maxEvents: maxEvents,
		now:       time.Now,
	}
}

var errClosed = errors.New("event store closed")

func (r *Store) Append(ev *events.Event) error {
	if ev == nil {
		return errors.New("nil event")
	}
	if ev.WalletID == "" {
		return errors.New("event has no wallet")
	}

	r.Lock()
	defer r.Unlock()

	if r.closed {
		return errClosed
	}

	topics, ok := r.wallets[ev.WalletID]
	if !ok {
		topics = map[events.Topic]*bucket{}
		r.wallets[ev.WalletID] = topics
	}

	b, ok := topics[ev.Topic]
	if !ok {
		b = &bucket{}
		topics[ev.Topic] = b
	}

	r.prune(b)
	b.events = append(b.events, ev)
	if over := len(b.events) - r.maxEvents; over > 0 {
		b.events = b.events[over:]
	}

	return nil
}

func (r *Store) Query(walletID string, topic events.Topic, filter events.Filter, since time.Time) (*events.Event, error) {
	r.RLock()
	defer r.RUnlock()

	if r.closed {
		return nil, errClosed
	}

	b, ok := r.wallets[walletID][topic]
	if !ok {
		return nil, nil
	}

	since = r.cutoff(since)
	for i := len(b.events) - 1; i >= 0; i-- {
		ev := b.events[i]
		if ev.ReceivedAt.Before(since) {
			break
		}

		if filter.Matches(ev) {
			return ev, nil
		}
	}

	return nil, nil
}

func (r *Store) List(walletID string, topic events.Topic, since time.Time) ([]*events.Event, error) {
	r.RLock()
	defer r.RUnlock()

	if r.closed {
		return nil, errClosed
	}

	since = r.cutoff(since)
	out := []*events.Event{}
	for t, b := range r.wallets[walletID] {
		if topic != events.All && t != topic {
			continue
		}

		for _, ev := range b.events {
			if !ev.ReceivedAt.Before(since) {
				out = append(out, ev)
			}
		}
	}

	if topic == events.All {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ReceivedAt.Before(out[j].ReceivedAt)
		})
	}

	return out, nil
}

// Purge drops expired events and empty buckets.
func (r *Store) Purge() error {
	r.Lock()
	defer r.Unlock()

	for wallet, topics := range r.wallets {
		for topic, b := range topics {
			r.prune(b)
			if len(b.events) == 0 {
				delete(topics, topic)
			}
		}

		if len(topics) == 0 {
			delete(r.wallets, wallet)
		}
	}

	return nil
}

func (r *Store) Close() error {
	r.Lock()
	defer r.Unlock()

	r.closed = true
	r.wallets = map[string]map[events.Topic]*bucket{}

	return nil
}

// cutoff never reaches further back than the retention window.
func (r *Store) cutoff(since time.Time) time.Time {
	oldest := r.now().Add(-r.retention)
	if since.Before(oldest) {
		return oldest
	}

	return since
}

func (r *Store) prune(b *bucket) {
	oldest := r.now().Add(-r.retention)
	i := 0
	for i < len(b.events) && b.events[i].ReceivedAt.Before(oldest) {
		i++
	}

	if i > 0 {
		b.events = append([]*events.Event(nil), b.events[i:]...)
	}
}
