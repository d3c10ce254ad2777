package waiter

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/scoir/canis-webhooks/pkg/events"
	"github.com/scoir/canis-webhooks/pkg/events/fanout"
)

// Stream delivers the retained events of the lookback window, oldest first,
// followed by live events. Events are delivered at most once.
type Stream struct {
	c      chan *events.Event
	sub    *fanout.Subscription
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Stream opens a multi-event stream. It ends when ctx is done, Close is
// called, or the underlying subscription is evicted.
func (r *Waiter) Stream(ctx context.Context, c Criteria, opts ...Option) (*Stream, error) {
	if c.WalletID == "" {
		return nil, errors.New("wallet id is required")
	}
	if c.Filter.Field != "" && c.Filter.FieldID == "" {
		return nil, errors.New("field id is required")
	}

	o := r.options(opts)
	sub, err := r.hub.Subscribe(c.WalletID, c.Topic, c.Filter)
	if err != nil {
		return nil, errors.Wrap(err, "unable to subscribe")
	}

	var backlog []*events.Event
	if o.lookBack > 0 {
		backlog, err = r.store.List(c.WalletID, c.Topic, r.now().Add(-o.lookBack))
		if err != nil {
			log.WithFields(log.Fields{"wallet_id": c.WalletID, "topic": c.Topic}).
				WithError(err).Warn("event history unavailable")
			backlog = nil
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		c:      make(chan *events.Event, 16),
		sub:    sub,
		cancel: cancel,
	}

	go s.run(ctx, newMatcher(c), backlog)

	return s, nil
}

// C is closed when the stream ends.
func (r *Stream) C() <-chan *events.Event {
	return r.c
}

// Err reports why the stream ended early, nil after Close or context cancellation.
func (r *Stream) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

func (r *Stream) Close() {
	r.cancel()
	r.sub.Close()
}

func (r *Stream) run(ctx context.Context, m *matcher, backlog []*events.Event) {
	defer close(r.c)
	defer r.sub.Close()

	seen := make(map[string]bool, len(backlog))
	for _, ev := range backlog {
		seen[ev.ID] = true
		if !m.match(ev) {
			continue
		}

		if !r.send(ctx, ev) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.sub.C():
			if !ok {
				r.mu.Lock()
				r.err = r.sub.Err()
				r.mu.Unlock()
				return
			}

			if seen[ev.ID] || !m.match(ev) {
				continue
			}

			if !r.send(ctx, ev) {
				return
			}
		}
	}
}

func (r *Stream) send(ctx context.Context, ev *events.Event) bool {
	select {
	case r.c <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
