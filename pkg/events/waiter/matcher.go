package waiter

import (
	"github.com/scoir/canis-webhooks/pkg/events"
)

const (
	stateRequestReceived     = "request-received"
	stateTransactionAcked    = "transaction-acked"
	stateTransactionEndorsed = "transaction-endorsed"
)

// matcher applies a filter. For endorsement requests it also skips
// transactions that have already been acked or endorsed, since the agent
// re-reports request-received for those.
type matcher struct {
	filter  events.Filter
	guarded bool
	ignored map[string]bool
}

func newMatcher(c Criteria) *matcher {
	return &matcher{
		filter:  c.Filter,
		guarded: c.Topic == events.Endorsements && c.Filter.DesiredState == stateRequestReceived,
		ignored: map[string]bool{},
	}
}

func (r *matcher) observe(ev *events.Event) {
	if !r.guarded {
		return
	}

	switch ev.Payload.State() {
	case stateTransactionAcked, stateTransactionEndorsed:
		if id := ev.Payload.String("transaction_id"); id != "" {
			r.ignored[id] = true
		}
	}
}

func (r *matcher) match(ev *events.Event) bool {
	r.observe(ev)

	if r.guarded && r.ignored[ev.Payload.String("transaction_id")] {
		return false
	}

	return r.filter.Matches(ev)
}
