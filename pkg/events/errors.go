package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// EventWaitTimeout is returned when no matching event arrives before a wait's deadline.
type EventWaitTimeout struct {
	WalletID     string
	Topic        Topic
	Field        string
	FieldID      string
	DesiredState string
	Timeout      time.Duration
}

func (r *EventWaitTimeout) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "timed out after %s waiting for %s event for wallet %s", r.Timeout, r.Topic, r.WalletID)
	if r.Field != "" {
		fmt.Fprintf(&b, " with %s %s", r.Field, r.FieldID)
	}
	if r.DesiredState != "" {
		fmt.Fprintf(&b, " in state %s", r.DesiredState)
	}

	return b.String()
}

// IsWaitTimeout reports whether err, or anything it wraps, is an EventWaitTimeout.
func IsWaitTimeout(err error) bool {
	var to *EventWaitTimeout
	return errors.As(err, &to)
}
