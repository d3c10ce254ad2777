/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package store

import (
	"time"

	"github.com/scoir/canis-webhooks/pkg/events"
)

// Store buffers recent events per (wallet, topic). Stores are best-effort: an
// event missing from a store has simply not been observed yet.
//go:generate mockery -name=Store
type Store interface {
	Append(ev *events.Event) error

	// Query returns the most recent event received at or after since that
	// satisfies filter, or nil when there is none.
	Query(walletID string, topic events.Topic, filter events.Filter, since time.Time) (*events.Event, error)

	// List returns retained events received at or after since, oldest first.
	// An empty topic lists every topic of the wallet.
	List(walletID string, topic events.Topic, since time.Time) ([]*events.Event, error)

	Purge() error
	Close() error
}

// Provider opens a Store from configuration.
type Provider interface {
	Open() (Store, error)
}
