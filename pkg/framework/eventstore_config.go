/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package framework

import (
	"time"

	"github.com/pkg/errors"

	"github.com/scoir/canis-webhooks/pkg/events/store"
	"github.com/scoir/canis-webhooks/pkg/events/store/memory"
	"github.com/scoir/canis-webhooks/pkg/events/store/mongodb"
)

type EventStoreConfig struct {
	Database      string          `mapstructure:"database"`
	Retention     time.Duration   `mapstructure:"retention"`
	MaxEvents     int             `mapstructure:"maxEvents"`
	CleanupPeriod time.Duration   `mapstructure:"cleanupPeriod"`
	Mongo         *mongodb.Config `mapstructure:"mongo"`
}

func (r *EventStoreConfig) StorageProvider() (store.Provider, error) {
	var sp store.Provider
	var err error

	retention := r.Retention
	if retention <= 0 {
		retention = memory.DefaultRetention
	}

	switch r.Database {
	case "", "memory":
		sp = memory.NewProvider(&memory.Config{Retention: retention, MaxEvents: r.MaxEvents})
	case "mongo":
		sp, err = mongodb.NewProvider(r.Mongo, retention, r.MaxEvents)
	default:
		return nil, errors.Errorf("unknown event store %q", r.Database)
	}

	if err != nil {
		return nil, errors.Wrap(err, "unable to create event store based on config")
	}

	return sp, nil
}

// Shared reports whether the store can back more than one process.
func (r *EventStoreConfig) Shared() bool {
	return r.Database == "mongo"
}
