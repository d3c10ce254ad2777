/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package util

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Logger is a backoff notify func.
func Logger(err error, next time.Duration) {
	log.WithError(err).WithField("retry_in", next).Warn("retrying")
}

// ConfigureLogging applies a level and format name, keeping the defaults for
// empty or unknown values.
func ConfigureLogging(level, format string) {
	if lvl, err := log.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}

	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}
