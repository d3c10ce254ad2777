/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package amqp

import (
	"github.com/streadway/amqp"
)

// Listener consumes the messages routed to this process.
//go:generate mockery -name=Listener
type Listener interface {
	Listen() (<-chan amqp.Delivery, error)
	Close() error
}
