/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package amqp

// Publisher sends a message to every listener bound to its exchange.
//go:generate mockery -name=Publisher
type Publisher interface {
	Publish(body []byte, contentType string) error
	Close() error
}
