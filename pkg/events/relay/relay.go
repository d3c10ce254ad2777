/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package relay

import (
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/scoir/canis-webhooks/pkg/amqp"
	"github.com/scoir/canis-webhooks/pkg/events"
)

const DefaultExchange = "canis-webhook-events"

type provider interface {
	GetAMQPPublisher(exchange string) (amqp.Publisher, error)
	GetAMQPListener(exchange string) (amqp.Listener, error)
}

type localHub interface {
	Publish(ev *events.Event) int
}

// Relay carries ingested events to the hub of every process sharing an exchange,
// this one included.
type Relay struct {
	publisher amqp.Publisher
	listener  amqp.Listener
	hub       localHub
	errors    chan error
}

func New(prov provider, exchange string, hub localHub) (*Relay, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	pub, err := prov.GetAMQPPublisher(exchange)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create relay publisher")
	}

	lis, err := prov.GetAMQPListener(exchange)
	if err != nil {
		_ = pub.Close()
		return nil, errors.Wrap(err, "unable to create relay listener")
	}

	return &Relay{
		publisher: pub,
		listener:  lis,
		hub:       hub,
	}, nil
}

// Broadcast sends ev to every relay bound to the exchange.
func (r *Relay) Broadcast(ev *events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "unable to marshal event")
	}

	return r.publisher.Publish(data, "application/json")
}

// Start delivers relayed events to the local hub until the listener closes.
func (r *Relay) Start() error {
	msgs, err := r.listener.Listen()
	if err != nil {
		return errors.Wrap(err, "unable to consume")
	}

	for d := range msgs {
		ev := &events.Event{}
		err := json.Unmarshal(d.Body, ev)
		if err != nil {
			r.Error(errors.Wrap(err, "bad relayed event"))
			continue
		}

		if ev.WalletID == "" || ev.ID == "" {
			r.Error(errors.New("relayed event missing id or wallet"))
			continue
		}

		r.hub.Publish(ev)
	}

	return errors.New("relay messages closed")
}

func (r *Relay) Close() error {
	perr := r.publisher.Close()
	lerr := r.listener.Close()
	if perr != nil {
		return perr
	}

	return lerr
}

func (r *Relay) Error(err error) {
	if r.errors == nil {
		log.WithError(err).Warn("relay error")
		return
	}

	select {
	case r.errors <- err:
	default:
		log.WithError(err).Warn("relay error dropped")
	}
}

func (r *Relay) Errors() (chan error, error) {
	if r.errors != nil {
		return nil, errors.New("error listener already registered")
	}

	r.errors = make(chan error, 1)
	return r.errors, nil
}
