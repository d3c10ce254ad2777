/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payload is the normalized body of an agent webhook.
type Payload map[string]interface{}

// State returns the payload state, empty for topics without states.
func (r Payload) State() string {
	return r.String("state")
}

// String returns the field as a string, formatting non-string scalars.
func (r Payload) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", v)
}

// Event is an ingested, normalized webhook. Events are not modified after ingest.
type Event struct {
	ID         string    `json:"id" bson:"_id"`
	WalletID   string    `json:"wallet_id" bson:"wallet_id"`
	Topic      Topic     `json:"topic" bson:"topic"`
	Origin     string    `json:"origin,omitempty" bson:"origin"`
	AgentTopic string    `json:"acapy_topic,omitempty" bson:"acapy_topic"`
	Payload    Payload   `json:"payload" bson:"payload"`
	ReceivedAt time.Time `json:"received_at" bson:"received_at"`
}

func NewEvent(walletID string, topic Topic, origin, agentTopic string, payload Payload) *Event {
	if payload == nil {
		payload = Payload{}
	}

	return &Event{
		ID:         uuid.New().String(),
		WalletID:   walletID,
		Topic:      topic,
		Origin:     origin,
		AgentTopic: agentTopic,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}
}

// Filter narrows a wallet/topic bucket. Empty fields match everything.
type Filter struct {
	Field        string
	FieldID      string
	DesiredState string
}

func (r Filter) Matches(ev *Event) bool {
	if ev == nil {
		return false
	}

	if r.Field != "" && ev.Payload.String(r.Field) != r.FieldID {
		return false
	}

	if r.DesiredState != "" && ev.Payload.State() != r.DesiredState {
		return false
	}

	return true
}

// WithoutState drops the state condition, keeping the field condition.
func (r Filter) WithoutState() Filter {
	return Filter{Field: r.Field, FieldID: r.FieldID}
}
