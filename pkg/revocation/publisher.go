/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package revocation

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/scoir/canis-webhooks/pkg/client/sse"
	"github.com/scoir/canis-webhooks/pkg/events"
	"github.com/scoir/canis-webhooks/pkg/util"
)

const (
	DefaultMaxAttempts = 3
	DefaultTimeout     = 30 * time.Second

	transactionField = "transaction_id"
	ackedState       = "transaction-acked"
)

// PublishRequest maps revocation registry ids to the credential revocation ids to publish.
type PublishRequest struct {
	RevRegCredRevIDs map[string][]string `json:"rrid2crid,omitempty"`
}

//go:generate mockery -name=AgentClient
type AgentClient interface {
	// PublishRevocations returns the endorser transaction ids created for the request.
	PublishRevocations(ctx context.Context, walletID string, req *PublishRequest) ([]string, error)
}

type EventWaiter interface {
	WaitForEvent(ctx context.Context, field, fieldID, desiredState string, timeout time.Duration) (events.Payload, error)
}

type ListenerFactory func(walletID string, topic events.Topic) EventWaiter

// SSEListeners returns a factory of SSE client listeners against the webhooks service at baseURL.
func SSEListeners(baseURL string, opts ...sse.Option) ListenerFactory {
	return func(walletID string, topic events.Topic) EventWaiter {
		return sse.NewListener(baseURL, walletID, topic, opts...)
	}
}

type Publisher struct {
	agent       AgentClient
	listeners   ListenerFactory
	timeout     time.Duration
	maxAttempts int
}

type Option func(p *Publisher)

func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.timeout = d
	}
}

func WithMaxAttempts(n int) Option {
	return func(p *Publisher) {
		p.maxAttempts = n
	}
}

func NewPublisher(agent AgentClient, listeners ListenerFactory, opts ...Option) *Publisher {
	p := &Publisher{
		agent:       agent,
		listeners:   listeners,
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.maxAttempts < 1 {
		p.maxAttempts = 1
	}

	return p
}

// PublishRevocations publishes pending revocations and waits until every resulting
// endorser transaction is acknowledged. Failures are returned as *util.APIError.
func (r *Publisher) PublishRevocations(ctx context.Context, walletID string, req *PublishRequest) ([]string, error) {
	txIDs, err := r.agent.PublishRevocations(ctx, walletID, req)
	if err != nil {
		return nil, util.NewAPIError(http.StatusInternalServerError, "failed to publish revocations: %v", err)
	}

	listener := r.listeners(walletID, events.Endorsements)
	for _, txID := range txIDs {
		err = r.awaitAcked(ctx, listener, walletID, txID)
		if err != nil {
			return nil, err
		}
	}

	return txIDs, nil
}

func (r *Publisher) awaitAcked(ctx context.Context, listener EventWaiter, walletID, txID string) error {
	fields := log.Fields{"wallet_id": walletID, "transaction_id": txID}

	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		_, err = listener.WaitForEvent(ctx, transactionField, txID, ackedState, r.timeout)
		if err == nil {
			log.WithFields(fields).Debug("revocation transaction acknowledged")
			return nil
		}

		if !events.IsWaitTimeout(err) {
			return util.NewAPIError(http.StatusInternalServerError,
				"failed waiting for transaction %s: %v", txID, err)
		}

		log.WithFields(fields).WithField("attempt", attempt).Warn("timed out waiting for revocation transaction")
	}

	var to *events.EventWaitTimeout
	if errors.As(err, &to) {
		return util.NewAPIError(http.StatusGatewayTimeout,
			"timed out waiting for endorsement transaction %s to reach state %s after %d attempts of %s",
			txID, ackedState, r.maxAttempts, to.Timeout)
	}

	return util.NewAPIError(http.StatusGatewayTimeout, "timed out waiting for endorsement transaction %s", txID)
}
