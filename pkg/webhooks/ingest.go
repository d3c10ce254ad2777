/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webhooks

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"goji.io/pat"

	"github.com/scoir/canis-webhooks/pkg/events"
	"github.com/scoir/canis-webhooks/pkg/events/store"
)

const (
	walletHeader       = "x-wallet-id"
	adminWallet        = "admin"
	maxBodySize        = 1 << 20
	defaultIngestQueue = 1000

	DefaultSubmitTimeout = 2 * time.Second
)

// Origins allowed to post without a wallet header; their events belong to the admin wallet.
var adminOrigins = map[string]bool{
	"governance":   true,
	"tenant-admin": true,
	"admin":        true,
}

// Broadcaster hands a stored event to live subscribers.
type Broadcaster interface {
	Broadcast(ev *events.Event) error
}

// Ingestor appends events to the store and broadcasts them on a single worker,
// so per-(wallet, topic) order is the order of arrival.
type Ingestor struct {
	store       store.Store
	broadcaster Broadcaster
	queue       chan *events.Event

	submitTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewIngestor(st store.Store, b Broadcaster, queueSize int) *Ingestor {
	if queueSize <= 0 {
		queueSize = defaultIngestQueue
	}

	return &Ingestor{
		store:       st,
		broadcaster: b,
		queue:       make(chan *events.Event, queueSize),

		submitTimeout: DefaultSubmitTimeout,
	}
}

func (r *Ingestor) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for ev := range r.queue {
			r.Process(ev)
		}
	}()
}

// Submit queues ev for the worker. When the queue is full it waits up to the
// submit timeout, then drops ev.
func (r *Ingestor) Submit(ev *events.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		log.WithFields(eventFields(ev)).Warn("ingestor closed, dropping event")
		return
	}

	select {
	case r.queue <- ev:
		return
	default:
	}

	t := time.NewTimer(r.submitTimeout)
	defer t.Stop()

	select {
	case r.queue <- ev:
	case <-t.C:
		log.WithFields(eventFields(ev)).Error("ingest queue full, dropping event")
	}
}

// Process stores then broadcasts ev. Failures are logged, never returned to the agent.
func (r *Ingestor) Process(ev *events.Event) {
	err := r.store.Append(ev)
	if err != nil {
		log.WithFields(eventFields(ev)).WithError(err).Error("unable to store event")
	}

	err = r.broadcaster.Broadcast(ev)
	if err != nil {
		log.WithFields(eventFields(ev)).WithError(err).Error("unable to broadcast event")
	}
}

// Close stops accepting events and waits for queued ones to finish.
func (r *Ingestor) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}

func eventFields(ev *events.Event) log.Fields {
	return log.Fields{
		"wallet_id":   ev.WalletID,
		"topic":       ev.Topic,
		"acapy_topic": ev.AgentTopic,
		"origin":      ev.Origin,
	}
}

// resolveWallet returns the wallet an agent webhook belongs to.
func resolveWallet(origin, header string) (string, bool) {
	if header != "" {
		return header, true
	}

	if adminOrigins[origin] {
		return adminWallet, true
	}

	return "", false
}

// accept translates, normalizes and queues an agent webhook.
func (r *Server) accept(origin, agentTopic, walletID string, body map[string]interface{}) {
	fields := log.Fields{"origin": origin, "acapy_topic": agentTopic, "wallet_id": walletID}

	topic, ok := events.TranslateAgentTopic(agentTopic)
	if !ok {
		log.WithFields(fields).Warn("unknown agent topic, dropping webhook")
		return
	}

	if walletID == "" {
		log.WithFields(fields).Warn("webhook has no wallet, dropping")
		return
	}

	ev := events.NewEvent(walletID, topic, origin, agentTopic, events.Normalize(agentTopic, body))
	log.WithFields(eventFields(ev)).WithField("state", ev.Payload.State()).Debug("webhook received")

	r.ingest.Submit(ev)
}

// receive handles POST /:origin/topic/:acapy_topic. It always answers 200.
func (r *Server) receive(w http.ResponseWriter, req *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	origin := pat.Param(req, "origin")
	agentTopic := pat.Param(req, "acapy_topic")
	walletID, ok := resolveWallet(origin, req.Header.Get(walletHeader))
	if !ok {
		log.WithFields(log.Fields{"origin": origin, "acapy_topic": agentTopic}).
			Warn("webhook without wallet header from tenant origin, dropping")
		return
	}

	body, err := readBody(req)
	if err != nil {
		log.WithFields(log.Fields{"origin": origin, "acapy_topic": agentTopic, "wallet_id": walletID}).
			WithError(err).Warn("malformed webhook body, dropping")
		return
	}

	r.accept(origin, agentTopic, walletID, body)
}

type envelope struct {
	Topic    string                 `json:"topic"`
	WalletID string                 `json:"wallet_id"`
	Origin   string                 `json:"origin"`
	Payload  map[string]interface{} `json:"payload"`
}

// receiveEnvelope handles POST /webhooks/ingest. It always answers 200.
func (r *Server) receiveEnvelope(w http.ResponseWriter, req *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	data, err := ioutil.ReadAll(io.LimitReader(req.Body, maxBodySize))
	if err != nil {
		log.WithError(err).Warn("unable to read webhook envelope")
		return
	}

	env := &envelope{}
	err = json.Unmarshal(data, env)
	if err != nil {
		log.WithError(err).Warn("malformed webhook envelope, dropping")
		return
	}

	walletID := env.WalletID
	if walletID == "" {
		walletID, _ = resolveWallet(env.Origin, req.Header.Get(walletHeader))
	}

	r.accept(env.Origin, env.Topic, walletID, env.Payload)
}

func readBody(req *http.Request) (map[string]interface{}, error) {
	data, err := ioutil.ReadAll(io.LimitReader(req.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "unable to read body")
	}

	body := map[string]interface{}{}
	err = json.Unmarshal(data, &body)
	if err != nil {
		return nil, errors.Wrap(err, "body is not a JSON object")
	}

	return body, nil
}
