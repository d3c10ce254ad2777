/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webhooks

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	goji "goji.io"
	"goji.io/pat"

	"github.com/scoir/canis-webhooks/pkg/events"
	"github.com/scoir/canis-webhooks/pkg/events/store"
	"github.com/scoir/canis-webhooks/pkg/events/waiter"
	"github.com/scoir/canis-webhooks/pkg/framework"
	"github.com/scoir/canis-webhooks/pkg/util"
)

type provider interface {
	GetEventStore() store.Store
	GetBroadcaster() Broadcaster
	GetWaiter() *waiter.Waiter
}

// Server receives agent webhooks and serves them back as polling, SSE and
// websocket streams.
type Server struct {
	addr    string
	store   store.Store
	waiter  *waiter.Waiter
	ingest  *Ingestor
	sse     *framework.SSEConfig
	origins []string
	srv     *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

func New(prov provider, conf *framework.WebhooksConfig, sse *framework.SSEConfig) (*Server, error) {
	if conf == nil {
		return nil, errors.New("webhooks configuration missing")
	}
	if sse == nil {
		sse = framework.SSEConfig{}.WithDefaults()
	}

	st := prov.GetEventStore()
	if st == nil {
		return nil, errors.New("event store is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Server{
		addr:    conf.HTTP.Address(),
		store:   st,
		waiter:  prov.GetWaiter(),
		ingest:  NewIngestor(st, prov.GetBroadcaster(), conf.QueueSize),
		sse:     sse,
		origins: conf.CORS.AllowedOrigins,
		ctx:     ctx,
		cancel:  cancel,
	}
	r.ingest.Start()

	return r, nil
}

// Handler returns the routed, CORS-enabled handler.
func (r *Server) Handler() http.Handler {
	mux := goji.NewMux()

	mux.HandleFunc(pat.Get("/health"), r.health)

	mux.HandleFunc(pat.Post("/webhooks/ingest"), r.receiveEnvelope)
	mux.HandleFunc(pat.Post("/:origin/topic/:acapy_topic"), r.receive)

	mux.HandleFunc(pat.Get("/webhooks/:wallet_id"), r.listWallet)
	mux.HandleFunc(pat.Get("/webhooks/:wallet_id/:topic"), r.listTopic)

	mux.HandleFunc(pat.Get("/sse/:wallet_id"), r.streamWallet)
	mux.HandleFunc(pat.Get("/sse/:wallet_id/:topic"), r.streamTopic)
	mux.HandleFunc(pat.Get("/sse/:wallet_id/:topic/:desired_state"), r.waitState)
	mux.HandleFunc(pat.Get("/sse/:wallet_id/:topic/:field/:field_id"), r.streamField)
	mux.HandleFunc(pat.Get("/sse/:wallet_id/:topic/:field/:field_id/:desired_state"), r.waitEvent)

	mux.HandleFunc(pat.Get("/ws/:wallet_id"), r.socketWallet)
	mux.HandleFunc(pat.Get("/ws/:wallet_id/:topic"), r.socketTopic)

	origins := r.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	}).Handler(mux)
}

func (r *Server) Start() error {
	r.srv = &http.Server{Addr: r.addr, Handler: r.Handler()}

	log.WithField("addr", r.addr).Info("webhooks server listening")
	err := r.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}

	return err
}

// Shutdown ends open streams, stops the listener and drains queued webhooks.
func (r *Server) Shutdown(ctx context.Context) error {
	r.cancel()

	var err error
	if r.srv != nil {
		err = r.srv.Shutdown(ctx)
	}

	r.ingest.Close()
	return err
}

func (r *Server) health(w http.ResponseWriter, _ *http.Request) {
	util.WriteSuccess(w, []byte(`{"status":"ok"}`))
}

// requestContext ends with the request or the server, whichever is first.
func (r *Server) requestContext(req *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(req.Context())
	go func() {
		select {
		case <-r.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// lookBackOptions reads the optional look_back query parameter, in seconds.
func lookBackOptions(req *http.Request) ([]waiter.Option, error) {
	v := req.URL.Query().Get("look_back")
	if v == "" {
		return nil, nil
	}

	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return nil, errors.Errorf("invalid look_back %q", v)
	}

	return []waiter.Option{waiter.WithLookBack(time.Duration(secs * float64(time.Second)))}, nil
}

// criteria builds the criteria of a read route, writing an error response when invalid.
func criteria(w http.ResponseWriter, req *http.Request, withTopic bool) (waiter.Criteria, []waiter.Option, bool) {
	c := waiter.Criteria{WalletID: pat.Param(req, "wallet_id"), Topic: events.All}

	if withTopic {
		name := pat.Param(req, "topic")
		topic, err := events.ParseTopic(name)
		if err != nil {
			util.WriteErrorf(w, http.StatusNotFound, "unknown topic %q, expected one of %v", name, events.Topics())
			return c, nil, false
		}
		c.Topic = topic
	}

	opts, err := lookBackOptions(req)
	if err != nil {
		util.WriteError(w, http.StatusBadRequest, err.Error())
		return c, nil, false
	}

	return c, opts, true
}
