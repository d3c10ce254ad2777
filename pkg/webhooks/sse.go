/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"goji.io/pat"

	"github.com/scoir/canis-webhooks/pkg/events"
	"github.com/scoir/canis-webhooks/pkg/events/waiter"
	"github.com/scoir/canis-webhooks/pkg/util"
)

const pingFrame = ": ping\n\n"

type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

// newSSEWriter commits the response as an event stream.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming unsupported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()

	return &sseWriter{w: w, f: f}, nil
}

func (r *sseWriter) event(ev *events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "unable to marshal event")
	}

	_, err = fmt.Fprintf(r.w, "data: %s\n\n", data)
	if err != nil {
		return err
	}

	r.f.Flush()
	return nil
}

func (r *sseWriter) ping() error {
	_, err := io.WriteString(r.w, pingFrame)
	if err != nil {
		return err
	}

	r.f.Flush()
	return nil
}

// GET /sse/:wallet_id
func (r *Server) streamWallet(w http.ResponseWriter, req *http.Request) {
	c, opts, ok := criteria(w, req, false)
	if !ok {
		return
	}

	r.stream(w, req, c, 0, opts)
}

// GET /sse/:wallet_id/:topic
func (r *Server) streamTopic(w http.ResponseWriter, req *http.Request) {
	c, opts, ok := criteria(w, req, true)
	if !ok {
		return
	}

	r.stream(w, req, c, 0, opts)
}

// GET /sse/:wallet_id/:topic/:field/:field_id
func (r *Server) streamField(w http.ResponseWriter, req *http.Request) {
	c, opts, ok := criteria(w, req, true)
	if !ok {
		return
	}

	c.Filter = events.Filter{Field: pat.Param(req, "field"), FieldID: pat.Param(req, "field_id")}
	r.stream(w, req, c, r.sse.MaxDuration, opts)
}

// GET /sse/:wallet_id/:topic/:desired_state
func (r *Server) waitState(w http.ResponseWriter, req *http.Request) {
	c, opts, ok := criteria(w, req, true)
	if !ok {
		return
	}

	c.Filter = events.Filter{DesiredState: pat.Param(req, "desired_state")}
	r.waitOne(w, req, c, opts)
}

// GET /sse/:wallet_id/:topic/:field/:field_id/:desired_state
func (r *Server) waitEvent(w http.ResponseWriter, req *http.Request) {
	c, opts, ok := criteria(w, req, true)
	if !ok {
		return
	}

	c.Filter = events.Filter{
		Field:        pat.Param(req, "field"),
		FieldID:      pat.Param(req, "field_id"),
		DesiredState: pat.Param(req, "desired_state"),
	}
	r.waitOne(w, req, c, opts)
}

// stream sends history and live events until the client leaves, the server
// shuts down or maxDuration (when positive) passes.
func (r *Server) stream(w http.ResponseWriter, req *http.Request, c waiter.Criteria, maxDuration time.Duration, opts []waiter.Option) {
	ctx, cancel := r.requestContext(req)
	defer cancel()

	if maxDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, maxDuration)
		defer cancel()
	}

	fields := log.Fields{"wallet_id": c.WalletID, "topic": c.Topic}

	s, err := r.waiter.Stream(ctx, c, opts...)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("unable to open stream")
		util.WriteError(w, http.StatusServiceUnavailable, "unable to open stream")
		return
	}
	defer s.Close()

	sw, err := newSSEWriter(w)
	if err != nil {
		util.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ticker := time.NewTicker(r.sse.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-s.C():
			if !ok {
				if err := s.Err(); err != nil {
					log.WithFields(fields).WithError(err).Info("stream ended")
				}
				return
			}

			if err := sw.event(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := sw.ping(); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

type waitResult struct {
	ev  *events.Event
	err error
}

// waitOne sends the first matching event and closes the stream, pinging while it waits.
func (r *Server) waitOne(w http.ResponseWriter, req *http.Request, c waiter.Criteria, opts []waiter.Option) {
	ctx, cancel := r.requestContext(req)
	defer cancel()

	sw, err := newSSEWriter(w)
	if err != nil {
		util.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	fields := log.Fields{
		"wallet_id":     c.WalletID,
		"topic":         c.Topic,
		"field":         c.Filter.Field,
		"field_id":      c.Filter.FieldID,
		"desired_state": c.Filter.DesiredState,
	}

	result := make(chan waitResult, 1)
	go func() {
		ev, err := r.waiter.Wait(ctx, c, append([]waiter.Option{waiter.WithTimeout(r.sse.MaxDuration)}, opts...)...)
		result <- waitResult{ev: ev, err: err}
	}()

	ticker := time.NewTicker(r.sse.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case res := <-result:
			switch {
			case res.err == nil:
				_ = sw.event(res.ev)
			case events.IsWaitTimeout(res.err):
				log.WithFields(fields).Info("sse wait timed out")
			case res.err != context.Canceled:
				log.WithFields(fields).WithError(res.err).Warn("sse wait failed")
			}
			return
		case <-ticker.C:
			if err := sw.ping(); err != nil {
				return
			}
		}
	}
}
