/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webhooks

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/scoir/canis-webhooks/pkg/events/waiter"
)

const writeTimeout = 10 * time.Second

// GET /ws/:wallet_id
func (r *Server) socketWallet(w http.ResponseWriter, req *http.Request) {
	c, opts, ok := criteria(w, req, false)
	if !ok {
		return
	}

	r.socket(w, req, c, opts)
}

// GET /ws/:wallet_id/:topic
func (r *Server) socketTopic(w http.ResponseWriter, req *http.Request) {
	c, opts, ok := criteria(w, req, true)
	if !ok {
		return
	}

	r.socket(w, req, c, opts)
}

// socket streams events as JSON text messages. Messages from the client are ignored.
func (r *Server) socket(w http.ResponseWriter, req *http.Request, c waiter.Criteria, opts []waiter.Option) {
	fields := log.Fields{"wallet_id": c.WalletID, "topic": c.Topic}

	conn, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("failed to upgrade the connection")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	ctx, cancel := r.requestContext(req)
	defer cancel()
	ctx = conn.CloseRead(ctx)

	s, err := r.waiter.Stream(ctx, c, opts...)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("unable to open stream")
		_ = conn.Close(websocket.StatusInternalError, "unable to open stream")
		return
	}
	defer s.Close()

	ticker := time.NewTicker(r.sse.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-s.C():
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "stream ended")
				return
			}

			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, ev)
			wcancel()
			if err != nil {
				log.WithFields(fields).WithError(err).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				log.WithFields(fields).WithError(err).Debug("websocket ping failed")
				return
			}
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closing the connection")
			return
		}
	}
}
