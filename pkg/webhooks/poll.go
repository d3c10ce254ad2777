package webhooks

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/scoir/canis-webhooks/pkg/events"
	"github.com/scoir/canis-webhooks/pkg/util"
)

// GET /webhooks/:wallet_id
func (r *Server) listWallet(w http.ResponseWriter, req *http.Request) {
	c, _, ok := criteria(w, req, false)
	if !ok {
		return
	}

	r.list(w, c.WalletID, c.Topic)
}

// GET /webhooks/:wallet_id/:topic
func (r *Server) listTopic(w http.ResponseWriter, req *http.Request) {
	c, _, ok := criteria(w, req, true)
	if !ok {
		return
	}

	r.list(w, c.WalletID, c.Topic)
}

func (r *Server) list(w http.ResponseWriter, walletID string, topic events.Topic) {
	evs, err := r.store.List(walletID, topic, time.Time{})
	if err != nil {
		log.WithFields(log.Fields{"wallet_id": walletID, "topic": topic}).WithError(err).Error("unable to list events")
		util.WriteError(w, http.StatusServiceUnavailable, "event history unavailable")
		return
	}

	util.WriteJSON(w, evs)
}
