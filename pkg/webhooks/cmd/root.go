/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scoir/canis-webhooks/pkg/amqp"
	"github.com/scoir/canis-webhooks/pkg/amqp/rabbitmq"
	"github.com/scoir/canis-webhooks/pkg/config"
	"github.com/scoir/canis-webhooks/pkg/events/fanout"
	"github.com/scoir/canis-webhooks/pkg/events/relay"
	"github.com/scoir/canis-webhooks/pkg/events/store"
	"github.com/scoir/canis-webhooks/pkg/events/waiter"
	"github.com/scoir/canis-webhooks/pkg/framework"
	"github.com/scoir/canis-webhooks/pkg/util"
	"github.com/scoir/canis-webhooks/pkg/webhooks"
)

var (
	cfgFile        string
	relayEvents    bool
	prov           *Provider
	configProvider config.Provider
)

var rootCmd = &cobra.Command{
	Use:   "canis-webhooks",
	Short: "The canis webhooks service.",
	Long: `"The canis webhooks service receives agent webhooks and serves them as event streams.".

 Find more information at: https://canis.io/docs/reference/canis/overview`,
}

type Provider struct {
	conf     config.Config
	amqpConf *framework.AMQPConfig
	esConf   *framework.EventStoreConfig
	store    store.Store
	hub      *fanout.Hub
	relay    *relay.Relay
	waiter   *waiter.Waiter
	sse      *framework.SSEConfig
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	configProvider = &config.ViperConfigProvider{
		DefaultConfigName: "canis-webhooks",
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/canis/canis-webhooks.yaml)")
	rootCmd.PersistentFlags().BoolVar(&relayEvents, "relay", false, "relay events between instances over AMQP")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	conf := configProvider.Load(cfgFile).
		WithEventStore()
	if relayEvents {
		conf = conf.WithAMQP()
	}

	lc := conf.Log()
	util.ConfigureLogging(lc.Level, lc.Format)

	ec, err := conf.EventStore()
	if err != nil {
		log.Fatalln("invalid eventstore key in configuration", err)
	}

	ac, err := conf.AMQPConfig()
	if err != nil {
		log.Fatalln("invalid amqp key in configuration", err)
	}

	sc, err := conf.SSE()
	if err != nil {
		log.Fatalln("invalid sse key in configuration", err)
	}

	prov = &Provider{
		conf:     conf,
		amqpConf: ac,
		esConf:   ec,
		sse:      sc,
	}
}

// open builds the store, hub and broadcaster for the configured deployment.
func (r *Provider) open() error {
	sp, err := r.esConf.StorageProvider()
	if err != nil {
		return err
	}

	r.store, err = sp.Open()
	if err != nil {
		return errors.Wrap(err, "unable to open event store")
	}

	r.hub = fanout.NewHub(r.sse.BufferSize)
	r.waiter = waiter.New(r.store, r.hub, r.sse.WaitTimeout, r.sse.LookBack)

	if r.amqpConf.Enabled() {
		if !r.esConf.Shared() {
			log.Warn("relaying events with an in-memory event store, lookback only covers events received by this instance")
		}

		r.relay, err = relay.New(r, r.amqpConf.Exchange, r.hub)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *Provider) close() {
	if r.relay != nil {
		if err := r.relay.Close(); err != nil {
			log.WithError(err).Warn("error closing relay")
		}
	}

	if r.hub != nil {
		_ = r.hub.Close()
	}

	if r.store != nil {
		if err := r.store.Close(); err != nil {
			log.WithError(err).Warn("error closing event store")
		}
	}
}

func (r *Provider) GetEventStore() store.Store {
	return r.store
}

func (r *Provider) GetBroadcaster() webhooks.Broadcaster {
	if r.relay != nil {
		return r.relay
	}

	return r.hub
}

func (r *Provider) GetWaiter() *waiter.Waiter {
	return r.waiter
}

func (r *Provider) GetAMQPPublisher(exchange string) (amqp.Publisher, error) {
	return rabbitmq.NewPublisher(r.amqpConf.Endpoint(), exchange)
}

func (r *Provider) GetAMQPListener(exchange string) (amqp.Listener, error) {
	return rabbitmq.NewListener(r.amqpConf.Endpoint(), exchange)
}

func (r *Provider) GetWebhooksConfig() (*framework.WebhooksConfig, error) {
	return r.conf.Webhooks()
}
