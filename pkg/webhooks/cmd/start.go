/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scoir/canis-webhooks/pkg/webhooks"
)

const shutdownTimeout = 10 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts the webhooks service",
	Long:  `Starts a webhooks service that stores agent events and streams them to subscribers`,
	Run:   runStart,
}

func runStart(_ *cobra.Command, _ []string) {
	err := prov.open()
	if err != nil {
		log.Fatalln("unable to initialize webhooks service", err)
	}
	defer prov.close()

	wc, err := prov.GetWebhooksConfig()
	if err != nil {
		log.Fatalln("invalid webhooks key in configuration", err)
	}

	srv, err := webhooks.New(prov, wc, prov.sse)
	if err != nil {
		log.Fatalln("unable to create webhooks service", err)
	}

	if prov.relay != nil {
		go func() {
			err := prov.relay.Start()
			log.WithError(err).Warn("event relay stopped")
		}()
	}

	cron := gocron.NewScheduler(time.UTC)
	if prov.esConf.CleanupPeriod > 0 {
		_, err = cron.Every(prov.esConf.CleanupPeriod).Do(func() {
			if err := prov.store.Purge(); err != nil {
				log.WithError(err).Warn("event store purge failed")
			}
		})
		if err != nil {
			log.Fatalln("unable to schedule event store purge", err)
		}
		cron.StartAsync()
	}
	defer cron.Stop()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		log.WithField("signal", s.String()).Info("shutting down webhooks service")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("unclean shutdown")
		}
	}()

	err = srv.Start()
	if err != nil {
		log.WithError(err).Error("webhooks service failed")
	}

	log.Info("Shutdown")
}

func init() {
	rootCmd.AddCommand(startCmd)
}
