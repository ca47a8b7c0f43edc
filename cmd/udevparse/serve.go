package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/udevparse/internal/api"
	"github.com/nerrad567/udevparse/internal/infrastructure/mqtt"
	"github.com/nerrad567/udevparse/internal/inventory"
)

// healthCheckTimeout bounds the startup health check.
const healthCheckTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the inventory over HTTP until interrupted",
		Long: `Start the HTTP API and, when MQTT is enabled, ingest dumps that hosts
publish to udevparse/ingest/{host}. Runs until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), a)
		},
	}
}

// serve runs the API server until ctx is cancelled.
func serve(ctx context.Context, a *app) error {
	log := a.log
	log.Info("starting udevparse",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	svc, err := openServices(ctx, a.cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	server, err := api.New(api.Deps{
		Config:   a.cfg.API,
		Logger:   log.With("component", "api"),
		Reports:  svc.reports,
		Ingester: svc.ingester,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if svc.mqtt != nil {
		topic := mqtt.Topics{}.AllIngestRequests()
		if err := svc.mqtt.Subscribe(topic, byte(a.cfg.MQTT.QoS), ingestHandler(ctx, svc.ingester)); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		defer func() {
			if err := svc.mqtt.Unsubscribe(topic); err != nil {
				log.Warn("unsubscribing", "topic", topic, "error", err)
			}
		}()
		log.Info("accepting dumps over MQTT", "subscriptions", svc.mqtt.Subscriptions())
	}

	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	if err := svc.healthCheck(checkCtx); err != nil {
		log.Warn("health check failed", "error", err)
	}
	cancel()

	log.Info("udevparse ready", "address", server.Addr())

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// ingestHandler ingests dumps published to udevparse/ingest/{host}. The
// client drops payloads over mqtt.MaxPayloadSize before they get here.
func ingestHandler(ctx context.Context, ingester *inventory.Ingester) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		host, ok := mqtt.HostFromIngestTopic(topic)
		if !ok {
			return fmt.Errorf("unexpected ingest topic %q", topic)
		}
		_, err := ingester.IngestReader(ctx, "mqtt:"+host, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("ingesting dump from %s: %w", host, err)
		}
		return nil
	}
}
