package main

import (
	"context"
	"fmt"

	_ "github.com/nerrad567/udevparse/migrations"

	"github.com/nerrad567/udevparse/internal/infrastructure/config"
	"github.com/nerrad567/udevparse/internal/infrastructure/database"
	"github.com/nerrad567/udevparse/internal/infrastructure/influxdb"
	"github.com/nerrad567/udevparse/internal/infrastructure/logging"
	"github.com/nerrad567/udevparse/internal/infrastructure/mqtt"
	"github.com/nerrad567/udevparse/internal/inventory"
)

// services holds the infrastructure an ingest or serve run needs.
type services struct {
	log      *logging.Logger
	db       *database.DB
	mqtt     *mqtt.Client     // nil when MQTT is disabled
	influx   *influxdb.Client // nil when InfluxDB is disabled
	reports  *inventory.SQLiteRepository
	ingester *inventory.Ingester
}

// openDatabase opens the configured SQLite database without migrating it.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// openServices opens the database, runs migrations, connects the optional
// MQTT and InfluxDB clients and wires them into an Ingester.
//
// Parameters:
//   - ctx: Context for connection checks and migrations
//   - cfg: Loaded configuration
//   - log: Logger for the run
//
// Returns:
//   - *services: Ready services; call Close when done
//   - error: If a required connection fails
func openServices(ctx context.Context, cfg *config.Config, log *logging.Logger) (s *services, err error) {
	s = &services{log: log}
	defer func() {
		if err != nil {
			s.Close()
			s = nil
		}
	}()

	s.db, err = openDatabase(ctx, cfg.Database)
	if err != nil {
		return s, err
	}
	log.Info("database connected", "path", s.db.Path(), "in_memory", s.db.InMemory())

	if err = s.db.Migrate(ctx); err != nil {
		return s, fmt.Errorf("running migrations: %w", err)
	}
	log.Debug("database migrations complete")

	s.reports = inventory.NewSQLiteRepository(s.db.DB)
	s.ingester = inventory.NewIngester(s.reports)
	s.ingester.SetLogger(log.With("component", "inventory"))

	if cfg.MQTT.Enabled {
		s.mqtt, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return s, fmt.Errorf("connecting to MQTT: %w", err)
		}
		s.mqtt.SetLogger(log.With("component", "mqtt"))
		s.mqtt.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		s.mqtt.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		if cfg.Inventory.PublishReports {
			s.ingester.SetPublisher(s.mqtt)
		}
	}

	if cfg.InfluxDB.Enabled {
		s.influx, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return s, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		s.influx.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		s.ingester.SetRecorder(s.influx)
	}

	return s, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func (s *services) healthCheck(ctx context.Context) error {
	if err := s.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if s.mqtt != nil {
		if err := s.mqtt.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if s.influx != nil {
		if err := s.influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// Close releases everything openServices opened, in reverse order.
func (s *services) Close() {
	if s.influx != nil {
		s.log.Debug("closing InfluxDB connection")
		if err := s.influx.Close(); err != nil {
			s.log.Error("error closing InfluxDB", "error", err)
		}
	}
	if s.mqtt != nil {
		s.log.Debug("disconnecting from MQTT")
		if err := s.mqtt.Close(); err != nil {
			s.log.Error("error closing MQTT", "error", err)
		}
	}
	if s.db != nil {
		s.log.Debug("closing database")
		if err := s.db.Close(); err != nil {
			s.log.Error("error closing database", "error", err)
		}
	}
}
