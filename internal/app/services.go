package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledd/internal/config"
	"github.com/dokzlo13/wledd/internal/db"
	"github.com/dokzlo13/wledd/internal/eventbus"
	"github.com/dokzlo13/wledd/internal/ledger"
	"github.com/dokzlo13/wledd/internal/registry"
	"github.com/dokzlo13/wledd/internal/storage"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Store  *storage.Store
	Bus    *eventbus.Bus

	// Entities known to the host
	Registry *registry.Registry

	// High-level services
	Device        *DeviceService
	Lua           *LuaService
	MQTT          *MQTTService
	Telemetry     *TelemetryService
	API           *APIService
	Health        *HealthService
	LedgerCleanup *LedgerService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Ledger = ledger.New(database.DB)
	s.Store = storage.NewStore(database.DB)
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())
	s.Registry = registry.New(s.Store, s.Bus)

	s.Device = NewDeviceService(cfg, s.Ledger, s.Registry, s.Bus)
	coord := s.Device.Coordinator

	s.Lua = NewLuaService(cfg, s.Registry, coord)
	s.MQTT = NewMQTTService(cfg, coord, s.Registry, s.Bus)
	s.Telemetry = NewTelemetryService(cfg, s.Bus)
	s.API = NewAPIService(cfg, s.Registry, s.Ledger)
	s.Health = NewHealthService(cfg, coord.Available)
	s.LedgerCleanup = NewLedgerService(cfg, s.Ledger)

	if known, err := s.Registry.Known(); err != nil {
		log.Warn().Err(err).Msg("Failed to read entity registry")
	} else {
		log.Debug().Int("entities", len(known)).Msg("Entity registry loaded")
	}

	return s, nil
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context) error {
	// Sinks subscribe before the first snapshot is published
	s.Telemetry.Start()

	if err := s.Lua.LoadScript(); err != nil {
		return err
	}

	s.Device.Start(ctx)

	s.Lua.Start(ctx)
	s.MQTT.Start(ctx)
	s.Device.StartBackground(ctx)
	s.API.Start(ctx)
	s.Health.Start(ctx)
	s.LedgerCleanup.Start(ctx)

	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Lua != nil {
		s.Lua.Close()
	}
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	if s.Device != nil {
		s.Device.Close()
	}
	if s.Telemetry != nil {
		s.Telemetry.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
