package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledd/internal/config"
	"github.com/dokzlo13/wledd/internal/coordinator"
	"github.com/dokzlo13/wledd/internal/entity"
	"github.com/dokzlo13/wledd/internal/eventbus"
	"github.com/dokzlo13/wledd/internal/ledger"
	"github.com/dokzlo13/wledd/internal/registry"
	"github.com/dokzlo13/wledd/internal/wled"
)

const initialRefreshTimeout = 15 * time.Second

// DeviceService wraps the device client, its coordinator and the entity platform.
type DeviceService struct {
	cfg *config.Config

	Client      *wled.Client
	Coordinator *coordinator.Coordinator
	Platform    *entity.Platform
	Bus         *eventbus.Bus
}

// NewDeviceService creates a new DeviceService with all components initialized but not connected.
func NewDeviceService(cfg *config.Config, l *ledger.Ledger, reg *registry.Registry, bus *eventbus.Bus) *DeviceService {
	client := wled.NewClient(cfg.Device.Host, cfg.Device.Timeout.Duration())

	coord := coordinator.New(client, coordinator.Options{
		Host:            cfg.Device.Host,
		ScanInterval:    cfg.Device.ScanInterval.Duration(),
		RateLimitRPS:    cfg.Device.RateLimitRPS,
		KeepMasterLight: cfg.Options.KeepMasterLight,
		Recorder:        l,
	})

	return &DeviceService{
		cfg:         cfg,
		Client:      client,
		Coordinator: coord,
		Platform:    entity.NewPlatform(coord, reg, bus),
		Bus:         bus,
	}
}

// Start polls the device once and sets up the entities. An unreachable
// device is not fatal: entities appear with the first successful poll.
func (s *DeviceService) Start(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, initialRefreshTimeout)
	defer cancel()

	if d, err := s.Coordinator.Refresh(refreshCtx); err != nil {
		log.Warn().Err(err).Str("host", s.cfg.Device.Host).Msg("Device not reachable yet, will keep polling")
	} else {
		log.Info().
			Str("host", s.cfg.Device.Host).
			Str("device", d.Info.Name).
			Str("version", d.Info.Version).
			Int("segments", len(d.State.Segments)).
			Msg("Connected to WLED device")
	}

	s.Platform.Setup()
}

// StartBackground starts the poll loop.
func (s *DeviceService) StartBackground(ctx context.Context) {
	go func() {
		if err := s.Coordinator.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Coordinator error")
		}
	}()
}

// Close releases all resources.
func (s *DeviceService) Close() {
	s.Platform.Close()
	s.Coordinator.Close()
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		s.Bus.Close(ctx)
	}
	s.Client.Close()
}
