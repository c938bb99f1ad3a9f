package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledd/internal/config"
	"github.com/dokzlo13/wledd/internal/eventbus"
	"github.com/dokzlo13/wledd/internal/telemetry"
)

// TelemetryService writes snapshots to InfluxDB.
type TelemetryService struct {
	cfg    *config.Config
	bus    *eventbus.Bus
	writer *telemetry.Writer
}

// NewTelemetryService creates a new TelemetryService.
func NewTelemetryService(cfg *config.Config, bus *eventbus.Bus) *TelemetryService {
	return &TelemetryService{cfg: cfg, bus: bus}
}

// Start connects to InfluxDB if enabled. A failed connection only disables telemetry.
func (s *TelemetryService) Start() {
	if !s.cfg.InfluxDB.Enabled {
		log.Debug().Msg("InfluxDB telemetry disabled")
		return
	}

	writer, err := telemetry.Connect(s.cfg.InfluxDB)
	if err != nil {
		log.Error().Err(err).Str("url", s.cfg.InfluxDB.URL).Msg("InfluxDB unavailable, telemetry disabled")
		return
	}
	s.writer = writer
	writer.Start(s.bus)
}

// Close flushes pending points.
func (s *TelemetryService) Close() {
	if s.writer != nil {
		s.writer.Close()
	}
}
