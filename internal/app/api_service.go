package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledd/internal/api"
	"github.com/dokzlo13/wledd/internal/config"
	"github.com/dokzlo13/wledd/internal/ledger"
	"github.com/dokzlo13/wledd/internal/registry"
)

// APIService wraps the entity HTTP API server.
type APIService struct {
	cfg    *config.Config
	server *api.Server
}

// NewAPIService creates a new APIService.
func NewAPIService(cfg *config.Config, reg *registry.Registry, l *ledger.Ledger) *APIService {
	return &APIService{
		cfg:    cfg,
		server: api.NewServer(cfg.API.Host, cfg.API.Port, reg, l),
	}
}

// Start begins the API server if enabled.
func (s *APIService) Start(ctx context.Context) {
	if !s.cfg.API.Enabled {
		log.Debug().Msg("API server disabled")
		return
	}

	go func() {
		if err := s.server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			log.Error().Err(err).Msg("API server error")
		}
	}()
}
