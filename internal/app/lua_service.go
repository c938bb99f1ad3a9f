package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledd/internal/config"
	"github.com/dokzlo13/wledd/internal/coordinator"
	luart "github.com/dokzlo13/wledd/internal/lua"
	"github.com/dokzlo13/wledd/internal/registry"
)

// LuaService wraps the Lua runtime and provides thread-safe execution.
type LuaService struct {
	cfg         *config.Config
	Runtime     *luart.Runtime
	coord       *coordinator.Coordinator
	done        chan struct{}
	unsubscribe func()
}

// NewLuaService creates a new LuaService.
func NewLuaService(cfg *config.Config, reg *registry.Registry, coord *coordinator.Coordinator) *LuaService {
	return &LuaService{
		cfg:     cfg,
		Runtime: luart.NewRuntime(reg),
		coord:   coord,
	}
}

// Enabled reports whether a script is configured
func (s *LuaService) Enabled() bool {
	return s.cfg.Script != ""
}

// LoadScript loads and executes the Lua script.
// Must be called before Start().
func (s *LuaService) LoadScript() error {
	if !s.Enabled() {
		log.Debug().Msg("No Lua script configured")
		return nil
	}
	return s.Runtime.LoadScript(s.cfg.Script)
}

// Start begins the Lua worker goroutine and forwards coordinator updates
// to the script's on_update callbacks.
func (s *LuaService) Start(ctx context.Context) {
	if !s.Enabled() {
		return
	}

	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.Runtime.Run(ctx)
	}()

	s.unsubscribe = s.coord.Subscribe(s.Runtime.NotifyUpdate)
	s.Runtime.NotifyUpdate()
}

// Do queues work to be executed on the Lua VM.
func (s *LuaService) Do(ctx context.Context, work luart.LuaWork) bool {
	return s.Runtime.Do(ctx, work)
}

// Close stops the worker and closes the Lua runtime.
func (s *LuaService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.Runtime.Stop()
	if s.done != nil {
		<-s.done
	}
	s.Runtime.Close()
}
