// Package lua runs the user automation script on a single goroutine.
package lua

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/wledd/internal/lua/modules"
)

// ErrRuntimeClosed is returned when the Lua runtime is closed
var ErrRuntimeClosed = fmt.Errorf("lua runtime closed")

const workQueueSize = 100

// LuaWork represents work to be executed on the Lua VM.
// All Lua execution MUST go through this.
type LuaWork func(ctx context.Context)

// Runtime manages the Lua VM with single-threaded execution
type Runtime struct {
	L          *lua.LState
	wledModule *modules.WLEDModule

	workQueue chan LuaWork

	// closing is closed once; senders select on it
	closing   chan struct{}
	closeOnce sync.Once
}

// NewRuntime creates a new Lua runtime with the log and wled modules preloaded
func NewRuntime(entities modules.Entities) *Runtime {
	r := &Runtime{
		L:          lua.NewState(),
		wledModule: modules.NewWLEDModule(entities),
		workQueue:  make(chan LuaWork, workQueueSize),
		closing:    make(chan struct{}),
	}

	r.L.PreloadModule("log", modules.NewLogModule().Loader)
	r.L.PreloadModule("wled", r.wledModule.Loader)

	return r
}

// Close signals the runtime to stop accepting new work and closes the Lua state.
// Call it after Run has returned.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		close(r.closing)
	})
	r.L.Close()
}

// Stop makes Run return after draining queued work
func (r *Runtime) Stop() {
	r.closeOnce.Do(func() {
		close(r.closing)
	})
}

// Do queues work without blocking. Returns false if the runtime is closing,
// the queue is full or ctx is done.
func (r *Runtime) Do(ctx context.Context, work LuaWork) bool {
	if r.isClosing() {
		log.Warn().Msg("Lua runtime closing, dropping work")
		return false
	}
	select {
	case <-r.closing:
		log.Warn().Msg("Lua runtime closing, dropping work")
		return false
	case <-ctx.Done():
		log.Warn().Msg("Context cancelled, dropping Lua work")
		return false
	case r.workQueue <- work:
		return true
	default:
		log.Warn().Msg("Lua work queue full, dropping work")
		return false
	}
}

// isClosing reports whether Stop was called. It must be checked before the
// queue send, otherwise a free slot can win the select.
func (r *Runtime) isClosing() bool {
	select {
	case <-r.closing:
		return true
	default:
		return false
	}
}

// DoSync queues work, blocking until there is space
func (r *Runtime) DoSync(ctx context.Context, work LuaWork) error {
	if r.isClosing() {
		return ErrRuntimeClosed
	}
	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.workQueue <- work:
		return nil
	}
}

// DoSyncWithResult queues work and waits for it to finish
func (r *Runtime) DoSyncWithResult(ctx context.Context, work func(context.Context) error) error {
	done := make(chan error, 1)
	if err := r.DoSync(ctx, func(c context.Context) { done <- work(c) }); err != nil {
		return err
	}

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// NotifyUpdate queues the on_update callbacks. Safe to call from any goroutine.
func (r *Runtime) NotifyUpdate() {
	if r.wledModule.HandlerCount() == 0 {
		return
	}
	r.Do(context.Background(), func(context.Context) {
		r.wledModule.Dispatch(r.L)
	})
}

// Run is the only goroutine that touches Lua. It exits when ctx is done or
// the runtime is stopped, after draining queued work.
func (r *Runtime) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drainQueue(ctx)
			return
		case <-r.closing:
			r.drainQueue(ctx)
			return
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		}
	}
}

func (r *Runtime) drainQueue(ctx context.Context) {
	for {
		select {
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		default:
			return
		}
	}
}

func (r *Runtime) executeWork(ctx context.Context, work LuaWork) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Msg("Lua work panicked - worker continuing")
		}
	}()
	// modules read the context through L.Context()
	r.L.SetContext(ctx)
	work(ctx)
}

// LoadScript executes a script file. Must be called before Run.
func (r *Runtime) LoadScript(path string) error {
	log.Info().Str("path", path).Msg("Loading Lua script")

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}

	log.Info().Int("on_update", r.wledModule.HandlerCount()).Msg("Lua script loaded successfully")
	return nil
}

// LoadString executes inline Lua. Must be called before Run.
func (r *Runtime) LoadString(source string) error {
	if err := r.L.DoString(source); err != nil {
		return fmt.Errorf("failed to execute Lua: %w", err)
	}
	return nil
}
