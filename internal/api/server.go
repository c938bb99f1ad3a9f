// Package api serves the entity HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledd/internal/entity"
	"github.com/dokzlo13/wledd/internal/ledger"
)

const (
	maxBodySize         = 1 << 20
	defaultCommandLimit = 50
	maxCommandLimit     = 1000
)

// Entities resolves entities by unique id
type Entities interface {
	Get(uniqueID string) (entity.Entity, bool)
	States() []entity.State
}

// CommandLog lists recent device commands
type CommandLog interface {
	Recent(limit int) ([]*ledger.Entry, error)
}

// Server exposes entity states and actions over HTTP
type Server struct {
	addr       string
	entities   Entities
	commands   CommandLog
	httpServer *http.Server
}

// NewServer creates a new API server. commands may be nil.
func NewServer(host string, port int, entities Entities, commands CommandLog) *Server {
	return &Server{
		addr:     fmt.Sprintf("%s:%d", host, port),
		entities: entities,
		commands: commands,
	}
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/entities", s.handleList)
	mux.HandleFunc("GET /api/entities/{id}", s.handleGet)
	mux.HandleFunc("POST /api/entities/{id}/turn_on", s.action(turnOn))
	mux.HandleFunc("POST /api/entities/{id}/turn_off", s.action(turnOff))
	mux.HandleFunc("POST /api/entities/{id}/select_option", s.action(selectOption))
	mux.HandleFunc("POST /api/entities/{id}/set_colors", s.action(setColors))
	mux.HandleFunc("GET /api/commands", s.handleCommands)
	return mux
}

// Run starts the server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.entities.States())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entities.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown entity")
		return
	}
	writeJSON(w, http.StatusOK, e.State())
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if s.commands == nil {
		writeJSON(w, http.StatusOK, []*ledger.Entry{})
		return
	}

	limit := defaultCommandLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxCommandLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be within 1..%d", maxCommandLimit))
			return
		}
		limit = n
	}

	entries, err := s.commands.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read command ledger")
		writeError(w, http.StatusInternalServerError, "failed to read commands")
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// actionFunc decodes the body and runs one entity action
type actionFunc func(ctx context.Context, e entity.Entity, body []byte) error

func (s *Server) action(fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		e, ok := s.entities.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown entity")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("body_len", len(body)).
			Msg("API request")

		if err := fn(r.Context(), e, body); err != nil {
			var syntax *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			switch {
			case entity.IsKindMismatch(err):
				writeError(w, http.StatusMethodNotAllowed, err.Error())
			case entity.IsInputError(err), errors.As(err, &syntax), errors.As(err, &typeErr):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				log.Error().Err(err).Str("entity", id).Msg("Entity action failed")
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, e.State())
	}
}

func decode(body []byte, out any) error {
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func turnOn(ctx context.Context, e entity.Entity, body []byte) error {
	var req entity.TurnOnRequest
	if err := decode(body, &req); err != nil {
		return err
	}
	return entity.TurnOn(ctx, e, req)
}

func turnOff(ctx context.Context, e entity.Entity, body []byte) error {
	var req entity.TurnOffRequest
	if err := decode(body, &req); err != nil {
		return err
	}
	return entity.TurnOff(ctx, e, req)
}

func selectOption(ctx context.Context, e entity.Entity, body []byte) error {
	var req entity.SelectRequest
	if err := decode(body, &req); err != nil {
		return err
	}
	return entity.SelectOption(ctx, e, req)
}

func setColors(ctx context.Context, e entity.Entity, body []byte) error {
	var req entity.ColorsRequest
	if err := decode(body, &req); err != nil {
		return err
	}
	return entity.SetColors(ctx, e, req)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
