// Package api exposes the inspector engine as plain JSON operations for a
// dashboard UI to bind to. It does no rendering of its own.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/generation-inspector/internal/inspector"
	"github.com/lueurxax/generation-inspector/internal/llm"
	"github.com/lueurxax/generation-inspector/internal/platform/config"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Server serializes all engine operations behind one mutex: the engine
// assumes a single active session and does no locking of its own.
type Server struct {
	cfg      *config.Config
	session  *inspector.Session
	pipeline *inspector.Pipeline
	backend  llm.Client
	logger   *zerolog.Logger

	mu sync.Mutex
}

func NewServer(cfg *config.Config, session *inspector.Session, pipeline *inspector.Pipeline, backend llm.Client, logger *zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		session:  session,
		pipeline: pipeline,
		backend:  backend,
		logger:   logger,
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("POST /api/base-model", s.handleBaseModel)
	mux.HandleFunc("POST /api/reload", s.handleReload)
	mux.HandleFunc("GET /api/table", s.handleTable)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("POST /api/filter", s.handleFilter)
	mux.HandleFunc("POST /api/sort", s.handleSort)
	mux.HandleFunc("POST /api/update", s.handleUpdate)
	mux.HandleFunc("GET /api/stats", s.handleStatsList)
	mux.HandleFunc("POST /api/stats", s.handleStatsAdd)
	mux.HandleFunc("POST /api/stats/delete", s.handleStatsDelete)
	mux.HandleFunc("GET /api/labels", s.handleLabelsList)
	mux.HandleFunc("POST /api/labels", s.handleLabelsAdd)
	mux.HandleFunc("POST /api/labels/apply", s.handleLabelsApply)
	mux.HandleFunc("POST /api/rows", s.handleRows)
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("POST /api/parse", s.handleParse)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)

		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", s.cfg.HTTPPort).Msg("API server starting")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}
