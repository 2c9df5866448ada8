// Package server provides the HTTP API for Nikki.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/nikki/internal/config"
	"github.com/hyperjump/nikki/internal/indexer"
	"github.com/hyperjump/nikki/internal/jobs"
	"github.com/hyperjump/nikki/internal/keyword"
	"github.com/hyperjump/nikki/internal/rag"
	"github.com/hyperjump/nikki/internal/storage"
	"github.com/hyperjump/nikki/internal/vector"
)

// Server is the HTTP server for the Nikki API.
type Server struct {
	storage      storage.Storage
	indexer      *indexer.Indexer
	answerer     *rag.Answerer
	coordinator  *jobs.Coordinator
	keywordIndex keyword.KeywordIndex
	vectorIndex  vector.VectorIndex
	config       *config.Config
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies. keywordIndex may be
// nil; the search endpoint then reports it as unavailable.
func NewServer(
	store storage.Storage,
	idx *indexer.Indexer,
	answerer *rag.Answerer,
	coordinator *jobs.Coordinator,
	keywordIndex keyword.KeywordIndex,
	vectorIndex vector.VectorIndex,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		storage:      store,
		indexer:      idx,
		answerer:     answerer,
		coordinator:  coordinator,
		keywordIndex: keywordIndex,
		vectorIndex:  vectorIndex,
		config:       cfg,
		logger:       logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/entries", s.handleCreateEntry)
		r.Get("/entries", s.handleListEntries)
		r.Get("/entries/search", s.handleSearchEntries)
		r.Get("/entries/{id}", s.handleGetEntry)
		r.Put("/entries/{id}", s.handleUpdateEntry)
		r.Delete("/entries/{id}", s.handleDeleteEntry)
		r.Post("/index", s.handleIndexEntry)
		r.Post("/chat", s.handleChat)
		r.Post("/summaries", s.handleSubmitSummary)
		r.Get("/summaries/jobs/{id}", s.handlePollSummaryJob)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
