// Package http exposes the engine as a JSON API: rebuilds, forecasts, card
// statements, import validation and the monthly report.
package http

import (
	"context"
	"net/http"
	"time"

	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/report"
	"kakeibo/internal/services"
)

// Store is everything the API needs from the backing repository.
type Store interface {
	services.ReadStore
	services.EventReplacer
	SaveCardTransactions(ctx context.Context, txs []core.CardTransaction) error
}

type Options struct {
	HorizonMonths      int
	ForecastDays       int
	DangerThresholdYen int64
}

type Server struct {
	store        Store
	materializer *services.Materializer
	projector    *services.Projector
	aggregator   *services.Aggregator
	reports      *report.Builder
	logger       *log.Logger
	opts         Options

	// forecastCache keys are "accounts:<start>:<days>" or "free:<start>:<days>".
	// A rebuild clears the whole cache.
	forecastCache *cache.LRUCache[[]byte]

	mux *http.ServeMux
}

func NewServer(store Store, logger *log.Logger, opts Options) *Server {
	if opts.HorizonMonths < 1 {
		opts.HorizonMonths = 12
	}
	if opts.ForecastDays < 1 {
		opts.ForecastDays = 90
	}

	projector := services.NewProjector(store)
	projector.DangerThresholdYen = opts.DangerThresholdYen

	s := &Server{
		store:         store,
		materializer:  services.NewMaterializer(store),
		projector:     projector,
		aggregator:    services.NewAggregator(store),
		reports:       report.NewBuilder(store),
		logger:        logger.WithComponent(log.ComponentHTTP),
		opts:          opts,
		forecastCache: cache.NewLRUCache[[]byte](64, 10*time.Minute),
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/rebuild", s.handleRebuild)
	s.mux.HandleFunc("GET /api/forecast/accounts", s.handleForecastAccounts)
	s.mux.HandleFunc("GET /api/forecast/free", s.handleForecastFree)
	s.mux.HandleFunc("GET /api/cards/{id}/statement", s.handleCardStatement)
	s.mux.HandleFunc("GET /api/cards/{id}/merchants", s.handleCardMerchants)
	s.mux.HandleFunc("POST /api/import/validate", s.handleImportValidate)
	s.mux.HandleFunc("POST /api/import/commit", s.handleImportCommit)
	s.mux.HandleFunc("GET /api/report", s.handleReport)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.DebugContext(r.Context(), "Request handled",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldDuration, time.Since(start).Milliseconds())
}

// ListenAndServe runs the server until ctx is cancelled, then drains with a
// short grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("HTTP server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("HTTP server shutting down", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	}
}
