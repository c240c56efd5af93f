// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"gerenciador/internal/aggregate"
	"gerenciador/internal/core"
	"gerenciador/internal/groups"
	"gerenciador/internal/log"
	"gerenciador/internal/middleware/ratelimit"
	"gerenciador/internal/middleware/security"
	"gerenciador/internal/middleware/trace"
	"gerenciador/internal/query"
	"gerenciador/internal/services"
)

// Ledger is the part of services.LedgerService the handlers need.
type Ledger interface {
	Registry() *groups.Registry
	Today() core.Date
	Ping(ctx context.Context) error

	ListGroup(ctx context.Context, key string) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, in services.NewTransaction) ([]core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	SetPaid(ctx context.Context, id int64, paid bool) (core.Transaction, error)

	CurrentMonthTotals(ctx context.Context, today core.Date) (aggregate.MonthTotals, error)
	AnnualSummary(ctx context.Context, year int) (aggregate.AnnualSummary, error)
	AvailableYears(ctx context.Context, today core.Date) ([]int, error)
	Query(ctx context.Context, f query.Filter) (query.Result, error)
	AllCategories(ctx context.Context) ([]string, error)
	Schedule(start core.Date, count int) ([]core.Date, error)
	Refresh(ctx context.Context)
}

var _ Ledger = (*services.LedgerService)(nil)

// Options configures NewServer. Zero values pick defaults.
type Options struct {
	Logger    *log.Logger
	RateLimit ratelimit.Config
	Headers   *security.HeadersConfig
}

type Server struct {
	http.Server
	ledger   Ledger
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	headers  security.HeadersConfig
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger Ledger, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.RateLimit.RequestsPerMinute == 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}
	headers := security.DefaultHeadersConfig()
	if opts.Headers != nil {
		headers = *opts.Headers
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector(opts.Logger)
	s := &Server{
		ledger:   ledger,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ClientIP),
		headers:  headers,
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/groups", s.handleGroups)
	mux.HandleFunc("GET /api/groups/{key}/transactions", s.handleGroupTransactions)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/transactions/{id}/paid", s.handleSetPaid)

	mux.HandleFunc("GET /api/summary/current", s.handleCurrentSummary)
	mux.HandleFunc("GET /api/summary/annual", s.handleAnnualSummary)
	mux.HandleFunc("GET /api/years", s.handleYears)
	mux.HandleFunc("GET /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// middleware wraps h outermost first: tracing, request-scoped logger,
// scanner blocking, headers, then POST/DELETE throttling.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.limiter.Middleware(s.detector.ClientIP, s.onRateLimited)(h)
	h = security.Headers(s.headers)(h)
	h = s.detector.Middleware(h)
	h = log.RequestIDMiddleware(trace.FromRequest)(h)
	h = log.Middleware(s.logger)(h)
	return s.tracer.Middleware(h)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.NewFields().
			WithComponent(log.ComponentRateLimit).
			WithClientIP(s.detector.ClientIP(r)).
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
			ToSlice()...)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// Shutdown stops the background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
