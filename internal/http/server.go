// Package http exposes the ledger engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bilancio/internal/currency"
	applog "bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/services"
)

// Services are the engine components the handlers call into.
type Services struct {
	Ledgers   *services.LedgerService
	Splitter  *services.InstallmentSplitter
	Recurring *services.RecurringProcessor
	Projector *currency.Projector
}

type Options struct {
	// RetryAttempts bounds retries of retryable engine errors per request.
	RetryAttempts int
	// WritesPerMinute limits mutating requests per client; 0 disables it.
	WritesPerMinute int
	Logger          *applog.Logger
	Now             func() time.Time
}

type Server struct {
	http.Server
	svc           Services
	retryAttempts int
	now           func() time.Time
	tracer        *trace.Middleware
	limiter       *ratelimit.Limiter
	shutdownOnce  sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Component: applog.ComponentHTTP, Level: applog.LevelFromEnv()})
	}

	s := &Server{
		svc:           svc,
		retryAttempts: opts.RetryAttempts,
		now:           opts.Now,
		tracer:        trace.NewMiddleware(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(applog.Middleware(opts.Logger))
	r.Use(s.tracer.Middleware)
	if opts.WritesPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.WritesPerMinute})
		r.Use(s.limiter.Writes)
	}
	r.Use(middleware.SetHeader("X-Content-Type-Options", "nosniff"))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleReady)

	r.Route("/ledgers/{key}", func(r chi.Router) {
		r.Put("/", s.handleCreateLedger)
		r.Patch("/", s.handleUpdateLedger)
		r.Get("/", s.handleGetLedger)
		r.Get("/overview", s.handleMonthOverview)

		r.Delete("/expenses/{id}", s.handleDeleteExpense)
		r.Patch("/expenses/{id}", s.handleExpenseStatus)
		r.Delete("/incomes/{id}", s.handleDeleteIncome)
		r.Patch("/incomes/{id}", s.handleIncomeStatus)
	})
	r.Get("/years/{year}/overview", s.handleYearOverview)

	r.Post("/installments", s.handleCreateInstallment)
	r.Delete("/installments/{groupID}", s.handleDeleteInstallment)

	r.Route("/recurring", func(r chi.Router) {
		r.Post("/", s.handleSaveRule)
		r.Get("/", s.handleListRules)
		r.Delete("/{id}", s.handleDeleteRule)
		r.Post("/tick", s.handleTick)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the limiter's cleanup goroutine and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Metrics returns request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
