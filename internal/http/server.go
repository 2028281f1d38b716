package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"hisob/internal/cache"
	"hisob/internal/core"
	"hisob/internal/currency"
	"hisob/internal/log"
	"hisob/internal/middleware/ratelimit"
	"hisob/internal/middleware/security"
	"hisob/internal/middleware/trace"
	"hisob/internal/services"
)

// requestTimeout bounds the service work of a single request.
const requestTimeout = 7 * time.Second

const (
	summaryCacheSize = 256
	summaryCacheTTL  = time.Minute
)

// Deps are the services behind the API. Ready may be nil.
type Deps struct {
	Transactions *services.TransactionService
	Reports      *services.ReportService
	Dashboard    *services.DashboardService
	Budgets      *services.BudgetService
	Goals        *services.GoalService
	Converter    *currency.Converter
	Ready        func(ctx context.Context) error
	Base         core.Currency
	Logger       *log.Logger
	Now          services.Clock
}

type Server struct {
	http.Server
	deps   Deps
	logger *log.Logger
	now    services.Clock

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	// Dashboard summaries are cached per user and dropped when the user
	// records a transaction.
	summaries *cache.LRUCache[services.Summary]
	caches    *cache.Manager
	versionMu sync.Mutex
	versions  map[int64]uint64

	metrics struct {
		recorded      atomic.Int64
		summaryHits   atomic.Int64
		summaryMisses atomic.Int64
		started       time.Time
	}

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware and returns a server ready to
// ListenAndServe on addr.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Base == "" {
		deps.Base = core.UZS
	}

	s := &Server{
		deps:      deps,
		logger:    deps.Logger.WithComponent(log.ComponentHTTP),
		now:       deps.Now,
		limiter:   ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:  security.NewDetector(),
		summaries: cache.NewLRUCache[services.Summary](summaryCacheSize, summaryCacheTTL),
		caches:    cache.NewManager(deps.Logger.Logger),
		versions:  make(map[int64]uint64),
	}
	s.metrics.started = time.Now()
	s.tracer = trace.NewMiddleware(deps.Logger, s.detector.ExtractClientIP)

	s.caches.Register(s.summaries)
	if deps.Converter != nil {
		s.caches.Register(deps.Converter.Caches()...)
	}
	s.caches.StartCleanup(5 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/dashboard/chart", s.handleChart)
	mux.HandleFunc("GET /api/aggregate", s.handleAggregate)
	mux.HandleFunc("GET /api/trend", s.handleTrend)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/compare", s.handleCompare)

	mux.HandleFunc("GET /api/convert", s.handleConvert)
	mux.HandleFunc("GET /api/rates", s.handleRates)
	mux.HandleFunc("GET /api/currencies", s.handleCurrencies)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)

	mux.HandleFunc("GET /api/budgets/status", s.handleBudgetsStatus)
	mux.HandleFunc("GET /api/budgets/{id}/status", s.handleBudgetStatus)
	mux.HandleFunc("GET /api/goals/{id}/progress", s.handleGoalProgress)
	mux.HandleFunc("POST /api/goals/{id}/refresh", s.handleGoalRefresh)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.rateLimitKey, s.onRateLimit)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = trace.LoggerMiddleware(deps.Logger)(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      requestTimeout + 3*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.caches.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// rateLimitKey throttles per user when the identity header is present and
// per client address otherwise.
func (s *Server) rateLimitKey(r *http.Request) string {
	if id, err := ParseUserID(r); err == nil {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r))
	WriteJSON(w, r, http.StatusTooManyRequests, ErrorResponse{
		Error:     "rate limit exceeded",
		RequestID: trace.GetRequestID(r.Context()),
	})
}

func (s *Server) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

func (s *Server) summaryKey(userID int64, target core.Currency, asOf time.Time) string {
	s.versionMu.Lock()
	v := s.versions[userID]
	s.versionMu.Unlock()
	return fmt.Sprintf("%d:%d:%s:%s", userID, v, target, core.DateOf(asOf))
}

// invalidateUser makes every cached summary of userID unreachable.
func (s *Server) invalidateUser(userID int64) {
	s.versionMu.Lock()
	s.versions[userID]++
	s.versionMu.Unlock()
}

func (s *Server) getSummary(ctx context.Context, userID int64, target core.Currency, asOf time.Time) (services.Summary, error) {
	key := s.summaryKey(userID, target, asOf)
	if sum, ok := s.summaries.Get(key); ok {
		s.metrics.summaryHits.Add(1)
		return sum, nil
	}
	s.metrics.summaryMisses.Add(1)

	sum, err := s.deps.Dashboard.Summary(ctx, userID, s.deps.Base, target, asOf)
	if err != nil {
		return services.Summary{}, err
	}
	s.summaries.Set(key, sum)
	return sum, nil
}
