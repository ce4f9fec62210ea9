package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"moneywise/internal/auth"
	"moneywise/internal/budget"
	"moneywise/internal/core"
	"moneywise/internal/ledger"
	"moneywise/internal/log"
	"moneywise/internal/middleware/ratelimit"
	"moneywise/internal/middleware/security"
	"moneywise/internal/middleware/trace"
	"moneywise/internal/storage"
)

// Deps are the services the API is a boundary for.
type Deps struct {
	Store    storage.Store
	Ledger   *ledger.Service
	Auditor  *ledger.Auditor
	Budgets  *budget.Service
	Verifier *auth.Verifier
	Logger   *log.Logger

	// RateLimitPerMinute caps /api requests per client IP.
	RateLimitPerMinute int
	// Now defaults to time.Now; budget status uses it for the current month.
	Now func() time.Time
}

type Server struct {
	http.Server

	deps     Deps
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires the router and returns a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		deps:     deps,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector: security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(deps.Logger, s.detector.ExtractClientIP)
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(log.Middleware(s.deps.Logger.WithComponent(log.ComponentHTTP)))
	r.Use(s.tracer.Middleware)
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	}))
	r.Use(chimw.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorBody(w, http.StatusNotFound, core.KindNotFound.String(), "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorBody(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, rateLimited))
		r.Use(s.deps.Verifier.Middleware(unauthorized))

		r.Route("/categories", func(r chi.Router) {
			r.Post("/", s.handleCreateCategory)
			r.Get("/", s.handleListCategories)
			r.Get("/{id}", s.handleGetCategory)
			r.Patch("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
		})
		r.Route("/wallets", func(r chi.Router) {
			r.Post("/", s.handleCreateWallet)
			r.Get("/", s.handleListWallets)
			r.Get("/{id}", s.handleGetWallet)
			r.Patch("/{id}", s.handleRenameWallet)
			r.Delete("/{id}", s.handleDeleteWallet)
			r.Get("/{id}/audit", s.handleAuditWallet)
		})
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", s.handleCreateTransaction)
			r.Get("/", s.handleListTransactions)
			r.Get("/{id}", s.handleGetTransaction)
			r.Patch("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})
		r.Post("/transfers", s.handleTransfer)
		r.Route("/budgets", func(r chi.Router) {
			r.Post("/", s.handleCreateBudget)
			r.Get("/", s.handleListBudgets)
			r.Get("/status", s.handleBudgetStatus)
			r.Get("/{id}", s.handleGetBudget)
			r.Put("/{id}", s.handleUpdateBudget)
			r.Delete("/{id}", s.handleDeleteBudget)
		})
	})

	return r
}

// Shutdown stops the rate limiter and drains the HTTP server. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// userOf returns the caller. Only valid behind the auth middleware.
func userOf(r *http.Request) core.UserID {
	user, _ := auth.UserFromContext(r.Context())
	return user
}

func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rejected unauthenticated request",
		log.FieldComponent, log.ComponentAuth,
		log.FieldPath, r.URL.Path,
		log.FieldError, err.Error())
	message := auth.ErrInvalidToken.Error()
	if errors.Is(err, auth.ErrMissingToken) {
		message = auth.ErrMissingToken.Error()
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="moneywise"`)
	writeErrorBody(w, http.StatusUnauthorized, "unauthorized", message)
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeErrorBody(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Store.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed",
			log.FieldComponent, log.ComponentHTTP,
			log.FieldError, err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
