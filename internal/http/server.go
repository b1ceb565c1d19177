// Package http exposes the expense cache and the identity provider as a JSON
// API. Every request builds its own ledger.List, so views never share state.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"agrogestion/internal/auth"
	"agrogestion/internal/cache"
	"agrogestion/internal/core"
	"agrogestion/internal/ledger"
	"agrogestion/internal/log"
	"agrogestion/internal/store"
)

// Deps are the collaborators the handlers use. Summaries and Events are
// optional.
type Deps struct {
	Auth      auth.Provider
	Expenses  *ledger.Service
	Summaries *cache.Summaries
	Events    *Hub
	Logger    *log.Logger
	// Now is the clock for dashboard defaults and new expense dates.
	Now func() time.Time
	// RateLimit is the number of mutating requests per client IP per minute.
	RateLimit int
}

type Server struct {
	http.Server
	deps    Deps
	logger  *log.Logger
	limiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &Server{
		deps:    deps,
		logger:  deps.Logger.WithComponent(log.ComponentHTTP),
		limiter: newRateLimiter(deps.RateLimit),
	}
	go s.limiter.startCleanup(5 * time.Minute)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.authenticated(s.handleLogout))
	mux.HandleFunc("GET /api/auth/me", s.authenticated(s.handleMe))
	mux.HandleFunc("PUT /api/auth/me", s.authenticated(s.handleUpdateMe))
	mux.HandleFunc("POST /api/auth/password-reset", s.handlePasswordReset)
	mux.HandleFunc("POST /api/auth/password-reset/confirm", s.handlePasswordResetConfirm)

	mux.HandleFunc("GET /api/expenses", s.authenticated(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.authenticated(s.handleCreateExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.authenticated(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.authenticated(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/summary/{year}", s.authenticated(s.handleAnnualSummary))
	mux.HandleFunc("GET /api/dashboard", s.authenticated(s.handleDashboard))

	if s.deps.Events != nil {
		mux.HandleFunc("GET /api/events", s.authenticated(s.deps.Events.serve))
	}

	var h http.Handler = mux
	h = s.limiter.middleware(h)
	h = withSecurityHeaders(h)
	h = withRequestID(h)
	return log.Middleware(s.deps.Logger)(h)
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = generateRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := log.NewContext(r.Context(), log.FromContext(r.Context()).With(log.FieldRequestID, id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, u core.User)

// authenticated resolves the bearer token to the session user.
func (s *Server) authenticated(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			UnauthorizedError("missing bearer token").Write(w)
			return
		}
		id, err := s.deps.Auth.CurrentIdentity(r.Context(), token)
		if err != nil {
			s.writeAuthError(w, r, err)
			return
		}
		next(w, r, auth.UserFromIdentity(id))
	}
}

// writeAuthError maps identity provider errors to statuses.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		UnauthorizedError(err.Error()).Write(w)
	case errors.Is(err, auth.ErrDuplicate):
		ErrorResponse(http.StatusConflict, err.Error()).Write(w)
	case errors.Is(err, auth.ErrInvalidInput):
		UnprocessableEntityError(err.Error()).Write(w)
	case store.IsTransient(err):
		log.FromContext(r.Context()).WarnContext(r.Context(), "Identity provider unavailable", log.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "identity provider unavailable").Header("Retry-After", "5").Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Identity provider failed", log.FieldError, err)
		ErrorResponse(http.StatusBadGateway, "identity provider error").Write(w)
	}
}

// writeFailure maps a controller failure: retryable is 503, a rejected
// record is 422, any other terminal failure is 502.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, f *ledger.Failure) {
	if f == nil {
		InternalServerError("operation failed").Write(w)
		return
	}
	logger := log.FromContext(r.Context())
	body := errorBody{Error: f.Error(), Kind: f.Kind.String()}
	switch {
	case f.Kind == ledger.Retryable:
		logger.WarnContext(r.Context(), "Remote store unavailable", log.FieldOperation, f.Op, log.FieldError, f.Err)
		NewJSONResponse().Status(http.StatusServiceUnavailable).Header("Retry-After", "5").Body(body).Write(w)
	case errors.Is(f, store.ErrRejected):
		NewJSONResponse().Status(http.StatusUnprocessableEntity).Body(body).Write(w)
	default:
		logger.ErrorContext(r.Context(), "Remote store failed", log.FieldOperation, f.Op, log.FieldError, f.Err)
		NewJSONResponse().Status(http.StatusBadGateway).Body(body).Write(w)
	}
}

// Shutdown stops background work and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		if s.deps.Events != nil {
			s.deps.Events.Close()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}
