// Package http exposes the Fintrack JSON API: auth, transactions, the
// live transaction feed, dashboard aggregates and market quotes.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/feed"
	"fintrack/internal/quotes"
	"fintrack/internal/services"
)

type Server struct {
	http.Server

	auth         *auth.Service
	transactions *services.TransactionService
	feed         *feed.Hub
	quotes       *quotes.Client
	rateLimiter  *rateLimiter

	// Dashboard summaries are cached per owner and invalidated on every
	// transaction write.
	summaryCache *cache.LRUCache[core.Summary]

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, authSvc *auth.Service, txSvc *services.TransactionService, feedHub *feed.Hub, quoteClient *quotes.Client) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		auth:         authSvc,
		transactions: txSvc,
		feed:         feedHub,
		quotes:       quoteClient,
		rateLimiter:  newRateLimiter(),
		summaryCache: cache.NewLRUCache[core.Summary](500, 5*time.Minute),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	// public auth endpoints
	mux.HandleFunc("POST /api/v1/auth/register", s.withMiddleware(s.handleRegister))
	mux.HandleFunc("POST /api/v1/auth/login", s.withMiddleware(s.handleLogin))
	mux.HandleFunc("POST /api/v1/auth/social", s.withMiddleware(s.handleSocialLogin))
	mux.HandleFunc("POST /api/v1/auth/password-reset", s.withMiddleware(s.handlePasswordReset))
	mux.HandleFunc("POST /api/v1/auth/verify-email/confirm", s.withMiddleware(s.handleVerifyEmailConfirm))

	// session-bound auth endpoints
	mux.HandleFunc("POST /api/v1/auth/logout", s.withMiddleware(s.handleLogout))
	mux.HandleFunc("GET /api/v1/auth/session", s.withMiddleware(s.requireAuth(s.handleSession)))
	mux.HandleFunc("PATCH /api/v1/auth/profile", s.withMiddleware(s.requireAuth(s.handleUpdateProfile)))
	mux.HandleFunc("POST /api/v1/auth/verify-email/request", s.withMiddleware(s.requireAuth(s.handleVerifyEmailRequest)))

	// transactions
	mux.HandleFunc("GET /api/v1/transactions", s.withMiddleware(s.requireAuth(s.handleListTransactions)))
	mux.HandleFunc("POST /api/v1/transactions", s.withMiddleware(s.requireAuth(s.handleCreateTransaction)))
	mux.HandleFunc("PATCH /api/v1/transactions/{id}", s.withMiddleware(s.requireAuth(s.handleUpdateTransaction)))
	mux.HandleFunc("DELETE /api/v1/transactions/{id}", s.withMiddleware(s.requireAuth(s.handleDeleteTransaction)))
	mux.HandleFunc("GET /api/v1/transactions/feed", s.withMiddleware(s.requireAuth(s.handleTransactionFeed)))

	// dashboard and quotes
	mux.HandleFunc("GET /api/v1/dashboard/summary", s.withMiddleware(s.requireAuth(s.handleDashboardSummary)))
	mux.HandleFunc("GET /api/v1/quotes", s.withMiddleware(s.requireAuth(s.handleQuotes)))

	// SSE streams only end when their snapshot channel closes, so the hub
	// must be torn down as part of shutdown or Shutdown waits out its
	// whole deadline on every open feed.
	s.RegisterOnShutdown(feedHub.Close)

	return s
}

// Shutdown stops the server and its background routines exactly once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// SummaryCache exposes the dashboard cache for lifecycle management.
func (s *Server) SummaryCache() *cache.LRUCache[core.Summary] {
	return s.summaryCache
}

// withMiddleware adds security headers, rate limiting on writes, a
// request id and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip := clientIP(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", ip,
			"user_agent", r.Header.Get("User-Agent"))

		if isWrite(r.Method) && !s.rateLimiter.allow(ip) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", ip, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", ip)
	}
}

// requireAuth resolves the bearer token before the handler runs. An
// unresolved session always yields 401, never partial content.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next(w, r.WithContext(ctx))
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code.
// Flush is forwarded so SSE handlers keep working behind the wrapper.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Simple in-memory rate limiter, keyed by client IP.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]
	if !exists {
		rl.clients[clientIP] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 write requests per minute
	client.requests++
	client.lastRequest = now
	return client.requests <= 60
}
