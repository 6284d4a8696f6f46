// Package http exposes the JSON API and the minimal HTML entry pages.
package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgetplanner/internal/auth"
	"budgetplanner/internal/cache"
	"budgetplanner/internal/ledger"
	applog "budgetplanner/internal/log"
	"budgetplanner/internal/middleware/security"
)

// Publisher is the export feed hook. Mutations announce themselves here
// so the export worker can mirror the ledger; a nil publisher disables
// the feed.
type Publisher interface {
	PublishTransactionRecorded(ctx context.Context, id, userID string) error
	PublishTransactionDeleted(ctx context.Context, id, userID string) error
}

// Options bundles the collaborators a Server needs.
type Options struct {
	Provider  auth.Provider
	Store     *ledger.TransactionStore
	Publisher Publisher
	Logger    *applog.Logger

	LoginAttemptsPerMinute int
}

type Server struct {
	http.Server

	provider  auth.Provider
	store     *ledger.TransactionStore
	publisher Publisher
	logger    *applog.Logger
	httpLog   *applog.HTTPLogger

	rateLimiter *rateLimiter
	detector    *security.Detector

	// One working copy per signed-in user, created on first use.
	wsMu       sync.Mutex
	workspaces map[string]*ledger.Workspace

	// Month summaries keyed user|year|month, invalidated on mutation.
	summaryCache *cache.LRUCache[summaryPayload]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		provider:     opts.Provider,
		store:        opts.Store,
		publisher:    opts.Publisher,
		logger:       logger,
		httpLog:      applog.NewHTTPLogger(logger),
		rateLimiter:  newRateLimiter(opts.LoginAttemptsPerMinute),
		detector:     security.NewDetector(),
		workspaces:   make(map[string]*ledger.Workspace),
		summaryCache: cache.NewLRUCache[summaryPayload](200, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/register", s.withCommon(s.withThrottle(s.handleRegister)))
	mux.HandleFunc("/api/login", s.withCommon(s.withThrottle(s.handleLogin)))
	mux.HandleFunc("/api/logout", s.withCommon(s.handleLogout))

	mux.HandleFunc("/api/transactions", s.withCommon(s.withSession(s.handleTransactions)))
	mux.HandleFunc("/api/transactions/", s.withCommon(s.withSession(s.handleTransactionByID)))
	mux.HandleFunc("/api/summary", s.withCommon(s.withSession(s.handleSummary)))
	mux.HandleFunc("/api/categories", s.withCommon(s.handleCategories))

	mux.HandleFunc("/login", s.withCommon(s.handleLoginPage))
	mux.HandleFunc("/register", s.withCommon(s.handleRegisterPage))
	mux.HandleFunc("/dashboard", s.withCommon(s.handleDashboardPage))
	mux.HandleFunc("/", s.withCommon(s.handleIndex))

	// Every request carries a context logger tagged with a fresh request
	// id; handlers pick it up through applog.FromContext.
	s.Server.Handler = applog.Middleware(logger)(
		applog.RequestIDMiddleware(newRequestID)(mux))

	return s
}

func newRequestID(*http.Request) string {
	return "req_" + uuid.NewString()
}

// Shutdown stops the cleanup goroutines along with the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		s.cacheManager.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// workspaceFor returns the signed-in user's working copy, creating it on
// first use.
func (s *Server) workspaceFor(session auth.Session) *ledger.Workspace {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	ws, ok := s.workspaces[session.UserID]
	if !ok {
		ws = ledger.NewWorkspace(s.store, session)
		s.workspaces[session.UserID] = ws
	}
	return ws
}

// withCommon adds security headers, scanner detection, and request
// logging. The context logger comes from the middleware chain set up in
// NewServer.
func (s *Server) withCommon(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := s.detector.ClientIP(r)
		ctx := r.Context()

		if s.detector.Suspicious(r) {
			applog.FromContext(ctx).Warn("suspicious request",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		s.httpLog.LogStart(ctx, r, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.httpLog.LogEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// withThrottle rate-limits credential endpoints per client IP.
func (s *Server) withThrottle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := s.detector.ClientIP(r)
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			applog.FromContext(r.Context()).Warn("rate limit exceeded",
				applog.FieldClientIP, clientIP, applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests,
				errorResponse{Error: "too many attempts, try again later"})
			return
		}
		next(w, r)
	}
}

// withSession resolves the bearer token or session cookie and rejects
// the request when neither names a live session.
func (s *Server) withSession(next func(http.ResponseWriter, *http.Request, auth.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, auth.ErrNoSession)
			return
		}

		session, err := s.provider.Lookup(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, auth.ErrNoSession)
			return
		}

		next(w, r, session)
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) summaryKey(userID string, year, month int) string {
	return userID + "|" + strconv.Itoa(year) + "|" + strconv.Itoa(month)
}

func (s *Server) invalidateSummaries(userID string) {
	s.summaryCache.DeletePrefix(userID + "|")
}
