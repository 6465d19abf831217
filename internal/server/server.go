package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonathan/article-agent/internal/catalog"
	"github.com/jonathan/article-agent/internal/config"
	"github.com/jonathan/article-agent/internal/server/middleware"
	"github.com/jonathan/article-agent/internal/server/ratelimit"
	"github.com/jonathan/article-agent/internal/workflow"
)

// maxBodyBytes bounds request bodies. Sample content is the largest payload.
const maxBodyBytes = 2 << 20

// Options configures a Server.
type Options struct {
	Addr       string
	Controller *workflow.Controller
	Catalog    *catalog.Service
	Auth       config.AuthConfig
	// RateLimit nil uses the environment configuration.
	RateLimit *ratelimit.Config
	Logger    *slog.Logger

	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP API server.
type Server struct {
	httpServer  *http.Server
	controller  *workflow.Controller
	catalog     *catalog.Service
	jwt         *JWTService
	editors     *EditorService
	auth        *AuthHandler
	rateLimiter *ratelimit.Limiter
	logger      *slog.Logger
	shutdown    time.Duration
}

// New creates a server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Controller == nil {
		return nil, errors.New("workflow controller is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("catalog service is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	jwtService, err := NewJWTService(opts.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	hasher, err := config.NewPasswordHasher(opts.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}

	rlConfig := opts.RateLimit
	if rlConfig == nil {
		rlConfig = ratelimit.LoadConfig()
	}

	s := &Server{
		controller:  opts.Controller,
		catalog:     opts.Catalog,
		jwt:         jwtService,
		editors:     NewEditorService(opts.Catalog.Store(), hasher),
		rateLimiter: ratelimit.NewLimiter(rlConfig),
		logger:      logger,
		shutdown:    opts.ShutdownTimeout,
	}
	s.auth = NewAuthHandler(s, s.editors, jwtService)
	if s.shutdown <= 0 {
		s.shutdown = 30 * time.Second
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
		// No WriteTimeout: log streams stay open and step execution can take minutes.
		IdleTimeout: 60 * time.Second,
	}
	return s, nil
}

// Handler returns the full middleware chain over the routes.
func (s *Server) Handler() http.Handler {
	protected := http.NewServeMux()

	// Tasks
	protected.HandleFunc("POST /tasks", s.handleCreateTask)
	protected.HandleFunc("GET /tasks", s.handleListTasks)
	protected.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	protected.HandleFunc("DELETE /tasks/{id}", s.handleDeleteTask)
	protected.HandleFunc("POST /tasks/{id}/steps/{step}", s.handleExecuteStep)
	protected.HandleFunc("POST /tasks/{id}/confirm", s.handleConfirm)
	protected.HandleFunc("POST /tasks/{id}/abort", s.handleAbort)
	protected.HandleFunc("GET /tasks/{id}/log", s.handleTaskLog)
	protected.HandleFunc("GET /tasks/{id}/log/ws", s.handleTaskLogWS)
	protected.HandleFunc("GET /steps", s.handleListSteps)

	// Channels
	protected.HandleFunc("GET /channels", s.handleListChannels)
	protected.HandleFunc("POST /channels", s.handleCreateChannel)
	protected.HandleFunc("GET /channels/{id}", s.handleGetChannel)
	protected.HandleFunc("PUT /channels/{id}", s.handleUpdateChannel)
	protected.HandleFunc("DELETE /channels/{id}", s.handleDeactivateChannel)
	protected.HandleFunc("GET /channels/{id}/samples", s.handleListChannelSamples)
	protected.HandleFunc("POST /channels/{id}/samples/import", s.handleImportSample)

	// Style samples
	protected.HandleFunc("POST /samples", s.handleCreateSample)
	protected.HandleFunc("GET /samples/{id}", s.handleGetSample)
	protected.HandleFunc("PUT /samples/{id}", s.handleUpdateSample)
	protected.HandleFunc("DELETE /samples/{id}", s.handleDeleteSample)
	protected.HandleFunc("POST /samples/{id}/analyze", s.handleAnalyzeSample)

	// Materials
	protected.HandleFunc("POST /materials", s.handleCreateMaterial)
	protected.HandleFunc("GET /materials", s.handleListMaterials)
	protected.HandleFunc("GET /materials/{id}", s.handleGetMaterial)
	protected.HandleFunc("DELETE /materials/{id}", s.handleDeleteMaterial)

	protected.HandleFunc("GET /auth/me", s.auth.Me)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /auth/register", s.auth.Register)
	mux.HandleFunc("POST /auth/login", s.auth.Login)
	mux.Handle("/", middleware.Auth(s.jwt.AsTokenValidator())(protected))

	return s.withRateLimit(middleware.Logging(s.logger)(middleware.CORS(mux)))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	defer s.rateLimiter.Stop()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Close stops background work without serving. Used by tests that only
// exercise Handler.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// withRateLimit applies the per-client limiter.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", "error", err)
	}
}

// writeError maps err to a status and writes an error JSON response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal server error"
	}
	s.jsonResponse(w, status, map[string]string{"error": errorCode(status), "message": message})
}

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			s.writeError(w, r, &ErrValidation{Message: "request body is required"})
			return false
		}
		s.writeError(w, r, &ErrValidation{Message: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// clientID uses the remote IP. Forwarded headers are not trusted.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}
	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
	s.logger.Warn("rate limit exceeded", "client", clientID(r), "path", r.URL.Path, "limit", info.Limit)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
