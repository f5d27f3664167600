// Package http implements the REST API of the gamification core on gin.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dororo-lms/lms-backend/config"
	"github.com/dororo-lms/lms-backend/internal/application/command"
	"github.com/dororo-lms/lms-backend/internal/application/query"
	"github.com/dororo-lms/lms-backend/internal/interface/http/handlers"
	"github.com/dororo-lms/lms-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// AllowedOrigins for CORS. "*" allows any origin.
	AllowedOrigins []string

	// RateLimitPerMinute - requests per minute per client (0 = disabled).
	RateLimitPerMinute int

	// UserHeader carries the authenticated user ID.
	UserHeader string

	// Version is reported by the health endpoints.
	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20, // 1 MB
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 120,
		UserHeader:         "X-User-ID",
		Version:            "v1",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Handler is an application command or query handler.
type Handler[Q, R any] interface {
	Handle(ctx context.Context, q Q) (R, error)
}

// FeatureGate answers whether a feature is on for a user.
type FeatureGate interface {
	Enabled(feature, userID string) bool
}

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Commands
	RecordAccess      Handler[command.RecordAccessCommand, *command.RecordAccessResult]
	ConfirmAttendance Handler[command.ConfirmAttendanceCommand, *command.ConfirmAttendanceResult]

	// Queries
	AttendanceStatus Handler[query.AttendanceStatusQuery, *query.AttendanceStatusDTO]
	TodayAttendance  Handler[query.TodayAttendanceQuery, *query.TodayAttendanceDTO]
	MyLevel          Handler[query.MyLevelQuery, *query.MyLevelDTO]
	AttendanceMap    Handler[query.AttendanceMapQuery, *query.AttendanceMapDTO]
	Challenge        Handler[query.ChallengeQuery, *query.ChallengeDTO]

	// Features may be nil, which enables everything.
	Features FeatureGate

	HealthChecker handlers.HealthChecker

	// BreakerState reports the solved.ac circuit breaker. Optional.
	BreakerState func() string

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	engine     *gin.Engine
	httpServer *http.Server
	logger     *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(cfg Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = handlers.NewCompositeHealthChecker(cfg.Version)
	}
	if cfg.UserHeader == "" {
		cfg.UserHeader = DefaultConfig().UserHeader
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: deps.Logger.With(logger.Component("http")),
	}

	s.engine = gin.New()
	s.engine.RedirectTrailingSlash = true
	s.buildMiddlewareChain()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           cfg.Address(),
		Handler:        s.engine,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)
	s.engine.GET("/live", s.handleLive)

	// ─────────────────────────────────────────────────────────────────────────
	// API - authenticated by the upstream auth layer
	// ─────────────────────────────────────────────────────────────────────────
	api := s.engine.Group("/api")
	api.Use(requireUser(s.config.UserHeader))

	api.GET("/attendance/status/", s.handleAttendanceStatus)
	api.GET("/me/level/", s.handleMyLevel)

	g := api.Group("/gamification")
	g.GET("/today-attendance/", s.handleTodayAttendance)
	g.POST("/today-attendance/", s.handleConfirmAttendance)
	g.POST("/access/", s.handleRecordAccess)
	g.GET("/attendance-map/", s.requireFeature(config.FeatureAttendanceMap), s.handleAttendanceMap)

	api.GET("/student/challenge/", s.requireFeature(config.FeatureChallenge), s.handleChallenge)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) buildMiddlewareChain() {
	s.engine.Use(recovery(s.logger))
	s.engine.Use(requestID())
	s.engine.Use(requestLogger(s.logger))
	s.engine.Use(corsMiddleware(s.config.AllowedOrigins, s.config.UserHeader))

	if s.config.RateLimitPerMinute > 0 {
		s.engine.Use(rateLimit(newRateLimiter(s.config.RateLimitPerMinute, time.Minute)))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Address returns the server address.
func (s *Server) Address() string {
	return s.config.Address()
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH ENDPOINTS
// These use the envelope; the gamification endpoints answer bare payloads.
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents the standard envelope.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

func (s *Server) writeEnvelope(c *gin.Context, status int, data interface{}, apiErr *APIError) {
	c.JSON(status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Error:     apiErr,
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC(), Version: s.config.Version},
		RequestID: requestIDFrom(c),
	})
}

type healthPayload struct {
	handlers.HealthStatus
	SolvedAcBreaker string `json:"solvedac_breaker,omitempty"`
}

func (s *Server) health(c *gin.Context) healthPayload {
	payload := healthPayload{HealthStatus: s.deps.HealthChecker.Check(c.Request.Context())}
	if s.deps.BreakerState != nil {
		payload.SolvedAcBreaker = s.deps.BreakerState()
	}
	return payload
}

func (s *Server) handleHealth(c *gin.Context) {
	payload := s.health(c)
	if !payload.Healthy {
		s.writeEnvelope(c, http.StatusServiceUnavailable, payload,
			&APIError{Code: "unhealthy", Message: payload.Message})
		return
	}
	s.writeEnvelope(c, http.StatusOK, payload, nil)
}

func (s *Server) handleReady(c *gin.Context) {
	payload := s.health(c)
	if !payload.Ready {
		s.writeEnvelope(c, http.StatusServiceUnavailable, gin.H{"ready": false},
			&APIError{Code: "not_ready", Message: payload.Message})
		return
	}
	s.writeEnvelope(c, http.StatusOK, gin.H{"ready": true}, nil)
}

func (s *Server) handleLive(c *gin.Context) {
	s.writeEnvelope(c, http.StatusOK, gin.H{"alive": true}, nil)
}
