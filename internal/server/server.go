// Package server implements the portfolio HTTP API: the public contact and
// chat endpoints, the admin endpoints, and health probes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sofatutor/portfolio-api/internal/assistant"
	"github.com/sofatutor/portfolio-api/internal/audit"
	"github.com/sofatutor/portfolio-api/internal/auth"
	"github.com/sofatutor/portfolio-api/internal/config"
	"github.com/sofatutor/portfolio-api/internal/database"
	"github.com/sofatutor/portfolio-api/internal/metrics"
	"github.com/sofatutor/portfolio-api/internal/middleware"
	"github.com/sofatutor/portfolio-api/internal/notify"
	"github.com/sofatutor/portfolio-api/internal/ratelimit"
)

// Version is the application version, following semantic versioning.
const Version = "1.0.0"

// AdminStore is the persistence used by the admin endpoints and probes.
type AdminStore interface {
	ListSubmissions(ctx context.Context, opts database.ListOptions) ([]database.ContactSubmission, error)
	MarkSubmissionRead(ctx context.Context, id string) (database.ContactSubmission, error)
	CountUnread(ctx context.Context) (int, error)
	ListSessions(ctx context.Context, limit int) ([]database.ChatSession, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server routes to. Metrics and Audit are optional.
type Deps struct {
	Chat    *assistant.Service
	Contact *notify.ContactService
	Store   AdminStore
	Limiter ratelimit.Limiter
	Keys    *auth.KeyVerifier
	Audit   *audit.Logger
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Server wraps the gin engine and the underlying http.Server.
type Server struct {
	config        *config.Config
	engine        *gin.Engine
	server        *http.Server
	logger        *zap.Logger
	chat          *assistant.Service
	contact       *notify.ContactService
	store         AdminStore
	limiter       ratelimit.Limiter
	keys          *auth.KeyVerifier
	audit         *audit.Logger
	metrics       *metrics.Metrics
	contactPolicy ratelimit.Policy
	chatPolicy    ratelimit.Policy
	startTime     time.Time
	now           func() time.Time
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

// New builds the engine and registers every route. The server does not
// listen until Start is called.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Chat == nil || deps.Contact == nil || deps.Store == nil || deps.Limiter == nil {
		return nil, errors.New("server: chat, contact, store and limiter are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Keys == nil {
		deps.Keys = auth.NewKeyVerifier(cfg.AdminAPIKey)
	}
	if deps.Audit == nil {
		deps.Audit = audit.NewNullLogger()
	}

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:        cfg,
		engine:        gin.New(),
		logger:        deps.Logger,
		chat:          deps.Chat,
		contact:       deps.Contact,
		store:         deps.Store,
		limiter:       deps.Limiter,
		keys:          deps.Keys,
		audit:         deps.Audit,
		metrics:       deps.Metrics,
		contactPolicy: ratelimit.Policy{Name: ratelimit.ContactPolicy.Name, Window: cfg.ContactRateWindow, Max: cfg.ContactRateLimit},
		chatPolicy:    ratelimit.Policy{Name: ratelimit.ChatPolicy.Name, Window: cfg.ChatRateWindow, Max: cfg.ChatRateLimit},
		startTime:     time.Now(),
		now:           time.Now,
	}
	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout,
		IdleTimeout:       cfg.RequestTimeout * 2,
	}

	trust, invalid := middleware.NewProxyTrust(cfg.TrustedProxies)
	if len(invalid) > 0 {
		s.logger.Warn("ignoring invalid TRUSTED_PROXIES entries", zap.Strings("entries", invalid))
	}
	var observer middleware.Observer
	if s.metrics != nil {
		observer = s.metrics
	}

	s.engine.Use(
		gin.CustomRecovery(s.recover),
		middleware.RequestID(),
		middleware.ClientIP(trust),
		middleware.Logger(s.logger, observer),
		middleware.CORS(cfg.CORSAllowedOrigins, cfg.CORSMaxAge),
		middleware.BodyLimit(cfg.MaxRequestSize),
	)
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)
	s.engine.GET("/live", s.handleLive)

	api := s.engine.Group("/api")
	api.POST("/contact", s.rateLimit(s.contactPolicy), s.handleContactSubmit)
	api.POST("/chat", s.rateLimit(s.chatPolicy), s.handleChat)

	admin := api.Group("", s.requireAdmin())
	admin.GET("/contact", s.handleContactList)
	admin.PATCH("/contact/:id/read", s.handleContactMarkRead)
	admin.GET("/chat", s.handleChatSessions)
	admin.GET("/chat/:sessionId", s.handleChatTranscript)

	if s.config.EnableMetrics && s.metrics != nil {
		path := s.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.engine.GET(path, gin.WrapH(s.metrics.Handler()))
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens on the configured address. It blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("server starting", zap.String("addr", s.config.ListenAddr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddr, err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) recover(c *gin.Context, err any) {
	s.logger.Error("panic recovered",
		zap.Any("panic", err),
		zap.String("path", c.Request.URL.Path))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC(),
		Version:   Version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleReady reports 503 while the database is unreachable.
func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "database": "up"})
}

func (s *Server) handleLive(c *gin.Context) {
	c.String(http.StatusOK, "alive")
}
