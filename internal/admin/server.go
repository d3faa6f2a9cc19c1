package admin

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgeguard/edgeguard/internal/observability"
	"github.com/edgeguard/edgeguard/internal/pinner"
	"github.com/edgeguard/edgeguard/internal/ratelimit"
)

// Default server timeouts.
const (
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Config holds the admin server listen settings.
type Config struct {
	// Address is the listen address. The admin API is an operational
	// surface and should stay on loopback.
	Address string

	// Port is the listen port.
	Port int

	// MetricsEnabled exposes /metrics on this server.
	MetricsEnabled bool
}

// Server is the operational HTTP API for the trust and admission layer.
type Server struct {
	cfg     Config
	limiter *ratelimit.Limiter
	pinner  *pinner.Pinner
	logger  observability.Logger
	metrics *observability.Metrics
	engine  *gin.Engine
	server  *http.Server
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics registry backing /metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// NewServer creates the admin server and registers its routes.
func NewServer(cfg Config, limiter *ratelimit.Limiter, pin *pinner.Pinner, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		limiter: limiter,
		pinner:  pin,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	s.engine = engine
	s.registerRoutes()

	return s
}

// Engine returns the underlying gin engine, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start begins serving the admin API. It blocks until the listener fails
// or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	s.logger.Info("admin server listening",
		observability.String("address", addr),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	v1 := s.engine.Group("/v1")
	{
		v1.GET("/ratelimit/status", s.handleRateLimitStatus)
		v1.GET("/ratelimit/history", s.handleRateLimitHistory)
		v1.POST("/ratelimit/reset", s.handleRateLimitReset)
		v1.PUT("/ratelimit/providers/:provider", s.handleProviderLimitUpdate)
		v1.PUT("/pins/:host", s.handlePinUpdate)
		v1.DELETE("/pins/cache", s.handlePinCacheClear)
	}

	if s.cfg.MetricsEnabled && s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// handleRateLimitStatus reports remaining quota at each scope. Reads do
// not consume tokens.
func (s *Server) handleRateLimitStatus(c *gin.Context) {
	provider := c.Query("provider")
	user := c.Query("user")

	c.JSON(http.StatusOK, s.limiter.Status(provider, user))
}

func (s *Server) handleRateLimitHistory(c *gin.Context) {
	records := s.limiter.History()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"records": records,
	})
}

type resetRequest struct {
	Provider string `json:"provider"`
	User     string `json:"user"`
}

func (s *Server) handleRateLimitReset(c *gin.Context) {
	var req resetRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	s.limiter.Reset(req.Provider, req.User)

	s.logger.Info("rate limiter reset",
		observability.String("provider", req.Provider),
		observability.String("user", req.User),
	)

	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

type providerLimitRequest struct {
	MaxRequests int    `json:"maxRequests" binding:"required"`
	Window      string `json:"window"`
}

func (s *Server) handleProviderLimitUpdate(c *gin.Context) {
	provider := c.Param("provider")

	var req providerLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	window := time.Minute
	if req.Window != "" {
		parsed, err := time.ParseDuration(req.Window)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid window: %v", err)})
			return
		}
		window = parsed
	}

	if err := s.limiter.UpdateProviderLimit(provider, req.MaxRequests, window); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider":    provider,
		"maxRequests": req.MaxRequests,
		"window":      window.String(),
	})
}

type pinUpdateRequest struct {
	Pins []string `json:"pins" binding:"required"`
}

func (s *Server) handlePinUpdate(c *gin.Context) {
	host := c.Param("host")

	var req pinUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.pinner.UpdatePins(host, req.Pins); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"host": host,
		"pins": len(req.Pins),
	})
}

func (s *Server) handlePinCacheClear(c *gin.Context) {
	s.pinner.ClearCache()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
