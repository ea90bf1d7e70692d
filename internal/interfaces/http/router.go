// Package http assembles the clauselens REST surface on gin.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/clauselens/internal/interfaces/http/handlers"
	"github.com/turtacn/clauselens/internal/interfaces/http/middleware"
	"github.com/turtacn/clauselens/pkg/errors"
)

// RouterConfig aggregates the handlers and middleware settings the route
// tree is built from. Nil handlers leave their routes unregistered.
type RouterConfig struct {
	HealthHandler  *handlers.HealthHandler
	ProfileHandler *handlers.ProfileHandler
	JobHandler     *handlers.JobHandler
	SearchHandler  *handlers.SearchHandler

	Logger  logging.Logger
	Metrics *prometheus.AppMetrics
	// MetricsHandler is served at MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string

	CORS         *middleware.CORSConfig
	RateLimit    *middleware.RateLimitConfig
	Logging      middleware.LoggingConfig
	MaxBodyBytes int64
}

// NewRouter builds the engine. Middleware runs in the order request id,
// recovery, CORS, access log, metrics, rate limit, body limit.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	r.Use(middleware.Metrics(cfg.Metrics))
	if cfg.RateLimit != nil {
		r.Use(middleware.RateLimit(*cfg.RateLimit))
	}
	r.Use(handlers.BodyLimit(cfg.MaxBodyBytes))

	r.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, errors.NotFound("route not found").WithDetail(c.Request.URL.Path))
	})
	r.NoMethod(func(c *gin.Context) {
		middleware.AbortWithError(c, errors.New(errors.ErrCodeBadRequest, "method not allowed").WithDetail(c.Request.Method))
	})

	if h := cfg.HealthHandler; h != nil {
		r.GET("/health", h.Liveness)
		r.GET("/readyz", h.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.GET(cfg.MetricsPath, gin.WrapH(cfg.MetricsHandler))
	}

	v1 := r.Group("/v1")
	if h := cfg.ProfileHandler; h != nil {
		v1.POST("/profile", h.Profile)
		v1.POST("/refine", h.Refine)
	}
	if h := cfg.JobHandler; h != nil {
		v1.POST("/jobs", h.Submit)
		v1.GET("/jobs/:id", h.Get)
	}
	if h := cfg.SearchHandler; h != nil {
		v1.GET("/clauses/search", h.Search)
	}

	return r
}
