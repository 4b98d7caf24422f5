package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-integrations/core"
)

const (
	DefaultUserID       = "demo_user"
	headerUserID        = "X-User-ID"
	headerOrgID         = "X-Organization-ID"
	queryUserID         = "user_id"
	queryOrgID          = "org_id"
	rootMessage         = "Integration API is running"
	notFoundDetail      = "Integration not found"
	internalErrorDetail = "Internal server error"
)

// Config controls router construction.
type Config struct {
	// DefaultUserID is used when a request names no user.
	DefaultUserID  string
	AllowedOrigins []string
	Logger         glog.Logger
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	Debug          bool
}

// NewRouter builds the gin engine exposing the broker operations.
func NewRouter(service core.IntegrationService, cfg Config) *gin.Engine {
	setupGinMode(cfg.Debug)
	if cfg.Logger == nil {
		cfg.Logger = glog.Nop()
	}
	if strings.TrimSpace(cfg.DefaultUserID) == "" {
		cfg.DefaultUserID = DefaultUserID
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(cfg.Logger))
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	h := &handlers{service: service, defaultUserID: cfg.DefaultUserID, logger: cfg.Logger}

	r.GET("/", h.root)
	r.GET("/auth-urls", h.authURLs)
	r.GET("/authorize/:provider", h.authorize)
	r.POST("/oauth2callback/:provider", h.callbackJSON)
	r.GET("/oauth2callback/:provider", h.callbackQuery)
	r.GET("/check-auth/:provider", h.checkAuth)
	r.GET("/credentials/:provider", h.credentials)
	r.GET("/items/:provider", h.items)

	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}
	return r
}

func setupGinMode(debug bool) {
	if debug {
		gin.SetMode(gin.DebugMode)
		return
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
}

func requestLogger(logger glog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
