package http

import (
	"net/http"
	"time"

	"livetrivia/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// RouterConfig carries the optional parts of the HTTP surface.
type RouterConfig struct {
	Auth        *Authenticator
	CORSOrigins []string
	// Gatherer exposes /metrics when set.
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// NewRouter wires the polling API, the websocket channel, health and metrics.
func NewRouter(service *app.GameService, cfg RouterConfig) http.Handler {
	if cfg.Auth == nil {
		cfg.Auth = NewAuthenticator("")
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(cfg.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	h := &handlers{service: service}
	api := r.Group("/api/v1", identity(cfg.Auth))
	api.GET("/session", h.session)
	api.POST("/answers", h.submitAnswer)
	api.GET("/answers/:id/waiting", h.waiting)
	api.GET("/scoreboard", h.scoreboard)
	api.GET("/leaderboards", h.leaderboards)
	api.GET("/leaderboards/:window", h.leaderboard)
	api.GET("/rank", h.rank)
	api.GET("/message", h.message)

	ws := NewWSHandler(service, cfg.Logger)
	r.GET("/ws", identity(cfg.Auth), ws.Serve)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-User-ID", "X-User-Name"},
	}).Handler(r)
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
