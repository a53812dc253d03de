package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/eswifictl/internal/config"
	"github.com/danmuck/eswifictl/internal/observability"
	"github.com/danmuck/eswifictl/internal/platform"
	"github.com/danmuck/eswifictl/internal/wifi"
)

var startedAt = time.Now()

// serveDiag exposes the read-only diagnostics surface. It observes the
// manager's state; it never issues device commands of its own.
func serveDiag(cfg config.Tool, logger zerolog.Logger, manager *wifi.Manager) {
	observability.RegisterMetrics()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware())
	if len(cfg.CorsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CorsOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(startedAt).String(),
			"service": "eswifictl",
			"tick_ms": platform.Now(),
		})
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"state": manager.State().String(),
			"ssid":  cfg.SSID,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("addr", cfg.DiagAddr).Msg("diagnostics listening")
	if err := r.Run(cfg.DiagAddr); err != nil {
		log.Error().Err(err).Msg("diagnostics server stopped")
	}
}
