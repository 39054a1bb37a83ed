// Package httpapi exposes the order flow engine's analyze_order_flow
// operation over HTTP for local development and manual probing.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fintools-ai/mcp-order-flow-server/internal/orderflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// Analyzer is the subset of orderflow.Engine the router depends on.
type Analyzer interface {
	AnalyzeOrderFlow(ctx context.Context, ticker, history string, includePatterns bool, now time.Time) orderflow.Snapshot
}

// NewRouter builds the dev harness router: CORS, a per-IP rate
// limiter, Prometheus scrape endpoint, a liveness probe, and the
// analyze_order_flow operation itself.
func NewRouter(engine Analyzer, logger *zap.Logger, rateLimitPerMinute int) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimitPerMinute > 0 {
		rate := limiter.Rate{Period: time.Minute, Limit: int64(rateLimitPerMinute)}
		store := memory.NewStore()
		router.Use(ginlimiter.NewMiddleware(limiter.New(store, rate)))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/analyze_order_flow", analyzeHandler(engine))

	return router
}

func analyzeHandler(engine Analyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticker := c.Query("ticker")
		history := c.Query("history")
		includePatterns, _ := strconv.ParseBool(c.DefaultQuery("include_patterns", "false"))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		snap := engine.AnalyzeOrderFlow(ctx, ticker, history, includePatterns, time.Now())
		body, err := orderflow.Render(snap)
		if err != nil {
			c.String(http.StatusInternalServerError, "render failed: %v", err)
			return
		}
		c.Data(http.StatusOK, "application/xml; charset=utf-8", body)
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
