package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/campus-faq/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(handler.logger),
	)

	router.GET("/healthz", handler.Health)

	api := router.Group("/api/v1")
	api.Use(rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger))
	{
		api.POST("/chat", handler.Chat)
		api.GET("/chat/suggestions", handler.Suggestions)
		api.GET("/faq/trending", handler.TrendingFAQ)
	}

	admin := api.Group("/admin")
	{
		admin.GET("/faqs", handler.ListEntries)
		admin.POST("/faqs", handler.CreateEntry)
		admin.POST("/faqs/bulk", handler.BulkCreate)
		admin.GET("/faqs/:id", handler.GetEntry)
		admin.PUT("/faqs/:id", handler.UpdateEntry)
		admin.DELETE("/faqs/:id", handler.DeleteEntry)
		admin.POST("/reindex", handler.Reindex)
		admin.GET("/settings", handler.GetSettings)
		admin.PUT("/settings", handler.UpdateSettings)
		admin.GET("/unknown", handler.UnknownQuestions)
		admin.POST("/unknown/:id/answer", handler.AnswerUnknown)
		admin.GET("/stats", handler.Stats)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
