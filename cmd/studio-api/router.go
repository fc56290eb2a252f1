package main

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cert-studio/studio-backend/internal/certificates"
	"cert-studio/studio-backend/internal/config"
	"cert-studio/studio-backend/internal/conversion"
	"cert-studio/studio-backend/internal/jobs"
	"cert-studio/studio-backend/internal/optimizer"
	"cert-studio/studio-backend/internal/pipeline"
	"cert-studio/studio-backend/internal/templates"
	"cert-studio/studio-backend/pkg/auth"
	"cert-studio/studio-backend/pkg/pdfdoc"
)

func newRouter(cfg *config.Config, logger *zap.Logger, manager *jobs.Manager, templateRepo templates.Repository) *gin.Engine {
	level := cfg.Studio.CompressionLevel

	composer := certificates.NewComposer(certificates.ComposerOptions{
		PageSize:    cfg.Studio.PageSize,
		JPEGQuality: cfg.Studio.JPEGQuality,
	})
	certificateService := certificates.NewService(certificates.NewAssembler(composer, level), newRasterizer(cfg), logger)

	var converter pipeline.Converter
	if cfg.Converter.URL != "" {
		converter = conversion.NewClient(conversion.Options{
			URL:        cfg.Converter.URL,
			Timeout:    cfg.Converter.Timeout,
			MaxRetries: cfg.Converter.MaxRetries,
		}, logger)
	}
	organizeService := pipeline.NewService(converter, pipeline.Options{
		MaxConcurrentIngest: cfg.Jobs.MaxConcurrentIngest,
		CompressionLevel:    level,
	}, logger)

	if gin.Mode() != gin.TestMode && cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors(cfg.Server.AllowedOrigins))
	router.MaxMultipartMemory = 32 << 20

	api := router.Group("/api/v1")
	{
		certificates.NewHandler(certificateService, manager, logger).RegisterRoutes(api)
		pipeline.NewHandler(organizeService, manager, logger).RegisterRoutes(api)
		optimizer.NewHandler(optimizer.NewOptimizer(level, logger), manager, logger).RegisterRoutes(api)
		jobs.NewHandler(manager, logger).RegisterRoutes(api)
		if templateRepo != nil {
			verifier := auth.NewVerifier(cfg.Security.JWTSecret)
			templates.NewHandler(templates.NewService(templateRepo, logger), logger).RegisterRoutes(api, verifier.Middleware())
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "healthy",
			"timestamp":       time.Now(),
			"converter":       converter != nil,
			"templates":       templateRepo != nil,
			"pdf_backgrounds": cfg.Studio.Rasterizer != "",
		})
	})
	return router
}

func newRasterizer(cfg *config.Config) pdfdoc.Rasterizer {
	if cfg.Studio.Rasterizer == "" {
		return nil
	}
	return pdfdoc.NewPoppler(cfg.Studio.Rasterizer, cfg.Studio.RasterWidth)
}

func cors(allowed []string) gin.HandlerFunc {
	wildcard := slices.Contains(allowed, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case wildcard:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(allowed, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, Location")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
