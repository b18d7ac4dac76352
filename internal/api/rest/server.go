package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/KevinKickass/OpenMTS/internal/config"
	"github.com/KevinKickass/OpenMTS/internal/interfaces"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	lm     interfaces.LifecycleManager
	logger *zap.Logger
	server *http.Server
}

func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		lm:     lm,
		logger: logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	s.router.GET("/health", s.healthCheck)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		system := v1.Group("/system")
		{
			system.GET("/status", s.getSystemStatus)
			system.POST("/shutdown", s.shutdown)
		}

		generator := v1.Group("/generator")
		generator.Use(s.requireGenerator())
		{
			generator.GET("/status", s.getGeneratorStatus)
			generator.GET("/base-frequency", s.getBaseFrequency)
			generator.GET("/modules", s.listModules)
		}

		outputs := v1.Group("/outputs")
		outputs.Use(s.requireGenerator())
		{
			outputs.GET("", s.listOutputs)
			outputs.GET("/:output/environment", s.getEnvironment)

			outputs.POST("/:output/noise", s.setNoise)
			outputs.GET("/:output/noise/:path", s.getNoise)
			outputs.DELETE("/:output/noise", s.disableNoise)

			outputs.POST("/:output/cw", s.setCW)
			outputs.GET("/:output/cw/:path", s.getCW)
			outputs.DELETE("/:output/cw", s.disableCW)

			outputs.PUT("/:output/frequency/:path", s.setFrequency)
			outputs.GET("/:output/frequency/:path", s.getFrequency)
		}
	}
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
