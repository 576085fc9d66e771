// File: internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"vamarket_backend/internal/announcement"
	"vamarket_backend/internal/config"
	"vamarket_backend/internal/dispatch"
	"vamarket_backend/internal/firebase"
	"vamarket_backend/internal/jobs"
	"vamarket_backend/internal/middleware"
	"vamarket_backend/internal/notification"
	platformElasticsearch "vamarket_backend/internal/platform/elasticsearch"
	"vamarket_backend/internal/push"
	"vamarket_backend/internal/shared"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger

	// Exposed for startup tasks like search index bootstrap.
	ESClient  *platformElasticsearch.ESClientWrapper
	AppLogger *zap.Logger

	// Handlers
	notificationHandler *notification.Handler
	announcementHandler *announcement.Handler
	dispatchHandler     *dispatch.Handler
	pushHandler         *push.Handler

	// Jobs
	archiveSweepJob *jobs.ArchiveSweepJob

	// Push hub, closed on shutdown so streaming clients disconnect cleanly.
	hub *push.Hub

	// Middleware instances
	authMW    gin.HandlerFunc
	adminOnly gin.HandlerFunc
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	notificationHandler *notification.Handler,
	announcementHandler *announcement.Handler,
	dispatchHandler *dispatch.Handler,
	pushHandler *push.Handler,
	archiveSweepJob *jobs.ArchiveSweepJob,
	hub *push.Hub,
	firebaseService *firebase.FirebaseService,
	users shared.UserProvider,
	esClient *platformElasticsearch.ESClientWrapper,
) (*Server, error) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	// --- Global Middleware ---
	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())

	// CORS Middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	authMW := middleware.AuthMiddleware(firebaseService, users, logger.Named("AuthMiddleware"))
	adminOnly := middleware.AdminOnlyMiddleware()

	// --- Setup Routes ---
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "VA Market notification API is healthy!"})
	})

	v1 := router.Group("/api/v1")

	notificationGroup := v1.Group("/notifications", authMW)
	notificationHandler.RegisterRoutes(notificationGroup)

	announcementGroup := v1.Group("/announcements", authMW)
	announcementHandler.RegisterRoutes(announcementGroup, adminOnly)

	pushGroup := v1.Group("/push", authMW)
	pushHandler.RegisterRoutes(pushGroup)

	adminNotificationGroup := v1.Group("/admin/notifications", authMW, adminOnly)
	dispatchHandler.RegisterRoutes(adminNotificationGroup)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout: 15 * time.Second,
		// No write timeout so streaming push connections are not cut off.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer:          httpServer,
		router:              router,
		cfg:                 cfg,
		logger:              logger,
		ESClient:            esClient,
		AppLogger:           logger,
		notificationHandler: notificationHandler,
		announcementHandler: announcementHandler,
		dispatchHandler:     dispatchHandler,
		pushHandler:         pushHandler,
		archiveSweepJob:     archiveSweepJob,
		hub:                 hub,
		authMW:              authMW,
		adminOnly:           adminOnly,
	}, nil
}

func (s *Server) Start() error {
	if s.archiveSweepJob != nil {
		err := s.archiveSweepJob.SetupAndStart()
		if err != nil {
			s.logger.Error("Failed to setup and start archive sweep job", zap.Error(err))
		}
	} else {
		s.logger.Info("Archive sweep job is not configured, skipping start.")
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped gracefully or an error occurred")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	if s.archiveSweepJob != nil {
		s.archiveSweepJob.Stop()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	return s.httpServer.Shutdown(ctx)
}
