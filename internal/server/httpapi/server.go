// Package httpapi exposes the services over a JSON HTTP API built on gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/cloudra/internal/logging"
	"github.com/dmitrijs2005/cloudra/internal/server/metrics"
	"github.com/dmitrijs2005/cloudra/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// Services groups the business services the API dispatches to.
type Services struct {
	Users   *services.UserService
	Folders *services.FolderService
	Files   *services.FileService
	Share   *services.ShareService
}

type Server struct {
	address  string
	logger   logging.Logger
	svc      Services
	metrics  *metrics.Collector
	gatherer prometheus.Gatherer
	engine   *gin.Engine
}

// NewServer builds the router. gatherer backs /metrics and may be nil.
func NewServer(address string, l logging.Logger, svc Services, m *metrics.Collector, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		address:  address,
		logger:   l.With("module", "http_server"),
		svc:      svc,
		metrics:  m,
		gatherer: gatherer,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)
	authGroup.GET("/me", s.authRequired(), s.me)
	authGroup.PUT("/activate/:token", s.activate)
	authGroup.POST("/forgotpassword", s.forgotPassword)
	authGroup.PUT("/resetpassword/:token", s.resetPassword)

	users := api.Group("/users", s.authRequired())
	users.GET("/search", s.searchUsers)

	files := api.Group("/files", s.authRequired())
	files.POST("/upload-url", s.uploadURL)
	files.POST("", s.saveFile)
	files.GET("", s.listFiles)
	files.POST("/bulk/delete", s.bulkDelete)
	files.POST("/bulk/move", s.bulkMove)
	files.POST("/bulk/download", s.bulkDownload)
	files.GET("/:id", s.getFile)
	files.PATCH("/:id", s.updateFile)
	files.DELETE("/:id", s.deleteFile)
	files.GET("/:id/download", s.downloadFile)
	files.PATCH("/:id/favorite", s.toggleFileFavorite)
	files.POST("/:id/versions/:versionId/restore", s.restoreVersion)
	s.shareRoutes(files, services.KindFile)

	folders := api.Group("/folders", s.authRequired())
	folders.POST("", s.createFolder)
	folders.GET("", s.listFolders)
	folders.GET("/:id", s.getFolder)
	folders.PATCH("/:id", s.updateFolder)
	folders.DELETE("/:id", s.deleteFolder)
	folders.PATCH("/:id/favorite", s.toggleFolderFavorite)
	s.shareRoutes(folders, services.KindFolder)

	api.GET("/share/:token", s.optionalAuth(), s.resolveShare)

	return r
}

func (s *Server) shareRoutes(g *gin.RouterGroup, kind services.Kind) {
	g.GET("/:id/share", s.shareSettings(kind))
	g.POST("/:id/share", s.createShare(kind))
	g.DELETE("/:id/share", s.revokeShare(kind))
	g.POST("/:id/share/user", s.addShareUser(kind))
	g.DELETE("/:id/share/user/:userId", s.removeShareUser(kind))
}
