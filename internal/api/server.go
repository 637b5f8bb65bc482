// Package api exposes the import history and manual import triggers over
// HTTP for the dashboard.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/bankfeedhq/camt54-sync-backend/internal/application/importer"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/config"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/storage"
)

// Server is the HTTP API server.
type Server struct {
	cfg      *config.Config
	repo     storage.Repository
	importer *importer.Importer
	router   *gin.Engine
	http     *http.Server
	logger   *slog.Logger
}

// NewServer builds the server and its routes. The importer may be nil;
// trigger and retry endpoints then return 503.
func NewServer(cfg *config.Config, repo storage.Repository, imp *importer.Importer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health"},
	}))

	origins := cfg.API.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		cfg:      cfg,
		repo:     repo,
		importer: imp,
		router:   router,
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := s.router.Group("/api")
	{
		api.GET("/stats", s.getStats)
		api.GET("/logs", s.listLogs)
		api.GET("/logs/:id", s.getLog)
		api.POST("/logs/:id/retry", s.retryLog)
		api.GET("/statements/:id", s.getStatement)
		api.GET("/configs", s.listConfigs)
		api.POST("/configs/:name/run", s.runConfig)
	}
}

// Start runs the server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.API.Port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info("api server listening", "port", s.cfg.API.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.repo.GetStats(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to fetch stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) listLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	filters := storage.LogFilters{
		ConfigName: c.Query("config"),
		State:      c.Query("state"),
		Limit:      limit,
	}

	logs, err := s.repo.ListImportLogs(c.Request.Context(), filters)
	if err != nil {
		s.logger.Error("failed to list import logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list import logs"})
		return
	}
	if logs == nil {
		logs = []*storage.ImportLog{}
	}
	c.JSON(http.StatusOK, logs)
}

func (s *Server) getLog(c *gin.Context) {
	log, err := s.repo.GetImportLog(c.Request.Context(), c.Param("id"))
	if err == storage.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "import log not found"})
		return
	}
	if err != nil {
		s.logger.Error("failed to get import log", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get import log"})
		return
	}
	c.JSON(http.StatusOK, log)
}

func (s *Server) retryLog(c *gin.Context) {
	if s.importer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "import service not available"})
		return
	}

	id := c.Param("id")
	log, err := s.repo.GetImportLog(c.Request.Context(), id)
	if err == storage.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "import log not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get import log"})
		return
	}

	cfg, ok := s.cfg.ImportByName(log.ConfigName)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("configuration %q no longer exists", log.ConfigName)})
		return
	}

	if err := s.importer.Retry(c.Request.Context(), cfg, id); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "retried"})
}

func (s *Server) getStatement(c *gin.Context) {
	st, err := s.repo.GetStatement(c.Request.Context(), c.Param("id"))
	if err == storage.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "statement not found"})
		return
	}
	if err != nil {
		s.logger.Error("failed to get statement", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get statement"})
		return
	}
	c.JSON(http.StatusOK, toStatementResponse(st))
}

func (s *Server) listConfigs(c *gin.Context) {
	configs := make([]ConfigResponse, 0, len(s.cfg.Imports))
	for _, ic := range s.cfg.Imports {
		configs = append(configs, toConfigResponse(ic))
	}
	c.JSON(http.StatusOK, configs)
}

func (s *Server) runConfig(c *gin.Context) {
	if s.importer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "import service not available"})
		return
	}

	name := c.Param("name")
	cfg, ok := s.cfg.ImportByName(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("configuration %q not found", name)})
		return
	}

	result, err := s.importer.ProcessConfiguration(c.Request.Context(), cfg)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, RunResponse{
		Config:         name,
		FilesFound:     result.FilesFound,
		FilesProcessed: result.FilesProcessed,
		FilesFailed:    result.FilesFailed,
	})
}
