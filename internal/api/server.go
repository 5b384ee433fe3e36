package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"modlog-archive/internal/config"
	"modlog-archive/internal/ingest"
	"modlog-archive/internal/redis"
	"modlog-archive/internal/storage"
)

type Server struct {
	log      *slog.Logger
	store    storage.Store
	redis    *redis.Client
	pipeline *ingest.Pipeline
	cfg      config.Config
	router   *gin.Engine
}

func NewServer(log *slog.Logger, store storage.Store, redisClient *redis.Client, pipeline *ingest.Pipeline, cfg config.Config) *Server {
	s := &Server{
		log:      log,
		store:    store,
		redis:    redisClient,
		pipeline: pipeline,
		cfg:      cfg,
		router:   gin.New(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.rateLimitMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.POST("/ingest", s.ingestText)
		v1.GET("/players/:id", s.getPlayer)
		v1.GET("/search", s.search)
		v1.GET("/health", s.health)
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 30*time.Second)
}
