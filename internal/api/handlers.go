package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"modlog-archive/internal/storage"
)

const maxIngestBytes = 1 << 20 // one paste, not a dump file

type ingestRequest struct {
	Text string `json:"text"`
}

func (s *Server) ingestText(c *gin.Context) {
	var text string

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req ingestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_body", "message": "expected {\"text\": \"...\"}"}})
			return
		}
		text = req.Text
	} else {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIngestBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_body", "message": "unreadable body"}})
			return
		}
		text = string(body)
	}

	if strings.TrimSpace(text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "empty_text", "message": "no log lines supplied"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	summary, err := s.pipeline.Ingest(ctx, text)
	if err != nil {
		s.log.Error("ingest_failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"code": "storage_unavailable", "message": "could not reach storage"}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (s *Server) getPlayer(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := s.ctx(c)
	defer cancel()

	player, err := s.store.GetPlayer(ctx, id)
	if errors.Is(err, storage.ErrPlayerNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "no such player"}})
		return
	}
	if err != nil {
		s.log.Error("get_player_failed", "player_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "storage_error", "message": "lookup failed"}})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events, err := s.store.ListEventsByPlayer(ctx, id, limit)
	if err != nil {
		s.log.Error("list_events_failed", "player_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "storage_error", "message": "lookup failed"}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"player": player, "events": events})
}

func (s *Server) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("alias"))
	if len(q) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_query", "message": "alias must have at least 2 characters"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	players, err := s.store.SearchPlayersByAlias(ctx, q, 50)
	if err != nil {
		s.log.Error("search_failed", "alias", q, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "storage_error", "message": "search failed"}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"players": players})
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	status := http.StatusOK
	dbState := "connected"
	if err := s.store.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		dbState = "unreachable"
	}

	redisState := "disabled"
	if s.redis != nil {
		redisState = "connected"
		if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
			redisState = "unreachable"
		}
	}

	c.JSON(status, gin.H{
		"status":   http.StatusText(status),
		"database": dbState,
		"redis":    redisState,
	})
}
