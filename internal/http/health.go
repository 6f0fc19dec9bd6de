package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleHealth is a liveness probe that also exercises a store round-trip
// and an upstream directory call. The body distinguishes which dependency
// is degraded.
// GET /health
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	status := gin.H{
		"status":   "healthy",
		"api":      "running",
		"database": "connected",
		"imgw_api": "connected",
	}

	if err := s.store.Ping(ctx); err != nil {
		s.log.Error("health check: database unreachable", zap.Error(err))
		status["status"] = "unhealthy"
		status["database"] = "error: " + err.Error()
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}

	if _, err := s.upstream.Stations(ctx); err != nil {
		s.log.Error("health check: upstream unreachable", zap.Error(err))
		status["status"] = "unhealthy"
		status["imgw_api"] = "error: " + err.Error()
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}

	c.JSON(http.StatusOK, status)
}
