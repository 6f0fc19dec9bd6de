package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const backgroundSyncTimeout = 30 * time.Minute

// handleSyncAll dispatches a full synchronization as background work and
// acknowledges immediately. Failures of the detached run are observable via
// logs only.
// POST /sync/all?days=N
func (s *Server) handleSyncAll(c *gin.Context) {
	days, ok := s.intQuery(c, "days", s.cfg.DefaultDays)
	if !ok {
		return
	}

	s.syncer.RunBackground("sync-all", backgroundSyncTimeout, func(ctx context.Context) error {
		_, err := s.syncer.SyncAll(ctx, days)
		return err
	})

	c.JSON(http.StatusAccepted, gin.H{"message": "Synchronization running in the background"})
}

// handleSyncStations synchronizes the station directory and every station's
// measurements synchronously, returning a textual summary with counts.
// POST /sync/stations
func (s *Server) handleSyncStations(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), backgroundSyncTimeout)
	defer cancel()

	summary, err := s.syncer.SyncAll(ctx, s.cfg.DefaultDays)
	if err != nil {
		s.log.Error("station sync failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Updated %d stations, %d water-level readings, %d flow readings",
			summary.Stations, summary.Stan, summary.Przeplyw),
	})
}

// handleSyncStation synchronizes one station's measurements.
// POST /sync/station/:id?days=N
func (s *Server) handleSyncStation(c *gin.Context) {
	stationID := c.Param("id")
	if _, ok := s.intQuery(c, "days", s.cfg.DefaultDays); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Minute)
	defer cancel()

	summary, err := s.syncer.SyncStationMeasurements(ctx, stationID)
	if err != nil {
		s.log.Error("single station sync failed",
			zap.String("station_id", stationID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Updated station %s: %d water-level readings, %d flow readings",
			stationID, summary.Stan, summary.Przeplyw),
	})
}

// handleSyncWarnings synchronizes the warning bulletins synchronously.
// POST /sync/warnings
func (s *Server) handleSyncWarnings(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Minute)
	defer cancel()

	inserted, err := s.syncer.SyncWarnings(ctx)
	if err != nil {
		s.log.Error("warning sync failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Warnings synchronized, %d new", inserted),
	})
}
