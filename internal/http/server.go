package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/everlastingflames/flood-monitoring/internal/config"
	"github.com/everlastingflames/flood-monitoring/internal/db"
	"github.com/everlastingflames/flood-monitoring/internal/imgw"
	syncsvc "github.com/everlastingflames/flood-monitoring/internal/sync"
)

// Store is the read/health surface the handlers need from the database layer.
type Store interface {
	Stations(ctx context.Context) ([]db.Station, error)
	LatestPerStation(ctx context.Context) (map[string]db.LatestMeasurements, error)
	StationMeasurements(ctx context.Context, stationID string, sinceDays int) (db.SeriesBundle, error)
	StationMeasurementsExtended(ctx context.Context, stationID string, sinceDays, limit int) (db.SeriesBundle, error)
	StationMeasurementsBatch(ctx context.Context, stationID string, sinceDays, batchSize, offset int) (db.SeriesBatch, error)
	Warnings(ctx context.Context) ([]db.Warning, error)
	WarningByID(ctx context.Context, id int64) (db.Warning, error)
	Ping(ctx context.Context) error
}

// Syncer triggers synchronization runs on behalf of the sync endpoints.
type Syncer interface {
	SyncStations(ctx context.Context) ([]db.Station, error)
	SyncStationMeasurements(ctx context.Context, stationID string) (syncsvc.MeasurementSummary, error)
	SyncAll(ctx context.Context, days int) (syncsvc.Summary, error)
	SyncWarnings(ctx context.Context) (int, error)
	RunBackground(name string, timeout time.Duration, fn func(ctx context.Context) error)
}

// UpstreamChecker is the slice of the IMGW client the health check exercises.
type UpstreamChecker interface {
	Stations(ctx context.Context) ([]imgw.Station, error)
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg      config.Config
	store    Store
	syncer   Syncer
	upstream UpstreamChecker
	log      *zap.Logger
	engine   *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, store Store, syncer Syncer, upstream UpstreamChecker, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	server := &Server{
		cfg:      cfg,
		store:    store,
		syncer:   syncer,
		upstream: upstream,
		log:      log,
		engine:   engine,
	}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Flood Monitoring System API"})
	})

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine.GET("/stations", s.handleListStations)
	s.engine.GET("/stations/:id", s.handleStationMeasurements)

	s.engine.GET("/warnings", s.handleListWarnings)
	s.engine.GET("/warnings/:id", s.handleGetWarning)

	s.engine.POST("/sync/all", s.handleSyncAll)
	s.engine.POST("/sync/stations", s.handleSyncStations)
	s.engine.POST("/sync/station/:id", s.handleSyncStation)
	s.engine.POST("/sync/warnings", s.handleSyncWarnings)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
