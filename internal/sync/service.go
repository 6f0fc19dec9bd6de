// Package sync pulls station, measurement and warning data from the IMGW API
// into the store. Every operation is idempotent through the stores' dedup
// contracts, so re-running a sync at any time is safe.
package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/everlastingflames/flood-monitoring/internal/db"
	"github.com/everlastingflames/flood-monitoring/internal/imgw"
	"github.com/everlastingflames/flood-monitoring/internal/observability"
)

// Upstream is the slice of the IMGW client the orchestrator needs.
type Upstream interface {
	Stations(ctx context.Context) ([]imgw.Station, error)
	LatestReading(ctx context.Context, stationID string) (*imgw.Reading, error)
	Warnings(ctx context.Context) ([]imgw.Warning, error)
}

// Store is the slice of the persistence layer the orchestrator writes through.
type Store interface {
	GetOrCreateStation(ctx context.Context, station db.Station) (db.Station, error)
	AddWaterLevel(ctx context.Context, stationID string, ts time.Time, value float64) (bool, error)
	AddFlow(ctx context.Context, stationID string, ts time.Time, value float64) (bool, error)
	InsertWarnings(ctx context.Context, warnings []imgw.Warning) (int, error)
}

// Service drives synchronization runs. It keeps no state between runs.
type Service struct {
	upstream Upstream
	store    Store
	parser   *imgw.TimestampParser
	metrics  *observability.Metrics
	log      *zap.Logger
}

// NewService wires the orchestrator.
func NewService(upstream Upstream, store Store, parser *imgw.TimestampParser, metrics *observability.Metrics, log *zap.Logger) *Service {
	return &Service{
		upstream: upstream,
		store:    store,
		parser:   parser,
		metrics:  metrics,
		log:      log,
	}
}

// MeasurementSummary counts the readings extracted for one station.
type MeasurementSummary struct {
	Stan     int
	Przeplyw int
}

// Summary describes a full synchronization run.
type Summary struct {
	Stations int
	Stan     int
	Przeplyw int
}

// SyncStations fetches the upstream station directory and registers every
// entry. A failure on one station is logged and skipped, never aborting the
// batch; a directory fetch failure aborts the whole operation.
func (s *Service) SyncStations(ctx context.Context) ([]db.Station, error) {
	entries, err := s.upstream.Stations(ctx)
	if err != nil {
		s.metrics.SyncErrors.WithLabelValues("stations").Inc()
		return nil, err
	}

	stations := make([]db.Station, 0, len(entries))
	for _, entry := range entries {
		station := db.Station{
			ID:       entry.ID,
			Name:     entry.Name,
			Lat:      entry.Lat.Float64(),
			Lon:      entry.Lon.Float64(),
			Province: entry.Province,
		}
		if entry.River != "" {
			river := entry.River
			station.River = &river
		}

		saved, err := s.store.GetOrCreateStation(ctx, station)
		if err != nil {
			s.log.Error("saving station failed",
				zap.String("station_id", entry.ID),
				zap.Error(err))
			continue
		}
		stations = append(stations, saved)
		s.metrics.StationsSynced.Inc()
	}

	s.log.Info("station directory synchronized", zap.Int("stations", len(stations)))
	return stations, nil
}

// SyncStationMeasurements fetches the latest reading for one station and
// stores whichever series it carries. A missing field, a null value or an
// unparseable timestamp yields an empty result for that series, not an error.
func (s *Service) SyncStationMeasurements(ctx context.Context, stationID string) (MeasurementSummary, error) {
	reading, err := s.upstream.LatestReading(ctx, stationID)
	if err != nil {
		s.metrics.SyncErrors.WithLabelValues("measurements").Inc()
		return MeasurementSummary{}, err
	}
	if reading == nil {
		s.log.Warn("no reading for station", zap.String("station_id", stationID))
		return MeasurementSummary{}, nil
	}

	var summary MeasurementSummary

	if reading.WaterLevel != nil {
		if ts, ok := s.parser.Parse(reading.WaterLevelDate); ok {
			summary.Stan++
			s.recordInsert(ctx, "stan", stationID, ts, reading.WaterLevel.Float64(), s.store.AddWaterLevel)
		}
	}

	if reading.Flow != nil {
		if ts, ok := s.parser.Parse(reading.FlowDate); ok {
			summary.Przeplyw++
			s.recordInsert(ctx, "przeplyw", stationID, ts, reading.Flow.Float64(), s.store.AddFlow)
		}
	}

	return summary, nil
}

type addFunc func(ctx context.Context, stationID string, ts time.Time, value float64) (bool, error)

func (s *Service) recordInsert(ctx context.Context, seriesName, stationID string, ts time.Time, value float64, add addFunc) {
	inserted, err := add(ctx, stationID, ts, value)
	if err != nil {
		s.metrics.SyncErrors.WithLabelValues("measurements").Inc()
		s.log.Error("storing measurement failed",
			zap.String("series", seriesName),
			zap.String("station_id", stationID),
			zap.Error(err))
		return
	}
	if inserted {
		s.metrics.MeasurementsInserted.WithLabelValues(seriesName).Inc()
		s.log.Info("new measurement stored",
			zap.String("series", seriesName),
			zap.String("station_id", stationID),
			zap.Time("ts", ts))
	} else {
		s.metrics.MeasurementsSkipped.WithLabelValues(seriesName).Inc()
		s.log.Debug("measurement already known",
			zap.String("series", seriesName),
			zap.String("station_id", stationID),
			zap.Time("ts", ts))
	}
}

// SyncAll synchronizes the station directory and then every station's
// measurements. Per-station failures are logged and the batch continues.
// The days hint is carried for the API surface; the upstream latest-reading
// endpoint serves a fixed window regardless.
func (s *Service) SyncAll(ctx context.Context, days int) (Summary, error) {
	stations, err := s.SyncStations(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Stations: len(stations)}
	for _, station := range stations {
		ms, err := s.SyncStationMeasurements(ctx, station.ID)
		if err != nil {
			s.log.Error("station measurement sync failed",
				zap.String("station_id", station.ID),
				zap.Error(err))
			continue
		}
		summary.Stan += ms.Stan
		summary.Przeplyw += ms.Przeplyw
	}

	s.log.Info("full synchronization finished",
		zap.Int("stations", summary.Stations),
		zap.Int("stan", summary.Stan),
		zap.Int("przeplyw", summary.Przeplyw),
		zap.Int("days", days))
	return summary, nil
}

// SyncWarnings fetches the warning bulletins in one call and stores the
// batch. Unlike station sync this path is not partial-failure-tolerant: the
// upstream endpoint is a single atomic fetch and any store error surfaces.
func (s *Service) SyncWarnings(ctx context.Context) (int, error) {
	warnings, err := s.upstream.Warnings(ctx)
	if err != nil {
		s.metrics.SyncErrors.WithLabelValues("warnings").Inc()
		return 0, err
	}

	inserted, err := s.store.InsertWarnings(ctx, warnings)
	if err != nil {
		s.metrics.SyncErrors.WithLabelValues("warnings").Inc()
		return inserted, err
	}

	s.metrics.WarningsInserted.Add(float64(inserted))
	s.log.Info("warnings synchronized",
		zap.Int("fetched", len(warnings)),
		zap.Int("inserted", inserted))
	return inserted, nil
}

// RunBackground dispatches fn as fire-and-forget work detached from the
// caller's request lifetime. Failures are only observable via logs.
func (s *Service) RunBackground(name string, timeout time.Duration, fn func(ctx context.Context) error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("background sync panicked",
					zap.String("job", name),
					zap.Any("panic", r))
			}
			// Inc/Dec rather than Set: overlapping jobs (cron plus a
			// manual trigger) must not zero each other out.
			s.metrics.SyncRunning.Dec()
		}()

		s.metrics.SyncRunning.Inc()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			s.log.Error("background sync failed",
				zap.String("job", name),
				zap.Error(err))
		}
	}()
}
