package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/everlastingflames/flood-monitoring/internal/db"
	"github.com/everlastingflames/flood-monitoring/internal/imgw"
	"github.com/everlastingflames/flood-monitoring/internal/observability"
)

type fakeUpstream struct {
	stations    []imgw.Station
	stationsErr error

	readings    map[string]*imgw.Reading
	readingErrs map[string]error

	warnings    []imgw.Warning
	warningsErr error
}

func (f *fakeUpstream) Stations(ctx context.Context) ([]imgw.Station, error) {
	return f.stations, f.stationsErr
}

func (f *fakeUpstream) LatestReading(ctx context.Context, stationID string) (*imgw.Reading, error) {
	if err, ok := f.readingErrs[stationID]; ok {
		return nil, err
	}
	return f.readings[stationID], nil
}

func (f *fakeUpstream) Warnings(ctx context.Context) ([]imgw.Warning, error) {
	return f.warnings, f.warningsErr
}

type storedMeasurement struct {
	stationID string
	ts        time.Time
	value     float64
}

type fakeStore struct {
	stations   map[string]db.Station
	failCreate map[string]error

	levels []storedMeasurement
	flows  []storedMeasurement

	warningsInserted int
	insertErr        error

	// dedup keys mirroring the real store's uniqueness contract
	seen map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stations: make(map[string]db.Station),
		seen:     make(map[string]bool),
	}
}

func (f *fakeStore) GetOrCreateStation(ctx context.Context, station db.Station) (db.Station, error) {
	if err, ok := f.failCreate[station.ID]; ok {
		return db.Station{}, err
	}
	if existing, ok := f.stations[station.ID]; ok {
		return existing, nil
	}
	f.stations[station.ID] = station
	return station, nil
}

func (f *fakeStore) AddWaterLevel(ctx context.Context, stationID string, ts time.Time, value float64) (bool, error) {
	key := "stan|" + stationID + "|" + ts.Format(time.RFC3339)
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	f.levels = append(f.levels, storedMeasurement{stationID, ts, value})
	return true, nil
}

func (f *fakeStore) AddFlow(ctx context.Context, stationID string, ts time.Time, value float64) (bool, error) {
	key := "przeplyw|" + stationID + "|" + ts.Format(time.RFC3339)
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	f.flows = append(f.flows, storedMeasurement{stationID, ts, value})
	return true, nil
}

func (f *fakeStore) InsertWarnings(ctx context.Context, warnings []imgw.Warning) (int, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	inserted := 0
	for _, w := range warnings {
		key := "warn|" + w.Numer + "|" + w.Biuro + "|" + w.Opublikowano
		if f.seen[key] {
			continue
		}
		f.seen[key] = true
		inserted++
	}
	f.warningsInserted += inserted
	return inserted, nil
}

func num(v float64) *imgw.Number {
	n := imgw.Number(v)
	return &n
}

func newTestService(upstream *fakeUpstream, store *fakeStore) *Service {
	parser := imgw.NewTimestampParser(
		clockwork.NewFakeClockAt(time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)),
		zap.NewNop())
	return NewService(upstream, store, parser, observability.NewMetricsForTesting(), zap.NewNop())
}

func TestSyncStations(t *testing.T) {
	t.Run("registers every entry", func(t *testing.T) {
		upstream := &fakeUpstream{stations: []imgw.Station{
			{ID: "1", Name: "A", Lat: 50.1, Lon: 19.9, Province: "małopolskie", River: "Wisła"},
			{ID: "2", Name: "B", Lat: 51.0, Lon: 17.0, Province: "dolnośląskie"},
		}}
		store := newFakeStore()
		svc := newTestService(upstream, store)

		stations, err := svc.SyncStations(context.Background())
		require.NoError(t, err)
		assert.Len(t, stations, 2)
		require.Contains(t, store.stations, "1")
		require.NotNil(t, store.stations["1"].River)
		assert.Equal(t, "Wisła", *store.stations["1"].River)
		assert.Nil(t, store.stations["2"].River)
	})

	t.Run("one failing station does not abort the batch", func(t *testing.T) {
		upstream := &fakeUpstream{stations: []imgw.Station{
			{ID: "1", Name: "A"},
			{ID: "2", Name: "B"},
			{ID: "3", Name: "C"},
		}}
		store := newFakeStore()
		store.failCreate = map[string]error{"2": errors.New("boom")}
		svc := newTestService(upstream, store)

		stations, err := svc.SyncStations(context.Background())
		require.NoError(t, err)
		assert.Len(t, stations, 2)
		assert.NotContains(t, store.stations, "2")
	})

	t.Run("directory fetch failure surfaces", func(t *testing.T) {
		upstream := &fakeUpstream{stationsErr: errors.New("upstream down")}
		svc := newTestService(upstream, newFakeStore())

		_, err := svc.SyncStations(context.Background())
		require.Error(t, err)
	})
}

func TestSyncStationMeasurements(t *testing.T) {
	t.Run("stores water level from reading", func(t *testing.T) {
		upstream := &fakeUpstream{readings: map[string]*imgw.Reading{
			"1": {
				StationID:      "1",
				WaterLevel:     num(123.4),
				WaterLevelDate: "2025-01-10 08:00:00",
			},
		}}
		store := newFakeStore()
		svc := newTestService(upstream, store)

		summary, err := svc.SyncStationMeasurements(context.Background(), "1")
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Stan)
		assert.Equal(t, 0, summary.Przeplyw)
		require.Len(t, store.levels, 1)
		assert.Equal(t, 123.4, store.levels[0].value)
		assert.Equal(t, time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC), store.levels[0].ts)
		assert.Empty(t, store.flows)
	})

	t.Run("both series stored independently", func(t *testing.T) {
		upstream := &fakeUpstream{readings: map[string]*imgw.Reading{
			"1": {
				WaterLevel:     num(100),
				WaterLevelDate: "2025-01-10 08:00:00",
				Flow:           num(2.5),
				FlowDate:       "2025-01-10 07:00:00",
			},
		}}
		store := newFakeStore()
		svc := newTestService(upstream, store)

		summary, err := svc.SyncStationMeasurements(context.Background(), "1")
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Stan)
		assert.Equal(t, 1, summary.Przeplyw)
	})

	t.Run("null value yields empty series", func(t *testing.T) {
		upstream := &fakeUpstream{readings: map[string]*imgw.Reading{
			"1": {WaterLevel: nil, WaterLevelDate: "2025-01-10 08:00:00"},
		}}
		store := newFakeStore()
		svc := newTestService(upstream, store)

		summary, err := svc.SyncStationMeasurements(context.Background(), "1")
		require.NoError(t, err)
		assert.Zero(t, summary.Stan)
		assert.Empty(t, store.levels)
	})

	t.Run("future timestamp is dropped silently", func(t *testing.T) {
		upstream := &fakeUpstream{readings: map[string]*imgw.Reading{
			"1": {WaterLevel: num(100), WaterLevelDate: "2025-01-11 00:00:00"},
		}}
		store := newFakeStore()
		svc := newTestService(upstream, store)

		summary, err := svc.SyncStationMeasurements(context.Background(), "1")
		require.NoError(t, err)
		assert.Zero(t, summary.Stan)
		assert.Empty(t, store.levels)
	})

	t.Run("missing reading is not an error", func(t *testing.T) {
		upstream := &fakeUpstream{}
		svc := newTestService(upstream, newFakeStore())

		summary, err := svc.SyncStationMeasurements(context.Background(), "unknown")
		require.NoError(t, err)
		assert.Zero(t, summary.Stan)
		assert.Zero(t, summary.Przeplyw)
	})

	t.Run("fetch failure surfaces", func(t *testing.T) {
		upstream := &fakeUpstream{readingErrs: map[string]error{"1": errors.New("timeout")}}
		svc := newTestService(upstream, newFakeStore())

		_, err := svc.SyncStationMeasurements(context.Background(), "1")
		require.Error(t, err)
	})
}

func TestSyncAll(t *testing.T) {
	upstream := &fakeUpstream{
		stations: []imgw.Station{
			{ID: "1", Name: "A"},
			{ID: "2", Name: "B"},
		},
		readings: map[string]*imgw.Reading{
			"1": {WaterLevel: num(10), WaterLevelDate: "2025-01-10 08:00:00"},
		},
		readingErrs: map[string]error{"2": errors.New("timeout")},
	}
	store := newFakeStore()
	svc := newTestService(upstream, store)

	summary, err := svc.SyncAll(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Stations)
	assert.Equal(t, 1, summary.Stan)
	assert.Equal(t, 0, summary.Przeplyw)
}

func TestSyncWarnings(t *testing.T) {
	warning := imgw.Warning{
		Opublikowano: "2025-01-09 12:00:00",
		Numer:        "17",
		Biuro:        "Kraków",
	}

	t.Run("inserts and is idempotent", func(t *testing.T) {
		upstream := &fakeUpstream{warnings: []imgw.Warning{warning}}
		store := newFakeStore()
		svc := newTestService(upstream, store)

		inserted, err := svc.SyncWarnings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, inserted)

		inserted, err = svc.SyncWarnings(context.Background())
		require.NoError(t, err)
		assert.Zero(t, inserted)
		assert.Equal(t, 1, store.warningsInserted)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		upstream := &fakeUpstream{warnings: []imgw.Warning{warning}}
		store := newFakeStore()
		store.insertErr = errors.New("db down")
		svc := newTestService(upstream, store)

		_, err := svc.SyncWarnings(context.Background())
		require.Error(t, err)
	})

	t.Run("fetch failure surfaces", func(t *testing.T) {
		upstream := &fakeUpstream{warningsErr: errors.New("upstream down")}
		svc := newTestService(upstream, newFakeStore())

		_, err := svc.SyncWarnings(context.Background())
		require.Error(t, err)
	})
}

func TestRunBackgroundRecoversPanic(t *testing.T) {
	svc := newTestService(&fakeUpstream{}, newFakeStore())

	done := make(chan struct{})
	svc.RunBackground("panicky", time.Second, func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background job did not run")
	}
}

func TestRunBackgroundOverlappingJobsGauge(t *testing.T) {
	svc := newTestService(&fakeUpstream{}, newFakeStore())
	gauge := svc.metrics.SyncRunning

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	job := func(ctx context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	}

	svc.RunBackground("first", time.Second, job)
	svc.RunBackground("second", time.Second, job)

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("background job did not start")
		}
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(gauge))

	// Neither finishing job may zero out the other's share.
	close(release)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(gauge) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
