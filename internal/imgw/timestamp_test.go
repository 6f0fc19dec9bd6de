package imgw

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestParser(now time.Time) *TimestampParser {
	return NewTimestampParser(clockwork.NewFakeClockAt(now), zap.NewNop())
}

func TestParseFormats(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	parser := newTestParser(now)

	cases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"space separated", "2025-01-10 08:00:00", time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)},
		{"iso", "2025-01-10T08:00:00", time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)},
		{"iso fractional", "2025-01-10T08:00:00.123456", time.Date(2025, 1, 10, 8, 0, 0, 123456000, time.UTC)},
		{"iso zulu", "2025-01-10T08:00:00Z", time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)},
		{"iso fractional zulu", "2025-01-10T08:00:00.5Z", time.Date(2025, 1, 10, 8, 0, 0, 500000000, time.UTC)},
		{"embedded offset stripped", "2025-01-10T08:00:00+00:00", time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)},
		{"surrounding whitespace", "  2025-01-10 08:00:00 ", time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts, ok := parser.Parse(tc.raw)
			require.True(t, ok)
			assert.True(t, tc.want.Equal(ts), "got %s want %s", ts, tc.want)
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	parser := newTestParser(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	for _, raw := range []string{
		"",
		"not a date",
		"2025-13-45 99:00:00",
		"10/01/2025 08:00",
		"2025-01-10",
		"2025-01-10T08:00:00+02:00",
		"2025-01-10T08:00:00-05:00",
		"2025-01-10 08:00:00.123",
	} {
		t.Run(raw, func(t *testing.T) {
			_, ok := parser.Parse(raw)
			assert.False(t, ok)
		})
	}
}

func TestParsePlausibilityGate(t *testing.T) {
	// Reference now: 2025-01-10T10:00:00.
	parser := newTestParser(time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC))

	t.Run("future date rejected", func(t *testing.T) {
		_, ok := parser.Parse("2025-01-11 00:00:00")
		assert.False(t, ok)
	})

	t.Run("same day later time rejected", func(t *testing.T) {
		_, ok := parser.Parse("2025-01-10 10:00:01")
		assert.False(t, ok)
	})

	t.Run("same day earlier time accepted", func(t *testing.T) {
		ts, ok := parser.Parse("2025-01-10 09:59:59")
		require.True(t, ok)
		assert.Equal(t, time.Date(2025, 1, 10, 9, 59, 59, 0, time.UTC), ts)
	})

	t.Run("exact now accepted", func(t *testing.T) {
		_, ok := parser.Parse("2025-01-10 10:00:00")
		assert.True(t, ok)
	})
}
