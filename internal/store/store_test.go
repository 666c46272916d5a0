package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/cropple-dashboard/internal/dashboard"
	"github.com/i474232898/cropple-dashboard/internal/farm"
)

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func dataAt(ts time.Time, temp float64) dashboard.Data {
	return dashboard.Data{
		FarmID:      "farm-1",
		Weather:     &farm.Weather{Temp: temp},
		Crops:       []farm.Crop{{ID: "c1"}},
		LastUpdated: &ts,
	}
}

// archives runs the same behaviour checks against every Archive implementation.
func archives(t *testing.T, maxHistory int, maxAge time.Duration, now time.Time) map[string]Archive {
	t.Helper()
	mem := NewMemoryStore(maxHistory, maxAge)
	mem.now = func() time.Time { return now }

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "snapshots.db"), maxHistory, maxAge)
	require.NoError(t, err)
	db.now = func() time.Time { return now }
	t.Cleanup(func() { _ = db.Close() })

	return map[string]Archive{"memory": mem, "sqlite": db}
}

func TestArchiveLatestAndRange(t *testing.T) {
	for name, a := range archives(t, 0, 0, base) {
		t.Run(name, func(t *testing.T) {
			_, err := a.GetLatest("farm-1")
			assert.ErrorIs(t, err, ErrNotFound)

			for i := 0; i < 3; i++ {
				require.NoError(t, a.SaveSnapshot("farm-1", dataAt(base.Add(time.Duration(i)*time.Minute), float64(70+i))))
			}
			require.NoError(t, a.SaveSnapshot("farm-2", dataAt(base, 50)))

			latest, err := a.GetLatest("farm-1")
			require.NoError(t, err)
			assert.Equal(t, "farm-1", latest.FarmID)
			assert.NotEmpty(t, latest.ID)
			assert.True(t, latest.TakenAt.Equal(base.Add(2*time.Minute)))
			require.NotNil(t, latest.Data.Weather)
			assert.Equal(t, 72.0, latest.Data.Weather.Temp)

			got, err := a.GetRange("farm-1", base, base.Add(time.Minute))
			require.NoError(t, err)
			require.Len(t, got, 2, "range is inclusive")
			assert.Equal(t, 70.0, got[0].Data.Weather.Temp)
			assert.Equal(t, 71.0, got[1].Data.Weather.Temp)

			_, err = a.GetRange("farm-1", base.Add(time.Hour), base.Add(2*time.Hour))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestArchiveRetentionByCount(t *testing.T) {
	for name, a := range archives(t, 2, 0, base) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 4; i++ {
				require.NoError(t, a.SaveSnapshot("farm-1", dataAt(base.Add(time.Duration(i)*time.Minute), float64(i))))
			}
			got, err := a.GetRange("farm-1", base, base.Add(time.Hour))
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, 2.0, got[0].Data.Weather.Temp)
			assert.Equal(t, 3.0, got[1].Data.Weather.Temp)
		})
	}
}

func TestArchiveRetentionByAge(t *testing.T) {
	now := base.Add(time.Hour)
	for name, a := range archives(t, 0, 30*time.Minute, now) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, a.SaveSnapshot("farm-1", dataAt(base, 1)))
			require.NoError(t, a.SaveSnapshot("farm-1", dataAt(now.Add(-10*time.Minute), 2)))
			require.NoError(t, a.SaveSnapshot("farm-1", dataAt(now, 3)))

			got, err := a.GetRange("farm-1", base.Add(-time.Hour), now)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, 2.0, got[0].Data.Weather.Temp)
		})
	}
}

func TestSnapshotWithoutLastUpdatedUsesNow(t *testing.T) {
	for name, a := range archives(t, 0, 0, base) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, a.SaveSnapshot("farm-1", dashboard.Data{FarmID: "farm-1"}))
			got, err := a.GetLatest("farm-1")
			require.NoError(t, err)
			assert.True(t, got.TakenAt.Equal(base))
		})
	}
}
