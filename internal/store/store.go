// Package store archives dashboard snapshots per farm.
package store

import (
	"errors"
	"time"

	"github.com/i474232898/cropple-dashboard/internal/dashboard"
)

var (
	// ErrNotFound is returned when no snapshot is available for a farm.
	ErrNotFound = errors.New("no dashboard snapshots for farm")
)

// Snapshot is an archived dashboard at a point in time.
type Snapshot struct {
	ID      string         `json:"id"`
	FarmID  string         `json:"farmId"`
	TakenAt time.Time      `json:"takenAt"`
	Data    dashboard.Data `json:"data"`
}

// Archive stores and queries snapshots.
type Archive interface {
	SaveSnapshot(farmID string, data dashboard.Data) error
	GetLatest(farmID string) (Snapshot, error)
	GetRange(farmID string, from, to time.Time) ([]Snapshot, error)
}

// takenAt is the cycle completion time, or now for snapshots without one.
func takenAt(d dashboard.Data, now time.Time) time.Time {
	if d.LastUpdated != nil {
		return d.LastUpdated.UTC()
	}
	return now.UTC()
}
