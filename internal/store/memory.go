package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/cropple-dashboard/internal/dashboard"
)

// SnapshotHistory holds a time-ordered list of snapshots for a farm.
type SnapshotHistory struct {
	Snapshots []Snapshot
}

// MemoryStore is a concurrency-safe in-memory Archive.
type MemoryStore struct {
	mu sync.RWMutex

	// key: farm id, value: history
	data map[string]*SnapshotHistory

	// retention configuration
	maxHistory int           // max number of snapshots per farm
	maxAge     time.Duration // optional max age for snapshots

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*SnapshotHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveSnapshot appends a new snapshot for a farm and enforces retention.
func (s *MemoryStore) SaveSnapshot(farmID string, data dashboard.Data) error {
	snap := Snapshot{
		ID:      uuid.NewString(),
		FarmID:  farmID,
		TakenAt: takenAt(data, s.now()),
		Data:    data,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[farmID]
	if !ok {
		history = &SnapshotHistory{}
		s.data[farmID] = history
	}

	history.Snapshots = append(history.Snapshots, snap)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Snapshots) > s.maxHistory {
		over := len(history.Snapshots) - s.maxHistory
		history.Snapshots = history.Snapshots[over:]
	}

	// Enforce retention by age. The newest snapshot is always kept.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Snapshots)-1; i++ {
			if !history.Snapshots[i].TakenAt.Before(cutoff) {
				break
			}
		}
		history.Snapshots = history.Snapshots[i:]
	}
	return nil
}

// GetLatest returns the most recent snapshot for a farm.
func (s *MemoryStore) GetLatest(farmID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[farmID]
	if !ok || len(history.Snapshots) == 0 {
		return Snapshot{}, ErrNotFound
	}
	return history.Snapshots[len(history.Snapshots)-1], nil
}

// GetRange returns all snapshots for a farm between from and to (inclusive).
func (s *MemoryStore) GetRange(farmID string, from, to time.Time) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[farmID]
	if !ok || len(history.Snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []Snapshot
	for _, snap := range history.Snapshots {
		if !snap.TakenAt.Before(from) && !snap.TakenAt.After(to) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
