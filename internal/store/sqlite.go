package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/i474232898/cropple-dashboard/internal/dashboard"
)

// snapshotRow is the persisted form of a Snapshot.
type snapshotRow struct {
	ID        string    `gorm:"primaryKey;size:36"`
	FarmID    string    `gorm:"index:idx_snapshot_farm_taken;size:128;not null"`
	TakenAt   time.Time `gorm:"index:idx_snapshot_farm_taken;not null"`
	Payload   []byte    `gorm:"not null"`
	CreatedAt time.Time
}

func (snapshotRow) TableName() string { return "dashboard_snapshots" }

// SQLiteStore is an Archive persisted in a SQLite file through gorm.
type SQLiteStore struct {
	db         *gorm.DB
	maxHistory int
	maxAge     time.Duration
	now        func() time.Time
}

// OpenSQLite opens (and migrates) the database at path with the same retention rules
// as MemoryStore.
func OpenSQLite(path string, maxHistory int, maxAge time.Duration) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db %s: %w", path, err)
	}
	if err := db.AutoMigrate(&snapshotRow{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot db: %w", err)
	}
	return &SQLiteStore{db: db, maxHistory: maxHistory, maxAge: maxAge, now: time.Now}, nil
}

func (s *SQLiteStore) SaveSnapshot(farmID string, data dashboard.Data) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	row := snapshotRow{
		ID:      uuid.NewString(),
		FarmID:  farmID,
		TakenAt: takenAt(data, s.now()),
		Payload: payload,
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		if s.maxHistory > 0 {
			keep := tx.Model(&snapshotRow{}).Select("id").
				Where("farm_id = ?", farmID).
				Order("taken_at DESC").
				Limit(s.maxHistory)
			if err := tx.Where("farm_id = ? AND id NOT IN (?)", farmID, keep).Delete(&snapshotRow{}).Error; err != nil {
				return fmt.Errorf("trim snapshots by count: %w", err)
			}
		}
		if s.maxAge > 0 {
			cutoff := s.now().Add(-s.maxAge).UTC()
			if err := tx.Where("farm_id = ? AND taken_at < ? AND id <> ?", farmID, cutoff, row.ID).Delete(&snapshotRow{}).Error; err != nil {
				return fmt.Errorf("trim snapshots by age: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetLatest(farmID string) (Snapshot, error) {
	var row snapshotRow
	err := s.db.Where("farm_id = ?", farmID).Order("taken_at DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	return row.snapshot()
}

func (s *SQLiteStore) GetRange(farmID string, from, to time.Time) ([]Snapshot, error) {
	var rows []snapshotRow
	err := s.db.Where("farm_id = ? AND taken_at >= ? AND taken_at <= ?", farmID, from.UTC(), to.UTC()).
		Order("taken_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	out := make([]Snapshot, 0, len(rows))
	for _, r := range rows {
		snap, err := r.snapshot()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r snapshotRow) snapshot() (Snapshot, error) {
	var d dashboard.Data
	if err := json.Unmarshal(r.Payload, &d); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", r.ID, err)
	}
	return Snapshot{ID: r.ID, FarmID: r.FarmID, TakenAt: r.TakenAt.UTC(), Data: d}, nil
}
