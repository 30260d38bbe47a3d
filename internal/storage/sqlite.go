package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	storeerrors "github.com/abgdnv/storefront/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// kvEntry is the row layout shared by the sqlite and postgres backends.
type kvEntry struct {
	Namespace string    `gorm:"primaryKey"`
	Key       string    `gorm:"column:entry_key;primaryKey"`
	Value     []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (kvEntry) TableName() string {
	return "kv_entries"
}

// SQLiteStore persists entries in a local sqlite file through gorm.
type SQLiteStore struct {
	db        *gorm.DB
	namespace string
}

var _ KV = (*SQLiteStore)(nil)

// NewSQLiteStore migrates the kv_entries table and returns a store scoped to namespace.
func NewSQLiteStore(db *gorm.DB, namespace string) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv_entries: %w", err)
	}
	return &SQLiteStore{db: db, namespace: namespace}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var e kvEntry
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND entry_key = ?", s.namespace, key).
		Take(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storeerrors.ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrStorageRead, err)
	}
	return e.Value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	e := kvEntry{Namespace: s.namespace, Key: key, Value: value}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&e).Error
	if err != nil {
		return fmt.Errorf("%w: %w", storeerrors.ErrStorageWrite, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND entry_key = ?", s.namespace, key).
		Delete(&kvEntry{}).Error
	if err != nil {
		return fmt.Errorf("%w: %w", storeerrors.ErrStorageRemove, err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
