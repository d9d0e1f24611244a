package store

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// record is the single table backing the SQLite store.
type record struct {
	Key   string `gorm:"primaryKey"`
	Value []byte
}

// SQLiteStore persists records in a SQLite file. MaxRecords imitates the
// bounded flash region of the original store: once reached, Set on a new
// key reports ErrNoSpace and the caller decides what to compact.
type SQLiteStore struct {
	db         *gorm.DB
	maxRecords int64
}

// OpenSQLite opens (and migrates) the store at path. maxRecords <= 0
// means unbounded.
func OpenSQLite(path string, maxRecords int64) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &SQLiteStore{db: db, maxRecords: maxRecords}, nil
}

func (s *SQLiteStore) Get(key string) ([]byte, error) {
	var r record
	err := s.db.First(&r, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return r.Value, nil
}

func (s *SQLiteStore) Set(key string, value []byte) error {
	if s.maxRecords > 0 {
		var exists int64
		if err := s.db.Model(&record{}).Where("key = ?", key).Count(&exists).Error; err != nil {
			return fmt.Errorf("set %q: %w", key, err)
		}
		if exists == 0 {
			var total int64
			if err := s.db.Model(&record{}).Count(&total).Error; err != nil {
				return fmt.Errorf("set %q: %w", key, err)
			}
			if total >= s.maxRecords {
				return ErrNoSpace
			}
		}
	}
	err := s.db.Save(&record{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	if err := s.db.Delete(&record{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Each(fn func(key string, value []byte) bool) error {
	var recs []record
	if err := s.db.Order("key").Find(&recs).Error; err != nil {
		return fmt.Errorf("each: %w", err)
	}
	for _, r := range recs {
		if !fn(r.Key, r.Value) {
			break
		}
	}
	return nil
}

func (s *SQLiteStore) RewriteFiltered(keep func(key string, value []byte) bool) error {
	var recs []record
	if err := s.db.Order("key").Find(&recs).Error; err != nil {
		return fmt.Errorf("rewrite: %w", err)
	}
	for _, r := range recs {
		if keep(r.Key, r.Value) {
			continue
		}
		if err := s.db.Delete(&record{}, "key = ?", r.Key).Error; err != nil {
			return fmt.Errorf("rewrite delete %q: %w", r.Key, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
