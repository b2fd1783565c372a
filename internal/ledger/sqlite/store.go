// Package sqlite provides a file-backed ledger store for single-host
// deployments that do not run Postgres.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type record struct {
	ID        string  `gorm:"column:id;primaryKey"`
	Timestamp float64 `gorm:"column:timestamp;index"`
}

// Store keeps ledger rows in a SQLite database through GORM.
type Store struct {
	db    *gorm.DB
	table string
}

// Open opens (or creates) the database at path and migrates the ledger table.
func Open(path, table string) (*Store, error) {
	if path == "" {
		return nil, errors.New("ledger.sqlite_path is required")
	}
	if table == "" {
		table = "oldposts"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Table(table).AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrate ledger table: %w", err)
	}
	return &Store{db: db, table: table}, nil
}

// Exists reports whether id has a row.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Table(s.table).Where("id = ?", id).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("query ledger: %w", err)
	}
	return n > 0, nil
}

// Insert adds a row for id, leaving an existing row untouched.
func (s *Store) Insert(ctx context.Context, id string, at time.Time) error {
	rec := record{ID: id, Timestamp: float64(at.UnixNano()) / float64(time.Second)}
	err := s.db.WithContext(ctx).
		Table(s.table).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("insert ledger row: %w", err)
	}
	return nil
}

// DeleteBefore removes rows recorded at or before cutoff.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Table(s.table).
		Where("timestamp <= ?", float64(cutoff.UnixNano())/float64(time.Second)).
		Delete(&record{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired ledger rows: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sqlite handle: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
