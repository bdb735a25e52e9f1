package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/matheus3301/twin/internal/store/migrations"
)

// ErrDirtySchema is returned when an earlier upgrade of the cache stopped
// half way.
var ErrDirtySchema = errors.New("store: cache schema is dirty")

// CacheSchema reports the cache schema version before and after an upgrade.
type CacheSchema struct {
	Previous uint
	Version  uint
}

// Upgraded reports whether any schema step ran.
func (s *CacheSchema) Upgraded() bool { return s.Version != s.Previous }

// UpgradeSchema brings the cache to the newest embedded schema. A fresh file
// starts at version 0.
func (db *DB) UpgradeSchema() (*CacheSchema, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open cache schema files: %w", err)
	}
	target, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("bind cache schema driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", target)
	if err != nil {
		return nil, fmt.Errorf("prepare cache schema upgrade: %w", err)
	}

	prev, err := schemaVersion(m)
	if err != nil {
		return nil, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("upgrade cache schema from version %d: %w", prev, err)
	}
	cur, err := schemaVersion(m)
	if err != nil {
		return nil, err
	}
	return &CacheSchema{Previous: prev, Version: cur}, nil
}

func schemaVersion(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read cache schema version: %w", err)
	case dirty:
		return 0, fmt.Errorf("%w at version %d; delete the cache file to rebuild it", ErrDirtySchema, v)
	}
	return v, nil
}
