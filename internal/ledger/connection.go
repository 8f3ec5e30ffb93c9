// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ledger is the run ledger (spec-supplement, §"SUPPLEMENTED
// FEATURES"): a local sqlite database recording every file attempt and
// every ClientRequestID's last-known status, so a crashed or --resume'd run
// can tell which files actually need reprocessing beyond the plain
// processed-file cache in internal/scanner.
//
// Grounded on the teacher's internal/repository package: sqlx+sqlite3 wrapped
// in sqlhooks for query timing, golang-migrate driving embedded SQL
// migrations, Masterminds/squirrel for query building.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	sqlite3drv "github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/osprey-dp/h5-to-dp/pkg/log"
)

//go:embed migrations/sqlite3/*
var migrationFiles embed.FS

// registerDriver guards sql.Register, which panics if the same driver name
// is registered twice (e.g. when Open is called more than once per process).
var registerDriver sync.Once

// Ledger wraps the run's sqlite connection.
type Ledger struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the sqlite database at path, applies
// any pending migrations, and returns a ready Ledger. An empty path disables
// the ledger: all of its methods become no-ops returning nil, so callers
// don't need a separate "ledger enabled" branch (spec-supplement: the
// ledger is optional).
func Open(path string) (*Ledger, error) {
	if path == "" {
		return &Ledger{}, nil
	}

	registerDriver.Do(func() {
		sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3drv.SQLiteDriver{}, &queryHooks{}))
	})
	db, err := sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite does not benefit from concurrent writers

	if err := migrateUp(db.DB); err != nil {
		return nil, err
	}

	return &Ledger{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}
	src, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Close releases the underlying connection. A disabled Ledger's Close is a
// no-op.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// queryHooks satisfies sqlhooks.Hooks, logging every query at debug level
// the same way the teacher's repository.Hooks does.
type queryHooks struct{}

func (h *queryHooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("ledger: query %s %v", query, args)
	return ctx, nil
}

func (h *queryHooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	return ctx, nil
}
