// Package db stores fit runs in SQLite: one row per run, its per-window
// diagnostics and the output series. The schema is managed by embedded
// golang-migrate migrations.
package db

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

// DB wraps the run store connection.
type DB struct {
	*sql.DB
}

// pragmas are applied to every connection.
var pragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"journal_mode(WAL)",
}

// OpenDB opens the SQLite database at path without touching the schema;
// call MigrateUp before use. ":memory:" opens a private in-memory store.
func OpenDB(path string) (*DB, error) {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// A single connection keeps in-memory databases shared across queries
	// and serialises writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}
	return &DB{db}, nil
}

// OpenMigrated opens path and applies all pending migrations.
func OpenMigrated(path string) (*DB, error) {
	database, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateUp(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
