package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"consensuscore/internal/logging"
)

// openDB opens the SQLite database at path, applies the pragmas the actor
// relies on for correctness under a single-writer goroutine, and runs
// migrations. The returned handle is never shared outside the actor
// goroutine that owns it.
func openDB(path string) (*sql.DB, error) {
	timer := logging.StartTimer(logging.CategoryDBActor, "openDB")
	defer timer.Stop()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection backs the actor's single-owner goroutine; there is
	// never a second writer, so pooling would only mask misuse.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.DBActorDebug("pragma failed (%s): %v", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logging.DBActor("database opened and migrated at %s", path)
	return db, nil
}
