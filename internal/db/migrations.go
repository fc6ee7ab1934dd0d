package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of SQL statements to run.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS investors (
		id                TEXT    PRIMARY KEY,
		name              TEXT    NOT NULL DEFAULT '',
		email             TEXT    NOT NULL DEFAULT '',
		budget_min        TEXT    NOT NULL,
		budget_max        TEXT    NOT NULL,
		budget_type       TEXT    NOT NULL,
		bedrooms_min      INTEGER NOT NULL,
		bedrooms_max      INTEGER NOT NULL,
		property_types    TEXT    NOT NULL DEFAULT '[]',
		property_licences TEXT    NOT NULL DEFAULT '[]',
		locations         TEXT    NOT NULL DEFAULT '[]',
		active            INTEGER NOT NULL DEFAULT 1,
		created_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at        DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_investors_active ON investors(active)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id            TEXT    PRIMARY KEY,
		title         TEXT    NOT NULL DEFAULT '',
		price         TEXT    NOT NULL,
		bedrooms      INTEGER NOT NULL,
		property_type TEXT    NOT NULL DEFAULT '',
		licence       TEXT    NOT NULL DEFAULT '',
		location      TEXT    NOT NULL DEFAULT '',
		status        TEXT    NOT NULL CHECK (status IN ('draft', 'available', 'rented', 'archived')),
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status)`,
	`CREATE TABLE IF NOT EXISTS notification_records (
		investor_id   TEXT     NOT NULL,
		property_id   TEXT     NOT NULL,
		score_at_send INTEGER  NOT NULL CHECK (score_at_send >= 0 AND score_at_send <= 100),
		sent_at       DATETIME NOT NULL,
		PRIMARY KEY (investor_id, property_id)
	)`,
	`CREATE TABLE IF NOT EXISTS notification_claims (
		investor_id TEXT    NOT NULL,
		property_id TEXT    NOT NULL,
		token       TEXT    NOT NULL,
		claimed_at  INTEGER NOT NULL,
		expires_at  INTEGER NOT NULL,
		PRIMARY KEY (investor_id, property_id)
	)`,
}

// migrate runs all migrations in order.
func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	// Column additions (idempotent, checks if column exists first)
	columnMigrations := []struct {
		table, column, definition string
	}{
		{"investors", "operator_type", "TEXT NOT NULL DEFAULT ''"},
	}

	for _, cm := range columnMigrations {
		if err := addColumnIfNotExists(db, cm.table, cm.column, cm.definition); err != nil {
			return fmt.Errorf("adding %s.%s: %w", cm.table, cm.column, err)
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(db *sql.DB, table, column, definition string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("checking table info: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			fmt.Printf("warning: closing rows: %v\n", cerr)
		}
	}()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("scanning column info: %w", err)
		}
		if name == column {
			return nil // column already exists
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating columns: %w", err)
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}
