// Package sqlite opens the relational store and keeps its schema current.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database file, pings it and applies the schema.
// The pool is capped at a single connection: sqlite allows one writer at a
// time and a single serialized connection makes every transaction race-free
// without busy retries.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenInMemory opens a private in-memory database, used by tests.
func OpenInMemory(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates all tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			telegram_id INTEGER PRIMARY KEY,
			username TEXT,
			name TEXT NOT NULL DEFAULT 'Not set',
			surname TEXT NOT NULL DEFAULT 'Not set',
			email TEXT NOT NULL DEFAULT 'Not set',
			phone TEXT NOT NULL DEFAULT 'Not set',
			birth_date TEXT NOT NULL DEFAULT 'Not set',
			is_guide BOOLEAN NOT NULL DEFAULT 0,
			registration_timestamp TIMESTAMP,
			last_updated TIMESTAMP,
			basic_consent BOOLEAN NOT NULL DEFAULT 0,
			car_sharing_consent BOOLEAN NOT NULL DEFAULT 0,
			photo_consent BOOLEAN NOT NULL DEFAULT 0,
			marketing_consent BOOLEAN NOT NULL DEFAULT 0,
			consent_version TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS hikes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hike_name TEXT NOT NULL,
			hike_date DATE NOT NULL,
			max_participants INTEGER NOT NULL,
			guides INTEGER DEFAULT 1,
			latitude REAL,
			longitude REAL,
			difficulty TEXT,
			description TEXT,
			created_by INTEGER,
			is_active BOOLEAN DEFAULT 1,
			FOREIGN KEY (created_by) REFERENCES users(telegram_id)
		)`,
		`CREATE TABLE IF NOT EXISTS registrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id INTEGER NOT NULL,
			hike_id INTEGER NOT NULL,
			registration_timestamp TIMESTAMP NOT NULL,
			name_surname TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL,
			birth_date TEXT NOT NULL,
			medical_conditions TEXT,
			has_equipment BOOLEAN NOT NULL,
			car_sharing BOOLEAN NOT NULL,
			location TEXT NOT NULL,
			notes TEXT,
			reminder_preference TEXT,
			FOREIGN KEY (telegram_id) REFERENCES users(telegram_id),
			FOREIGN KEY (hike_id) REFERENCES hikes(id),
			UNIQUE(telegram_id, hike_id)
		)`,
		`CREATE TABLE IF NOT EXISTS admins (
			telegram_id INTEGER PRIMARY KEY,
			role TEXT NOT NULL,
			added_by INTEGER,
			added_on TIMESTAMP NOT NULL,
			FOREIGN KEY (telegram_id) REFERENCES users(telegram_id),
			FOREIGN KEY (added_by) REFERENCES users(telegram_id)
		)`,
		`CREATE TABLE IF NOT EXISTS group_members (
			telegram_id INTEGER PRIMARY KEY,
			joined_date TIMESTAMP NOT NULL,
			FOREIGN KEY (telegram_id) REFERENCES users(telegram_id)
		)`,
		`CREATE TABLE IF NOT EXISTS maintenance (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			maintenance_date DATE NOT NULL,
			start_time TIME NOT NULL,
			end_time TIME NOT NULL,
			reason TEXT,
			created_by INTEGER,
			created_on TIMESTAMP,
			notice_stage INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (created_by) REFERENCES users(telegram_id)
		)`,
		`CREATE TABLE IF NOT EXISTS saved_queries (
			name TEXT PRIMARY KEY,
			query_text TEXT NOT NULL,
			created_by INTEGER,
			created_on TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_registrations_hike ON registrations(hike_id)`,
		`CREATE INDEX IF NOT EXISTS idx_hikes_date ON hikes(hike_date)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
