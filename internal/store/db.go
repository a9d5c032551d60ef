package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/FailDerErste/dienstplan-app/internal/model"
)

// DB wraps sql.DB for the schedule store. The four logical records
// (services, assignments, overrides, time-format preference) live in
// independent tables and are written independently.
type DB struct {
	*sql.DB
}

// Open opens the database at path and runs migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			start_time TEXT,
			end_time TEXT,
			color TEXT,
			position INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS assignments (
			date TEXT PRIMARY KEY,
			service_id TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS overrides (
			date TEXT PRIMARY KEY,
			name TEXT,
			description TEXT,
			start_time TEXT,
			end_time TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_assignments_service ON assignments(service_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

const timeFormatKey = "timeFormat"

// ReplaceServices overwrites the stored services list.
func (db *DB) ReplaceServices(ctx context.Context, services []model.Service) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM services"); err != nil {
		return fmt.Errorf("clear services: %w", err)
	}
	now := time.Now()
	for i, svc := range services {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO services (id, name, description, start_time, end_time, color, position, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			svc.ID, svc.Name, svc.Desc, svc.Start, svc.End, svc.Color, i, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert service %s: %w", svc.ID, err)
		}
	}
	return tx.Commit()
}

// ReplaceAssignments overwrites the stored assignment map.
func (db *DB) ReplaceAssignments(ctx context.Context, assignments map[string]string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM assignments"); err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}
	now := time.Now()
	for date, serviceID := range assignments {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO assignments (date, service_id, updated_at) VALUES (?, ?, ?)",
			date, serviceID, now,
		)
		if err != nil {
			return fmt.Errorf("insert assignment %s: %w", date, err)
		}
	}
	return tx.Commit()
}

// ReplaceOverrides overwrites the stored override map. Absent override
// fields are stored as NULL so presence survives the round trip.
func (db *DB) ReplaceOverrides(ctx context.Context, overrides map[string]model.Override) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM overrides"); err != nil {
		return fmt.Errorf("clear overrides: %w", err)
	}
	now := time.Now()
	for date, ov := range overrides {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO overrides (date, name, description, start_time, end_time, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			date, ov.Name, ov.Desc, ov.Start, ov.End, now,
		)
		if err != nil {
			return fmt.Errorf("insert override %s: %w", date, err)
		}
	}
	return tx.Commit()
}

// SaveTimeFormat persists the display preference ("24" or "12").
func (db *DB) SaveTimeFormat(ctx context.Context, format string) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		timeFormatKey, format, now,
	)
	return err
}

// LoadServices returns the stored services in list order.
func (db *DB) LoadServices(ctx context.Context) ([]model.Service, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, description, start_time, end_time, color
		FROM services ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var svc model.Service
		var desc, start, end, color sql.NullString
		if err := rows.Scan(&svc.ID, &svc.Name, &desc, &start, &end, &color); err != nil {
			return nil, err
		}
		svc.Desc = desc.String
		svc.Start = start.String
		svc.End = end.String
		svc.Color = color.String
		services = append(services, svc)
	}
	return services, rows.Err()
}

// LoadAssignments returns the stored assignment map.
func (db *DB) LoadAssignments(ctx context.Context) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT date, service_id FROM assignments")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make(map[string]string)
	for rows.Next() {
		var date, serviceID string
		if err := rows.Scan(&date, &serviceID); err != nil {
			return nil, err
		}
		assignments[date] = serviceID
	}
	return assignments, rows.Err()
}

// LoadOverrides returns the stored override map.
func (db *DB) LoadOverrides(ctx context.Context) (map[string]model.Override, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT date, name, description, start_time, end_time FROM overrides")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := make(map[string]model.Override)
	for rows.Next() {
		var date string
		var name, desc, start, end sql.NullString
		if err := rows.Scan(&date, &name, &desc, &start, &end); err != nil {
			return nil, err
		}
		var ov model.Override
		if name.Valid {
			ov.Name = &name.String
		}
		if desc.Valid {
			ov.Desc = &desc.String
		}
		if start.Valid {
			ov.Start = &start.String
		}
		if end.Valid {
			ov.End = &end.String
		}
		overrides[date] = ov
	}
	return overrides, rows.Err()
}

// LoadTimeFormat returns the stored display preference, or "" when the
// preference has never been saved.
func (db *DB) LoadTimeFormat(ctx context.Context) (string, error) {
	var value string
	err := db.QueryRowContext(ctx,
		"SELECT value FROM preferences WHERE key = ?", timeFormatKey,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
