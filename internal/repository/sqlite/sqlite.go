package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lanwatch/internal/domain"
	"lanwatch/internal/presence"

	_ "modernc.org/sqlite"
)

// Repository implements repository.StateStore using SQLite
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository. ":memory:" gives a private in-memory database.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		mac TEXT PRIMARY KEY,
		ip TEXT NOT NULL,
		vendor TEXT,
		last_seen TEXT NOT NULL,
		online INTEGER NOT NULL DEFAULT 1,
		history TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_devices_online ON devices(online);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveStates upserts all states in one transaction
func (r *Repository) SaveStates(ctx context.Context, states []presence.DeviceState) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO devices (mac, ip, vendor, last_seen, online, history)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(mac) DO UPDATE SET
			ip = excluded.ip,
			vendor = excluded.vendor,
			last_seen = excluded.last_seen,
			online = excluded.online,
			history = excluded.history,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, s := range states {
		row := rowFromState(s)
		if _, err := stmt.ExecContext(ctx, row.insertArgs()...); err != nil {
			return fmt.Errorf("failed to save device %s: %w", row.MAC, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// LoadStates returns every stored device. Rows that no longer parse are skipped
// and reported in the joined error alongside the valid states.
func (r *Repository) LoadStates(ctx context.Context) ([]presence.DeviceState, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT mac, ip, vendor, last_seen, online, history
		FROM devices
		ORDER BY created_at, mac
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var (
		states []presence.DeviceState
		errs   []error
	)
	for rows.Next() {
		var row deviceRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		state, err := row.toDomain()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}

	return states, errors.Join(errs...)
}

// DeleteDevice removes one device; deleting an unknown MAC is not an error
func (r *Repository) DeleteDevice(ctx context.Context, mac domain.MACAddress) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE mac = ?`, mac.String()); err != nil {
		return fmt.Errorf("failed to delete device %s: %w", mac, err)
	}
	return nil
}

// CountDevices returns the number of stored devices
func (r *Repository) CountDevices(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

const timeLayout = time.RFC3339Nano
