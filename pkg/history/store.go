// Package history keeps a SQLite log of sensor snapshots.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sousvide-ble/nano-go/pkg/sensor"
)

// Entry is one stored snapshot.
type Entry struct {
	ID      int64
	Address string
	TakenAt time.Time
	Values  sensor.Values
}

// Store provides SQLite persistence for sensor snapshots.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the database at path.
// Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`PRAGMA journal_mode = WAL;`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL,
		taken_at INTEGER NOT NULL,
		water_temp REAL NOT NULL,
		heater_temp REAL NOT NULL,
		triac_temp REAL NOT NULL,
		internal_temp REAL NOT NULL,
		unit TEXT NOT NULL,
		water_low INTEGER NOT NULL DEFAULT 0,
		water_leak INTEGER NOT NULL DEFAULT 0,
		motor_speed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_address_taken_at ON snapshots(address, taken_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a snapshot of the cooker at address.
func (s *Store) Record(ctx context.Context, address string, takenAt time.Time, v sensor.Values) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (address, taken_at, water_temp, heater_temp, triac_temp,
		                       internal_temp, unit, water_low, water_leak, motor_speed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, address, takenAt.UnixNano(), v.WaterTemp.Value, v.HeaterTemp.Value, v.TriacTemp.Value,
		v.InternalTemp.Value, v.WaterTemp.Unit, v.WaterLow, v.WaterLeak, v.MotorSpeed)
	if err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return nil
}

// Latest returns the newest snapshot of address.
// Returns nil, nil if there is none.
func (s *Store) Latest(ctx context.Context, address string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+columns+`
		FROM snapshots
		WHERE address = ?
		ORDER BY taken_at DESC, id DESC
		LIMIT 1
	`, address)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Range returns the snapshots of address taken in [from, to), oldest
// first. Zero times leave that side unbounded. limit <= 0 defaults to 1000.
func (s *Store) Range(ctx context.Context, address string, from, to time.Time, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 1000
	}
	lower, upper := int64(0), int64(math.MaxInt64)
	if !from.IsZero() {
		lower = from.UnixNano()
	}
	if !to.IsZero() {
		upper = to.UnixNano()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+columns+`
		FROM snapshots
		WHERE address = ? AND taken_at >= ? AND taken_at < ?
		ORDER BY taken_at ASC, id ASC
		LIMIT ?
	`, address, lower, upper, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}

	return entries, rows.Err()
}

// Prune deletes snapshots taken before cutoff and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE taken_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

const columns = `id, address, taken_at, water_temp, heater_temp, triac_temp,
		       internal_temp, unit, water_low, water_leak, motor_speed`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e       Entry
		takenAt int64
		unit    string
		water   float64
		heater  float64
		triac   float64
		intern  float64
	)
	err := row.Scan(&e.ID, &e.Address, &takenAt, &water, &heater, &triac, &intern,
		&unit, &e.Values.WaterLow, &e.Values.WaterLeak, &e.Values.MotorSpeed)
	if err != nil {
		return nil, err
	}

	e.TakenAt = time.Unix(0, takenAt)
	e.Values.WaterTemp = sensor.Temperature{Value: water, Unit: unit}
	e.Values.HeaterTemp = sensor.Temperature{Value: heater, Unit: unit}
	e.Values.TriacTemp = sensor.Temperature{Value: triac, Unit: unit}
	e.Values.InternalTemp = sensor.Temperature{Value: intern, Unit: unit}
	return &e, nil
}
