package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/weather-data-aggregation/internal/weather"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS measurements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	lat REAL NOT NULL,
	lon REAL NOT NULL,
	timestamp INTEGER NOT NULL,
	temperature_2m REAL NOT NULL,
	relative_humidity_2m REAL NOT NULL,
	wind_speed_10m REAL NOT NULL,
	UNIQUE(source, lat, lon, timestamp)
);
CREATE INDEX IF NOT EXISTS idx_measurements_timestamp ON measurements(timestamp DESC);`

const upsertSQL = `
INSERT INTO measurements(source, lat, lon, timestamp, temperature_2m, relative_humidity_2m, wind_speed_10m)
VALUES(?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source, lat, lon, timestamp) DO UPDATE SET
temperature_2m=excluded.temperature_2m,
relative_humidity_2m=excluded.relative_humidity_2m,
wind_speed_10m=excluded.wind_speed_10m`

const selectColumns = `source, lat, lon, timestamp, temperature_2m, relative_humidity_2m, wind_speed_10m`

// SQLiteStore implements weather.Store on a SQLite database.
// Timestamps are stored as unix nanoseconds so the index orders and ranges them
// and the key has the same precision as weather.Key.
type SQLiteStore struct {
	db  *sql.DB
	dsn string
}

// NewSQLiteStore opens (without connecting) the database at dsn, creating the
// parent directory of a file path if needed.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dir := sqliteDir(dsn); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %v", weather.ErrStorageUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", weather.ErrStorageUnavailable, err)
	}

	return &SQLiteStore{db: db, dsn: dsn}, nil
}

// EnsureIndexes creates the measurements table and its timestamp index. Safe to run on every start.
func (s *SQLiteStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("%w: create schema: %v", weather.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping %s: %v", weather.ErrStorageUnavailable, s.dsn, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Upsert stores m in a single statement, replacing the readings of an existing key.
func (s *SQLiteStore) Upsert(ctx context.Context, m weather.Measurement) error {
	_, err := s.db.ExecContext(ctx, upsertSQL,
		m.Source,
		m.Lat,
		m.Lon,
		m.Timestamp.UnixNano(),
		m.Temperature2m,
		m.RelativeHumidity2m,
		m.WindSpeed10m,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert measurement: %v", weather.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Latest(ctx context.Context) (weather.Measurement, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM measurements ORDER BY timestamp DESC, id DESC LIMIT 1`)

	m, err := scanMeasurement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Measurement{}, false, nil
	}
	if err != nil {
		return weather.Measurement{}, false, fmt.Errorf("%w: query latest: %v", weather.ErrStorageUnavailable, err)
	}
	return m, true, nil
}

func (s *SQLiteStore) WindowSince(ctx context.Context, since time.Time) ([]weather.Measurement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM measurements WHERE timestamp >= ? ORDER BY timestamp ASC, id ASC`,
		since.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query window: %v", weather.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var result []weather.Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", weather.ErrStorageUnavailable, err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration: %v", weather.ErrStorageUnavailable, err)
	}

	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeasurement(row scanner) (weather.Measurement, error) {
	var (
		m  weather.Measurement
		ts int64
	)
	if err := row.Scan(
		&m.Source,
		&m.Lat,
		&m.Lon,
		&ts,
		&m.Temperature2m,
		&m.RelativeHumidity2m,
		&m.WindSpeed10m,
	); err != nil {
		return weather.Measurement{}, err
	}
	m.Timestamp = time.Unix(0, ts).UTC()
	return m, nil
}

// sqliteDir extracts the directory of a file-backed DSN, or "" for in-memory databases.
func sqliteDir(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}
