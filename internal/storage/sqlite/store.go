// Package sqlite implements the measurement store over a SQLite database.
//
// Schema (one database per run):
//
//	experiment(feature TEXT PRIMARY KEY, value TEXT)
//	image(record INTEGER, feature TEXT, value TEXT, PRIMARY KEY(record, feature))
//	object(entity TEXT, record INTEGER, feature TEXT, object INTEGER, value REAL,
//	       PRIMARY KEY(entity, record, feature, object))
//
// Image and experiment values are stored with TEXT affinity; values that
// parse as numbers are surfaced as float64, except Metadata_* tag values,
// which always stay strings so tags like a zero-padded plate name keep
// their exact text.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"cellpipe/internal/config"
	"cellpipe/internal/measure"
	"cellpipe/internal/storage"
)

// Store implements measure.Store for SQLite.
type Store struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New opens a SQLite measurement store. The "create" option creates the
// schema if it does not exist, for in-process measurement producers.
func New(ctx context.Context, cfg config.StoreConfig) (measure.Store, error) {
	s, err := Open(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Options.Bool("create", false) {
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Open opens a SQLite store from a DSN and verifies connectivity.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() { _ = s.db.Close() }

// EnsureSchema creates the measurement tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS experiment (
			feature TEXT PRIMARY KEY,
			value   TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS image (
			record  INTEGER NOT NULL,
			feature TEXT NOT NULL,
			value   TEXT,
			PRIMARY KEY (record, feature)
		)`,
		`CREATE TABLE IF NOT EXISTS object (
			entity  TEXT NOT NULL,
			record  INTEGER NOT NULL,
			feature TEXT NOT NULL,
			object  INTEGER NOT NULL,
			value   REAL,
			PRIMARY KEY (entity, record, feature, object)
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// SetExperiment upserts one experiment feature value.
func (s *Store) SetExperiment(ctx context.Context, feature string, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO experiment (feature, value) VALUES (?, ?)
		 ON CONFLICT (feature) DO UPDATE SET value = excluded.value`,
		feature, value)
	return err
}

// SetImage upserts one per-image feature value.
func (s *Store) SetImage(ctx context.Context, rec int, feature string, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO image (record, feature, value) VALUES (?, ?, ?)
		 ON CONFLICT (record, feature) DO UPDATE SET value = excluded.value`,
		rec, feature, value)
	return err
}

// SetObjects replaces one per-object feature vector for a record.
func (s *Store) SetObjects(ctx context.Context, entity string, rec int, feature string, values []float64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM object WHERE entity = ? AND record = ? AND feature = ?`,
		entity, rec, feature); err != nil {
		return err
	}
	for i, v := range values {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO object (entity, record, feature, object, value) VALUES (?, ?, ?, ?, ?)`,
			entity, rec, feature, i, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) FeatureNames(ctx context.Context, entity string) ([]string, error) {
	var q string
	var args []any
	switch entity {
	case measure.ExperimentEntity:
		q = `SELECT DISTINCT feature FROM experiment ORDER BY feature`
	case measure.ImageEntity:
		q = `SELECT DISTINCT feature FROM image ORDER BY feature`
	default:
		q = `SELECT DISTINCT feature FROM object WHERE entity = ? ORDER BY feature`
		args = append(args, entity)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("feature names for %s: %w", entity, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) Value(ctx context.Context, entity, feature string, rec int) (any, error) {
	switch entity {
	case measure.ExperimentEntity:
		var v sql.NullString
		err := s.db.QueryRowContext(ctx,
			`SELECT value FROM experiment WHERE feature = ?`, feature).Scan(&v)
		return scalarValue(feature, v, err)

	case measure.ImageEntity:
		var v sql.NullString
		err := s.db.QueryRowContext(ctx,
			`SELECT value FROM image WHERE record = ? AND feature = ?`, rec, feature).Scan(&v)
		return scalarValue(feature, v, err)

	default:
		rows, err := s.db.QueryContext(ctx,
			`SELECT value FROM object
			 WHERE entity = ? AND record = ? AND feature = ?
			 ORDER BY object`, entity, rec, feature)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var vec []float64
		for rows.Next() {
			var v float64
			if err := rows.Scan(&v); err != nil {
				return nil, err
			}
			vec = append(vec, v)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		if vec == nil {
			return nil, nil
		}
		return vec, nil
	}
}

func scalarValue(feature string, v sql.NullString, err error) (any, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !v.Valid {
		return nil, nil
	}
	// Tag values keep their exact text, even when numeric-looking.
	if !strings.HasPrefix(feature, measure.MetadataPrefix) {
		if f, perr := strconv.ParseFloat(v.String, 64); perr == nil {
			return f, nil
		}
	}
	return v.String, nil
}

func (s *Store) ObjectEntities(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT entity FROM object ORDER BY entity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (s *Store) Aggregates(ctx context.Context, rec int) (map[string]float64, error) {
	return measure.AggregateObjects(ctx, s, rec)
}

func (s *Store) RecordCount(ctx context.Context) (int, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(m) FROM (
			SELECT MAX(record) AS m FROM image
			UNION ALL
			SELECT MAX(record) AS m FROM object
		)`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) || err == nil && !n.Valid {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(n.Int64) + 1, nil
}

var _ measure.Store = (*Store)(nil)
