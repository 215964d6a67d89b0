// Package mssql implements the measurement store over Microsoft SQL Server
// using database/sql. The table layout matches the sqlite backend.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"cellpipe/internal/config"
	"cellpipe/internal/measure"
	"cellpipe/internal/storage"
)

// Store implements measure.Store for SQL Server.
type Store struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New opens a SQL Server measurement store and verifies connectivity.
func New(ctx context.Context, cfg config.StoreConfig) (measure.Store, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// Exports read feature-by-feature, so keep a small idle pool around.
	db.SetMaxOpenConns(cfg.Options.Int("max_open_conns", 16))
	db.SetMaxIdleConns(cfg.Options.Int("max_idle_conns", 16))

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() { _ = s.db.Close() }

func (s *Store) FeatureNames(ctx context.Context, entity string) ([]string, error) {
	var q string
	var args []any
	switch entity {
	case measure.ExperimentEntity:
		q = `SELECT DISTINCT feature FROM experiment ORDER BY feature`
	case measure.ImageEntity:
		q = `SELECT DISTINCT feature FROM image ORDER BY feature`
	default:
		q = `SELECT DISTINCT feature FROM object WHERE entity = @p1 ORDER BY feature`
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
			`SELECT value FROM experiment WHERE feature = @p1`, feature).Scan(&v)
		return scalarValue(feature, v, err)

	case measure.ImageEntity:
		var v sql.NullString
		err := s.db.QueryRowContext(ctx,
			`SELECT value FROM image WHERE record = @p1 AND feature = @p2`,
			rec, feature).Scan(&v)
		return scalarValue(feature, v, err)

	default:
		rows, err := s.db.QueryContext(ctx,
			`SELECT value FROM object
			 WHERE entity = @p1 AND record = @p2 AND feature = @p3
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
		) AS t`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) || err == nil && !n.Valid {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(n.Int64) + 1, nil
}

var _ measure.Store = (*Store)(nil)
