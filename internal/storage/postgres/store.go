// Package postgres implements the measurement store over PostgreSQL using
// pgx. The table layout matches the sqlite backend; an optional "schema"
// store option qualifies every table reference.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cellpipe/internal/config"
	"cellpipe/internal/measure"
	"cellpipe/internal/storage"
)

// Store implements measure.Store for PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	schema string
}

func init() {
	storage.Register("postgres", New)
}

// New opens a PostgreSQL measurement store.
func New(ctx context.Context, cfg config.StoreConfig) (measure.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{
		pool:   pool,
		schema: cfg.Options.String("schema", ""),
	}, nil
}

func (s *Store) Close() { s.pool.Close() }

// table qualifies a table name with the configured schema, if any.
func (s *Store) table(name string) string {
	if s.schema == "" {
		return pgIdent(name)
	}
	return pgIdent(s.schema) + "." + pgIdent(name)
}

// pgIdent quotes an identifier for Postgres.
func pgIdent(name string) string {
	var b []byte
	b = append(b, '"')
	for i := 0; i < len(name); i++ {
		if name[i] == '"' {
			b = append(b, '"')
		}
		b = append(b, name[i])
	}
	return string(append(b, '"'))
}

func (s *Store) FeatureNames(ctx context.Context, entity string) ([]string, error) {
	var q string
	var args []any
	switch entity {
	case measure.ExperimentEntity:
		q = `SELECT DISTINCT feature FROM ` + s.table("experiment") + ` ORDER BY feature`
	case measure.ImageEntity:
		q = `SELECT DISTINCT feature FROM ` + s.table("image") + ` ORDER BY feature`
	default:
		q = `SELECT DISTINCT feature FROM ` + s.table("object") + ` WHERE entity = $1 ORDER BY feature`
		args = append(args, entity)
	}

	rows, err := s.pool.Query(ctx, q, args...)
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
		var v *string
		err := s.pool.QueryRow(ctx,
			`SELECT value FROM `+s.table("experiment")+` WHERE feature = $1`,
			feature).Scan(&v)
		return scalarValue(feature, v, err)

	case measure.ImageEntity:
		var v *string
		err := s.pool.QueryRow(ctx,
			`SELECT value FROM `+s.table("image")+` WHERE record = $1 AND feature = $2`,
			rec, feature).Scan(&v)
		return scalarValue(feature, v, err)

	default:
		rows, err := s.pool.Query(ctx,
			`SELECT value FROM `+s.table("object")+`
			 WHERE entity = $1 AND record = $2 AND feature = $3
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

func scalarValue(feature string, v *string, err error) (any, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	// Tag values keep their exact text, even when numeric-looking.
	if !strings.HasPrefix(feature, measure.MetadataPrefix) {
		if f, perr := strconv.ParseFloat(*v, 64); perr == nil {
			return f, nil
		}
	}
	return *v, nil
}

func (s *Store) ObjectEntities(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT entity FROM `+s.table("object")+` ORDER BY entity`)
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
	var n *int64
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(m) FROM (
			SELECT MAX(record) AS m FROM `+s.table("image")+`
			UNION ALL
			SELECT MAX(record) AS m FROM `+s.table("object")+`
		) AS t`).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) || err == nil && n == nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(*n) + 1, nil
}

var _ measure.Store = (*Store)(nil)
