// Package postgres provides the Postgres-backed program item store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/program-catalog/internal/catalog"
)

const defaultTable = "program_data"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ProgramStoreConfig controls the Postgres connection pool used for program rows.
type ProgramStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ProgramStore upserts program rows keyed by program URL.
type ProgramStore struct {
	pool  execCloser
	table string
}

// NewProgramStore creates a Postgres-backed ProgramStore using the provided config.
func NewProgramStore(ctx context.Context, cfg ProgramStoreConfig) (*ProgramStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ProgramStore{
		pool:  pool,
		table: table,
	}, nil
}

// NewProgramStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewProgramStoreWithPool(pool execCloser, table string) (*ProgramStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ProgramStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *ProgramStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the program table when it does not exist.
func (s *ProgramStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	program_url          TEXT PRIMARY KEY,
	program_title        TEXT NOT NULL,
	academic_level       TEXT NOT NULL DEFAULT '',
	program_type         TEXT NOT NULL DEFAULT '',
	academic_interests   TEXT NOT NULL DEFAULT '',
	colleges_and_schools TEXT NOT NULL DEFAULT '',
	department           TEXT NOT NULL,
	tabs                 JSONB NOT NULL DEFAULT '{}'::jsonb,
	program_s3_uri       TEXT NOT NULL DEFAULT '',
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create program table: %w", err)
	}
	return nil
}

// Upsert inserts the record or replaces the existing row with the same program URL.
func (s *ProgramStore) Upsert(ctx context.Context, record catalog.ProgramRecord) error {
	if s == nil || s.pool == nil {
		return errors.New("program store is not configured")
	}
	if record.ProgramURL == "" {
		return errors.New("program url is required")
	}
	tabs := record.Tabs
	if tabs == nil {
		tabs = map[string]catalog.ContentSection{}
	}
	tabsJSON, err := json.Marshal(tabs)
	if err != nil {
		return fmt.Errorf("marshal tabs: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	program_url,
	program_title,
	academic_level,
	program_type,
	academic_interests,
	colleges_and_schools,
	department,
	tabs,
	program_s3_uri,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,now()
)
ON CONFLICT (program_url) DO UPDATE SET
	program_title = EXCLUDED.program_title,
	academic_level = EXCLUDED.academic_level,
	program_type = EXCLUDED.program_type,
	academic_interests = EXCLUDED.academic_interests,
	colleges_and_schools = EXCLUDED.colleges_and_schools,
	department = EXCLUDED.department,
	tabs = EXCLUDED.tabs,
	program_s3_uri = EXCLUDED.program_s3_uri,
	updated_at = now()`, s.table)

	args := []any{
		record.ProgramURL,
		record.ProgramTitle,
		record.AcademicLevel,
		record.ProgramType,
		record.AcademicInterests,
		record.CollegesAndSchools,
		record.Department,
		tabsJSON,
		record.ProgramS3URI,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert program: %w", err)
	}
	return nil
}
