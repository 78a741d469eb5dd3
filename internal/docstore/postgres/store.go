// Package postgres provides the Postgres-backed document store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/capturelabs/capturesink/internal/docstore"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool behind the store.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store persists documents in a single JSONB table keyed by
// (collection, doc_key), with a version column backing conditional writes.
type Store struct {
	pool  pgxPool
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "capture_documents"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
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
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for
// testing).
func NewWithPool(pool pgxPool, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "capture_documents"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the backing table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	collection TEXT NOT NULL,
	doc_key    TEXT NOT NULL,
	data       JSONB NOT NULL,
	version    BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, doc_key)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Get loads a document row and formats its version as the revision.
func (s *Store) Get(ctx context.Context, collection, key string) (docstore.Document, string, error) {
	query := fmt.Sprintf(`SELECT data, version FROM %s WHERE collection = $1 AND doc_key = $2`, s.table)
	var (
		raw     []byte
		version int64
	)
	err := s.pool.QueryRow(ctx, query, collection, key).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.Document{}, "", docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, "", fmt.Errorf("select document: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return docstore.Document{}, "", fmt.Errorf("decode document data: %w", err)
	}
	return docstore.Document{Data: data}, strconv.FormatInt(version, 10), nil
}

// ConditionalSet inserts the document at version 1 when expectedRevision is
// empty, otherwise bumps the version while it still matches. Both paths
// report a lost race as docstore.ErrConflict via the affected row count.
func (s *Store) ConditionalSet(ctx context.Context, collection, key string, doc docstore.Document, expectedRevision string) error {
	payload, err := marshalData(doc)
	if err != nil {
		return err
	}
	if expectedRevision == docstore.NoRevision {
		query := fmt.Sprintf(
			`INSERT INTO %s (collection, doc_key, data, version) VALUES ($1, $2, $3, 1) ON CONFLICT (collection, doc_key) DO NOTHING`,
			s.table,
		)
		tag, err := s.pool.Exec(ctx, query, collection, key, payload)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return docstore.ErrConflict
		}
		return nil
	}
	version, err := strconv.ParseInt(expectedRevision, 10, 64)
	if err != nil {
		return fmt.Errorf("parse revision %q: %w", expectedRevision, err)
	}
	query := fmt.Sprintf(
		`UPDATE %s SET data = $3, version = version + 1, updated_at = now() WHERE collection = $1 AND doc_key = $2 AND version = $4`,
		s.table,
	)
	tag, err := s.pool.Exec(ctx, query, collection, key, payload, version)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrConflict
	}
	return nil
}

// Delete removes a document row.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE collection = $1 AND doc_key = $2`, s.table)
	tag, err := s.pool.Exec(ctx, query, collection, key)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// ListKeys returns the document keys of a collection in sorted order.
func (s *Store) ListKeys(ctx context.Context, collection string) ([]string, error) {
	query := fmt.Sprintf(`SELECT doc_key FROM %s WHERE collection = $1 ORDER BY doc_key`, s.table)
	rows, err := s.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()
	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

func marshalData(doc docstore.Document) ([]byte, error) {
	data := doc.Data
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document data: %w", err)
	}
	return payload, nil
}
