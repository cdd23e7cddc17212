package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/site-content/pkg/sitecontent"
)

const (
	backendName  = "postgres"
	DefaultTable = "site_content"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store implements sitecontent.Store using a PostgreSQL JSONB column.
// Each save is a single upsert, so it is atomic.
type Store struct {
	db    DBTX
	table string
}

// New creates a new PostgreSQL store. An empty table uses DefaultTable;
// a dotted name is treated as schema.table.
func New(db DBTX, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, table: pgx.Identifier(strings.Split(table, ".")).Sanitize()}
}

// NewWithPool creates a new PostgreSQL store with connection pool
func NewWithPool(pool *pgxpool.Pool, table string) *Store {
	return New(pool, table)
}

// EnsureSchema creates the documents table if it does not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table)

	if _, err := s.db.Exec(ctx, query); err != nil {
		return s.handlePostgresError("ensure schema", err)
	}
	return nil
}

// Error handling helper
func (s *Store) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table
			return fmt.Errorf("table %s does not exist - database migration required", s.table)
		case "22P02", "22032": // invalid_text_representation, invalid_json_text
			return fmt.Errorf("stored document is not valid JSON: %s", pgErr.Message)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Load reads the document stored under key
func (s *Store) Load(ctx context.Context, key string) (sitecontent.Document, error) {
	query := fmt.Sprintf(`SELECT document FROM %s WHERE key = $1`, s.table)

	var data []byte
	err := s.db.QueryRow(ctx, query, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sitecontent.NewStoreError(backendName, key, "load", sitecontent.ErrDocumentNotFound)
		}
		return nil, sitecontent.NewStoreError(backendName, key, "load", s.handlePostgresError("load", err))
	}

	doc, err := sitecontent.ParseDocument(data)
	if err != nil {
		return nil, sitecontent.NewStoreError(backendName, key, "load", err)
	}
	return doc, nil
}

// Save upserts the document under key
func (s *Store) Save(ctx context.Context, key string, doc sitecontent.Document) error {
	data, err := doc.Encode()
	if err != nil {
		return sitecontent.NewStoreError(backendName, key, "save", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, document, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at`, s.table)

	if _, err := s.db.Exec(ctx, query, key, data); err != nil {
		return sitecontent.NewStoreError(backendName, key, "save", s.handlePostgresError("save", err))
	}
	return nil
}

// Ping verifies connectivity to Postgres
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
