// Package postgres provides a PostgreSQL implementation of
// transport.RecordStore. It uses pgx/v5 for connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/scoregate/pkg/api"
	"github.com/rhuss/scoregate/pkg/storage"
	"github.com/rhuss/scoregate/pkg/transport"
)

// Store is a PostgreSQL-backed RecordStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements transport.RecordStore at compile time.
var _ transport.RecordStore = (*Store)(nil)

const recordColumns = `id, filename, status, failure_kind, note, xml_bytes, duration_ms, created_at`

// Config holds connection settings for the history database.
type Config struct {
	// DSN is a libpq-style URL or keyword string.
	DSN string

	// MaxConns caps the pool. Conversions are slow and write one row each,
	// so a small pool is enough. Zero means 10.
	MaxConns int32

	// MaxConnIdleTime closes idle connections. Zero means 10 minutes.
	MaxConnIdleTime time.Duration

	// ConnectTimeout bounds the startup ping. Zero means 5 seconds.
	ConnectTimeout time.Duration

	// MigrateOnStart applies the embedded schema migrations in New.
	MigrateOnStart bool
}

func (c Config) withDefaults() Config {
	if c.MaxConns <= 0 {
		c.MaxConns = 10
	}
	if c.MaxConnIdleTime <= 0 {
		c.MaxConnIdleTime = 10 * time.Minute
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	return c
}

// New connects to PostgreSQL and, when cfg.MigrateOnStart is set, brings
// the schema up to date.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SaveRecord inserts a conversion record under the tenant in ctx.
func (s *Store) SaveRecord(ctx context.Context, rec *api.ConversionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversions (
			id, tenant_id, filename, status, failure_kind, note,
			xml_bytes, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rec.ID, storage.TenantFromContext(ctx), rec.Filename, string(rec.Status), rec.FailureKind, rec.Note,
		rec.XMLBytes, rec.DurationMs, rec.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting conversion record: %w", err)
	}
	return nil
}

// GetRecord retrieves a record by ID, scoped by tenant when one is set.
func (s *Store) GetRecord(ctx context.Context, id string) (*api.ConversionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM conversions WHERE id = $1`
	args := []any{id}

	if tenantID := storage.TenantFromContext(ctx); tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversion record: %w", err)
	}
	return rec, nil
}

// ListRecords returns records newest first with cursor pagination. An
// unknown cursor yields an empty page.
func (s *Store) ListRecords(ctx context.Context, opts transport.ListOptions) (*api.RecordList, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if tenantID := storage.TenantFromContext(ctx); tenantID != "" {
		where = append(where, "tenant_id = "+arg(tenantID))
	}
	if opts.Status != "" {
		where = append(where, "status = "+arg(string(opts.Status)))
	}
	if opts.After != "" {
		where = append(where, "seq < (SELECT seq FROM conversions WHERE id = "+arg(opts.After)+")")
	}

	limit := opts.EffectiveLimit()
	query := `SELECT ` + recordColumns + ` FROM conversions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// Fetch one extra row to detect has_more.
	query += " ORDER BY seq DESC LIMIT " + arg(limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conversion records: %w", err)
	}
	defer rows.Close()

	result := &api.RecordList{Object: "list", Data: []*api.ConversionRecord{}}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversion record: %w", err)
		}
		result.Data = append(result.Data, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing conversion records: %w", err)
	}

	if len(result.Data) > limit {
		result.Data = result.Data[:limit]
		result.HasMore = true
	}
	if len(result.Data) > 0 {
		result.FirstID = result.Data[0].ID
		result.LastID = result.Data[len(result.Data)-1].ID
	}

	return result, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (*api.ConversionRecord, error) {
	var rec api.ConversionRecord
	var status string
	err := row.Scan(
		&rec.ID, &rec.Filename, &status, &rec.FailureKind, &rec.Note,
		&rec.XMLBytes, &rec.DurationMs, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Object = "conversion"
	rec.Status = api.ConversionStatus(status)
	return &rec, nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
