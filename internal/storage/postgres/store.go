package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"lpAnalytics/internal/storage"
	"lpAnalytics/internal/storage/migrations"
)

var (
	_ storage.PoolStore         = (*Store)(nil)
	_ storage.SyncEventStore    = (*Store)(nil)
	_ storage.CandidateStore    = (*Store)(nil)
	_ storage.NativePriceStore  = (*Store)(nil)
	_ storage.CurrencyStore     = (*Store)(nil)
	_ storage.PriceHistoryStore = (*Store)(nil)
	_ storage.BlockHourStore    = (*Store)(nil)
	_ storage.HourlyStore       = (*Store)(nil)
	_ storage.SummaryStore      = (*Store)(nil)
	_ storage.StateStore        = (*Store)(nil)
)

// Options tunes the connection pool.
type Options struct {
	MaxConns int32
	MinConns int32
}

// Store provides Postgres persistence for the analytics tables.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate applies the embedded schema.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	return migrations.RunPostgresMigrations(ctx, s.pool)
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM analytics_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analytics_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

// parseNumeric converts a NUMERIC rendered as text into an integer.
func parseNumeric(text *string) (*big.Int, error) {
	if text == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*text)
	if err != nil {
		return nil, fmt.Errorf("parse numeric %q: %w", *text, err)
	}
	return d.BigInt(), nil
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
