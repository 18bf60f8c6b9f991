package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	sqlCreateTable = `
        CREATE TABLE IF NOT EXISTS custom_selectors (
            site TEXT PRIMARY KEY,
            overlay JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        );
    `
	sqlSelectOverlay = `SELECT overlay FROM custom_selectors WHERE site = $1;`
	sqlUpsertOverlay = `
        INSERT INTO custom_selectors (site, overlay, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (site) DO UPDATE SET
            overlay = EXCLUDED.overlay,
            updated_at = EXCLUDED.updated_at;
    `
	sqlDeleteOverlay = `DELETE FROM custom_selectors WHERE site = $1;`
	sqlListSites     = `SELECT site FROM custom_selectors ORDER BY site ASC;`
)

// PostgresStore keeps one JSONB overlay row per site.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

// NewPostgresStore creates a store and verifies the connection.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{
		pool: pool,
		log:  logger.Named("store"),
		now:  time.Now,
	}, nil
}

// EnsureSchema creates the overlay table when it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateTable); err != nil {
		return fmt.Errorf("failed to create custom_selectors table: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCustomSelectors(ctx context.Context, site schemas.Site) (*schemas.SelectorSet, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, sqlSelectOverlay, string(site)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query custom selectors for %s: %w", site, err)
	}
	return decodeOverlay(raw)
}

// SaveCustomSelectors upserts the overlay of a site inside a transaction.
func (s *PostgresStore) SaveCustomSelectors(ctx context.Context, site schemas.Site, set schemas.SelectorSet) error {
	overlay, err := encodeOverlay(set)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlUpsertOverlay, string(site), overlay, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert custom selectors for %s: %w", site, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Custom selectors saved.", zap.String("site", string(site)))
	return nil
}

func (s *PostgresStore) DeleteCustomSelectors(ctx context.Context, site schemas.Site) error {
	tag, err := s.pool.Exec(ctx, sqlDeleteOverlay, string(site))
	if err != nil {
		return fmt.Errorf("failed to delete custom selectors for %s: %w", site, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListSites(ctx context.Context) ([]schemas.Site, error) {
	rows, err := s.pool.Query(ctx, sqlListSites)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var sites []schemas.Site
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site row: %w", err)
		}
		sites = append(sites, schemas.Site(site))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return sites, nil
}
