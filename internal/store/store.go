package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when deleting an overlay that does not exist.
var ErrNotFound = errors.New("store: custom selectors not found")

// Repository is the custom selector overlay store. GetCustomSelectors returns
// (nil, nil) for a site without an overlay.
type Repository = schemas.SelectorRepository

// Driver names accepted by Open.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Open builds the repository selected by cfg. The returned close function
// releases any underlying connection pool and is never nil.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Repository, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", DriverFile:
		fs, err := NewFileStore(cfg.Path, logger)
		if err != nil {
			return nil, func() {}, err
		}
		return fs, func() {}, nil
	case DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to create connection pool: %w", err)
		}
		ps, err := NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		if cfg.EnsureSchema {
			if err := ps.EnsureSchema(ctx); err != nil {
				pool.Close()
				return nil, func() {}, err
			}
		}
		return ps, pool.Close, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func encodeOverlay(set schemas.SelectorSet) ([]byte, error) {
	raw, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("failed to encode selector overlay: %w", err)
	}
	return raw, nil
}

func decodeOverlay(raw []byte) (*schemas.SelectorSet, error) {
	var set schemas.SelectorSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("failed to decode selector overlay: %w", err)
	}
	return &set, nil
}
