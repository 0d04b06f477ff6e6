package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/DevDonal19/imparablesmujeres/internal/config"
)

// ErrNoPostgresDSN is returned when the postgres credential store is selected
// without a connection string.
var ErrNoPostgresDSN = errors.New("persistence: POSTGRES_DSN is required for the postgres credential store")

// Postgres is the credential store's pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects the pool and verifies it with a ping.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	poolCfg, err := postgresPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info("credential store connected",
		zap.String("driver", "postgres"),
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)
	return &Postgres{pool: pool}, nil
}

// postgresPoolConfig parses the DSN and overlays the pool limits that are set.
func postgresPoolConfig(cfg config.PostgresConfig) (*pgxpool.Config, error) {
	if cfg.DSN == "" {
		return nil, ErrNoPostgresDSN
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && cfg.MinConns <= poolCfg.MaxConns {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}
	return poolCfg, nil
}

// Pool returns the pgx pool backing the user repository.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// Ping reports whether the credential store is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases every pooled connection.
func (p *Postgres) Close() {
	p.pool.Close()
}
