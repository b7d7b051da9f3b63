package postgres

import (
	"context"
	"errors"
	"fmt"

	"tutor-ledger/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// applicationName tags ledger sessions in pg_stat_activity.
const applicationName = "tutor-ledger"

// NewPool opens the ledger's PostgreSQL pool. Every session runs in UTC so
// requested_at and last_synced_at compare cleanly across hosts.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	poolCfg.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := NewHealthCheck(pool).Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("dbname", cfg.DBName).
		Int32("max_conns", cfg.MaxConns).
		Dur("lock_timeout", cfg.LockTimeout).
		Msg("PostgreSQL connection pool established")

	return pool, nil
}

// ErrSchemaNotMigrated means the database answers but the payout uniqueness
// index is missing, so concurrent runs could open two requests per actor.
var ErrSchemaNotMigrated = errors.New("payout schema not migrated")

// HealthCheck implements ports.HealthChecker for PostgreSQL.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping checks connectivity and that the one-open-request index exists.
func (h *HealthCheck) Ping(ctx context.Context) error {
	var present bool
	err := h.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, openPayoutIndex).Scan(&present)
	if err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	if !present {
		return ErrSchemaNotMigrated
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "postgres"
}
