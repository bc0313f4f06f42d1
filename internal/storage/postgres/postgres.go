// Package postgres persists the NPC definition catalog in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/npcintent/internal/config"
)

// ApplicationName is reported to PostgreSQL for every pooled connection.
const ApplicationName = "npcintent"

// definitionsTable is the table created by migrations/000001.
const definitionsTable = "npc_definitions"

// ErrSchemaMissing is returned by RequireSchema when migrations have not run.
var ErrSchemaMissing = errors.New("npc definition schema missing; run cmd/migrate")

// Pool is the catalog's connection pool.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects to the definition catalog database.
//
// Connections are tagged with ApplicationName and checked in the background
// every minute; the first connection is verified before returning.
//
// Precondition: cfg must pass config validation for the postgres content source.
// Postcondition: Returns a connected Pool or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database dsn for %s@%s: %w", cfg.User, cfg.Host, err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = time.Minute
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating catalog pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging catalog database %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Pool{pool: pool}, nil
}

// RequireSchema verifies that the npc_definitions table exists.
//
// Postcondition: Returns ErrSchemaMissing if migrations have not been applied.
func (p *Pool) RequireSchema(ctx context.Context) error {
	var exists bool
	err := p.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, definitionsTable).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking %s schema: %w", definitionsTable, err)
	}
	if !exists {
		return ErrSchemaMissing
	}
	return nil
}

// Health pings the database, giving up after timeout.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("catalog health check: %w", err)
	}
	return nil
}

// Close releases all connections. The Pool is unusable afterwards.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pgxpool.Pool for repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
