package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/trivia/go/internal/archive"
	"github.com/mcdev12/trivia/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
)

// Database bundles both Postgres handles: pgxpool for the question store
// and a lib/pq *sql.DB for the transactional archive.
type Database struct {
	Pool *pgxpool.Pool
	DB   *sql.DB
}

func setupDatabase(ctx context.Context, cfg dbconfig.Config) (*Database, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db, err := archive.Open(ctx, cfg.DSN())
	if err != nil {
		pool.Close()
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxConns)

	log.Info().
		Str("dsn", cfg.Redacted()).
		Int("max_conns", cfg.MaxConns).
		Msg("connected to database")
	return &Database{Pool: pool, DB: db}, nil
}

func (d *Database) Close() {
	d.Pool.Close()
	if err := d.DB.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
	}
}
