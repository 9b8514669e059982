// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"coaching-workers/internal/common/config"
)

type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Schema is applied idempotently at startup.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS followup_diagnoses (
		followup_id   TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		followup_type TEXT NOT NULL,
		diagnosis     JSONB NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS followup_schedules (
		id                        UUID PRIMARY KEY,
		user_id                   TEXT NOT NULL,
		followup_id               TEXT NOT NULL,
		progress_level            INT NOT NULL,
		recommended_interval_days INT NOT NULL,
		next_followup_date        TIMESTAMPTZ NOT NULL,
		status                    TEXT NOT NULL DEFAULT 'scheduled',
		created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_followup_schedules_followup ON followup_schedules (followup_id, status)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_followup_schedules_open ON followup_schedules (followup_id) WHERE status = 'scheduled'`,
}

// Migrate applies Schema inside a single transaction.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range Schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return tx.Commit()
}
