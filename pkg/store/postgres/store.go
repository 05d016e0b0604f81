// Package postgres persists finished tutoring sessions and their
// transcripts. It is the only layer that touches the database; the
// session orchestrator hands it a final snapshot and never reads back.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/vt-labs/tutor-live/pkg/core/session"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store writes session records to Postgres. It implements session.Recorder.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to the database, runs pending migrations, and returns a
// ready store. The caller owns the pool lifetime via Close.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrate(pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("postgres store ready")
	return &Store{pool: pool, logger: logger}, nil
}

// migrate runs goose against the pool's config through the stdlib driver.
// goose needs database/sql, so we open a short-lived connection for it.
func migrate(pool *pgxpool.Pool) error {
	db := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RecordSession upserts the session row and replaces its transcript items
// in one transaction. Re-recording the same session is safe: End is
// idempotent upstream, and a retry after a partial failure must not
// duplicate items.
func (s *Store) RecordSession(ctx context.Context, rec session.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var endedAt *time.Time
	if !rec.EndedAt.IsZero() {
		endedAt = &rec.EndedAt
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO tutor_sessions
			(id, student_id, topic, subject, grade, status, started_at, ended_at, discarded_items, error_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			ended_at = EXCLUDED.ended_at,
			discarded_items = EXCLUDED.discarded_items,
			error_count = EXCLUDED.error_count`,
		rec.SessionID, rec.StudentID, rec.Topic, rec.Subject, rec.Grade,
		string(rec.Status), rec.StartedAt, endedAt, rec.DiscardedItems, rec.ErrorCount,
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", rec.SessionID, err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM tutor_transcript_items WHERE session_id = $1`,
		rec.SessionID,
	); err != nil {
		return fmt.Errorf("clear transcript for %s: %w", rec.SessionID, err)
	}

	if len(rec.Items) > 0 {
		batch := &pgx.Batch{}
		for i, item := range rec.Items {
			words, err := json.Marshal(item.Words)
			if err != nil {
				return fmt.Errorf("encode word timings for %s: %w", rec.SessionID, err)
			}
			fragments, err := json.Marshal(item.Fragments)
			if err != nil {
				return fmt.Errorf("encode fragments for %s: %w", rec.SessionID, err)
			}
			batch.Queue(`
				INSERT INTO tutor_transcript_items
					(session_id, position, item_id, content, kind, speaker, confidence, created_at, words, fragments)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				rec.SessionID, i, item.ID, item.Content, string(item.Kind),
				string(item.Speaker), item.Confidence, item.Timestamp,
				words, fragments,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for range rec.Items {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert transcript item for %s: %w", rec.SessionID, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch for %s: %w", rec.SessionID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", rec.SessionID, err)
	}

	s.logger.Info("session recorded",
		"session_id", rec.SessionID,
		"items", len(rec.Items),
		"status", rec.Status,
	)
	return nil
}

var _ session.Recorder = (*Store)(nil)
