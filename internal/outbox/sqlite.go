// Package outbox keeps threshold writes the backend could not take, so they
// can be delivered once it is reachable again.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/speedwagon-io/threshold-console/internal/model"
	"github.com/speedwagon-io/threshold-console/internal/threshold"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Outbox interface {
	Store(ctx context.Context, m *model.Mutation) error
	GetPending(ctx context.Context, limit int) ([]*model.Mutation, error)
	MarkSent(ctx context.Context, ids []string) error
	Cleanup(ctx context.Context, maxAge time.Duration) error
	Count(ctx context.Context) (int64, error)
	DeadCount(ctx context.Context) (int64, error)
	Close() error
}

type SQLiteOutbox struct {
	log *slog.Logger
	db  *sql.DB
}

func NewSQLiteOutbox(log *slog.Logger, dbPath string) (*SQLiteOutbox, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create outbox directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	o := NewWithDB(log, db)
	if err := o.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return o, nil
}

// NewWithDB wraps an already opened database without migrating it.
func NewWithDB(log *slog.Logger, db *sql.DB) *SQLiteOutbox {
	return &SQLiteOutbox{
		log: log,
		db:  db,
	}
}

func (o *SQLiteOutbox) migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS outbox (
			id TEXT PRIMARY KEY,
			op TEXT NOT NULL,
			threshold_id INTEGER NOT NULL DEFAULT 0,
			payload_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			seq INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_outbox_seq ON outbox(seq);
		CREATE INDEX IF NOT EXISTS idx_outbox_created_at ON outbox(created_at);

		CREATE TABLE IF NOT EXISTS outbox_dead (
			id TEXT PRIMARY KEY,
			op TEXT NOT NULL,
			threshold_id INTEGER NOT NULL DEFAULT 0,
			payload_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			reason TEXT NOT NULL,
			failed_at TEXT NOT NULL
		);
	`
	_, err := o.db.Exec(query)
	return err
}

func (o *SQLiteOutbox) Store(ctx context.Context, m *model.Mutation) error {
	payloadJSON, err := json.Marshal(m.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	// seq keeps insertion order when several writes share a timestamp.
	query := `
		INSERT INTO outbox (id, op, threshold_id, payload_json, created_at, seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM outbox))
	`

	_, err = o.db.ExecContext(ctx, query,
		m.ID,
		string(m.Op),
		m.ThresholdID,
		string(payloadJSON),
		m.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to store mutation: %w", err)
	}

	o.log.Debug("mutation stored in outbox",
		slog.String("id", m.ID),
		slog.String("op", string(m.Op)),
	)
	return nil
}

// GetPending returns up to limit mutations in queue order. Rows that no longer
// decode are moved to outbox_dead and the batch is cut before them, so the
// caller never sees a later write ahead of an earlier one.
func (o *SQLiteOutbox) GetPending(ctx context.Context, limit int) ([]*model.Mutation, error) {
	query := `
		SELECT id, op, threshold_id, payload_json, created_at
		FROM outbox
		ORDER BY seq ASC
		LIMIT ?
	`

	rows, err := o.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending mutations: %w", err)
	}
	defer rows.Close()

	var (
		mutations      []*model.Mutation
		deadID, reason string
	)
	for rows.Next() {
		var (
			id, op, payloadJSON, createdAtStr string
			thresholdID                       int64
		)

		if err := rows.Scan(&id, &op, &thresholdID, &payloadJSON, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan pending mutation: %w", err)
		}

		createdAt, err := time.Parse(timeLayout, createdAtStr)
		if err != nil {
			deadID, reason = id, fmt.Sprintf("bad created_at: %v", err)
			break
		}

		var payload threshold.Record
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			deadID, reason = id, fmt.Sprintf("bad payload: %v", err)
			break
		}

		mutations = append(mutations, &model.Mutation{
			ID:          id,
			Op:          model.Op(op),
			ThresholdID: thresholdID,
			Payload:     payload,
			CreatedAt:   createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending mutations: %w", err)
	}
	rows.Close()

	if deadID != "" {
		if err := o.bury(ctx, deadID, reason); err != nil {
			return nil, err
		}
	}

	return mutations, nil
}

// bury moves an undecodable mutation out of the queue.
func (o *SQLiteOutbox) bury(ctx context.Context, id, reason string) error {
	o.log.Error("moving undecodable mutation to outbox_dead",
		slog.String("id", id),
		slog.String("reason", reason),
	)

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO outbox_dead (id, op, threshold_id, payload_json, created_at, reason, failed_at)
		SELECT id, op, threshold_id, payload_json, created_at, ?, ?
		FROM outbox WHERE id = ?
	`, reason, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("failed to copy mutation %s to outbox_dead: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete mutation %s: %w", id, err)
	}

	return tx.Commit()
}

// DeadCount returns how many mutations were moved out of the queue as undecodable.
func (o *SQLiteOutbox) DeadCount(ctx context.Context) (int64, error) {
	var count int64
	if err := o.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox_dead`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count dead mutations: %w", err)
	}
	return count, nil
}

func (o *SQLiteOutbox) MarkSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM outbox WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to delete mutation %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	o.log.Debug("marked mutations as sent", slog.Int("count", len(ids)))
	return nil
}

func (o *SQLiteOutbox) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().UTC().Add(-maxAge).Format(timeLayout)

	result, err := o.db.ExecContext(ctx, "DELETE FROM outbox WHERE created_at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup old mutations: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		o.log.Warn("dropped expired outbox entries", slog.Int64("deleted", deleted))
	}

	return nil
}

func (o *SQLiteOutbox) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := o.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outbox").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count mutations: %w", err)
	}
	return count, nil
}

func (o *SQLiteOutbox) Close() error {
	return o.db.Close()
}
