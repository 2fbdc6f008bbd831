package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RegisterSession creates the session record for name or refreshes its
// greeting.
func (db *DB) RegisterSession(ctx context.Context, name, greeting string) (*Session, error) {
	now := time.Now().UnixMilli()
	var s Session
	err := db.QueryRowContext(ctx, `
		INSERT INTO sessions (name, greeting_message, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			greeting_message = excluded.greeting_message,
			updated_at = excluded.updated_at
		RETURNING id, name, greeting_message`,
		name, greeting, now, now).Scan(&s.ID, &s.Name, &s.GreetingMessage)
	if err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}
	return &s, nil
}

// GetSession returns a session by id, or nil if absent.
func (db *DB) GetSession(ctx context.Context, id int64) (*Session, error) {
	var s Session
	err := db.QueryRowContext(ctx,
		`SELECT id, name, greeting_message FROM sessions WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.GreetingMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// QueueSpec is the configured shape of a queue.
type QueueSpec struct {
	Name            string
	GreetingMessage string
}

// SyncQueues makes the session's queues match specs in order. Queues missing
// from specs are removed; tickets holding them fall back to no queue.
func (db *DB) SyncQueues(ctx context.Context, sessionID int64, specs []QueueSpec) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	keep := make(map[string]bool, len(specs))
	for i, q := range specs {
		keep[q.Name] = true
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO queues (session_id, name, greeting_message, position)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(session_id, name) DO UPDATE SET
				greeting_message = excluded.greeting_message,
				position = excluded.position`,
			sessionID, q.Name, q.GreetingMessage, i+1); err != nil {
			return fmt.Errorf("upsert queue %q: %w", q.Name, err)
		}
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, name FROM queues WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("list queues: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			_ = rows.Close()
			return err
		}
		if !keep[name] {
			stale = append(stale, id)
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM queues WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete queue %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// ListQueues returns the session's queues in menu order.
func (db *DB) ListQueues(ctx context.Context, sessionID int64) ([]Queue, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, session_id, name, greeting_message, position
		FROM queues WHERE session_id = ?
		ORDER BY position ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var queues []Queue
	for rows.Next() {
		var q Queue
		if err := rows.Scan(&q.ID, &q.SessionID, &q.Name, &q.GreetingMessage, &q.Position); err != nil {
			return nil, err
		}
		queues = append(queues, q)
	}
	return queues, rows.Err()
}

func (db *DB) getQueue(ctx context.Context, id int64) (*Queue, error) {
	var q Queue
	err := db.QueryRowContext(ctx, `
		SELECT id, session_id, name, greeting_message, position
		FROM queues WHERE id = ?`, id).
		Scan(&q.ID, &q.SessionID, &q.Name, &q.GreetingMessage, &q.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}
