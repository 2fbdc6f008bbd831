package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ReopenWindow bounds how far back a closed direct-chat ticket is reused.
const ReopenWindow = 2 * time.Hour

// FindOrCreateTicket returns the ticket that an inbound message for contact
// belongs to, setting its unread counter. A group message is attributed to
// the group contact. Lookup order: an open or pending ticket; for groups the
// most recent ticket of any status; for direct chats a ticket updated within
// ReopenWindow; otherwise a new pending ticket. Reused tickets return to
// pending with no operator.
func (db *DB) FindOrCreateTicket(ctx context.Context, contact *Contact, sessionID int64, unread int, group *Contact) (*Ticket, error) {
	owner := contact
	if group != nil {
		owner = group
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	id, err := findTicketID(ctx, tx, `
		SELECT id FROM tickets
		WHERE contact_id = ? AND session_id = ? AND status IN ('open', 'pending')
		ORDER BY updated_at DESC LIMIT 1`, owner.ID, sessionID)
	if err != nil {
		return nil, err
	}
	if id != 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tickets SET unread_messages = ? WHERE id = ?`, unread, id); err != nil {
			return nil, fmt.Errorf("update unread: %w", err)
		}
		return db.commitAndLoad(ctx, tx, id)
	}

	if group != nil {
		id, err = findTicketID(ctx, tx, `
			SELECT id FROM tickets
			WHERE contact_id = ? AND session_id = ?
			ORDER BY updated_at DESC LIMIT 1`, owner.ID, sessionID)
	} else {
		id, err = findTicketID(ctx, tx, `
			SELECT id FROM tickets
			WHERE contact_id = ? AND session_id = ? AND updated_at >= ?
			ORDER BY updated_at DESC LIMIT 1`, owner.ID, sessionID, now-ReopenWindow.Milliseconds())
	}
	if err != nil {
		return nil, err
	}
	if id != 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE tickets SET status = ?, user_id = NULL, unread_messages = ?, updated_at = ?
			WHERE id = ?`, StatusPending, unread, now, id); err != nil {
			return nil, fmt.Errorf("reopen ticket: %w", err)
		}
		return db.commitAndLoad(ctx, tx, id)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO tickets (contact_id, session_id, status, unread_messages, is_group, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		owner.ID, sessionID, StatusPending, unread, group != nil, now, now)
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.commitAndLoad(ctx, tx, id)
}

func findTicketID(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find ticket: %w", err)
	}
	return id, nil
}

func (db *DB) commitAndLoad(ctx context.Context, tx *sql.Tx, id int64) (*Ticket, error) {
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return db.GetTicket(ctx, id)
}

// GetTicket returns a ticket with its contact and queue, or nil if absent.
func (db *DB) GetTicket(ctx context.Context, id int64) (*Ticket, error) {
	var t Ticket
	var queueID, userID sql.NullInt64
	err := db.QueryRowContext(ctx, `
		SELECT id, contact_id, session_id, queue_id, user_id, status, last_message,
			unread_messages, is_group, created_at, updated_at
		FROM tickets WHERE id = ?`, id).
		Scan(&t.ID, &t.ContactID, &t.SessionID, &queueID, &userID, &t.Status, &t.LastMessage,
			&t.UnreadMessages, &t.IsGroup, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	if queueID.Valid {
		t.QueueID = &queueID.Int64
		if t.Queue, err = db.getQueue(ctx, queueID.Int64); err != nil {
			return nil, fmt.Errorf("get ticket queue: %w", err)
		}
	}
	if userID.Valid {
		t.UserID = &userID.Int64
	}
	if t.Contact, err = db.GetContact(ctx, t.ContactID); err != nil {
		return nil, fmt.Errorf("get ticket contact: %w", err)
	}
	return &t, nil
}

// SetTicketQueue assigns queueID to the ticket and returns the updated record.
func (db *DB) SetTicketQueue(ctx context.Context, ticketID, queueID int64) (*Ticket, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE tickets SET queue_id = ?, updated_at = ? WHERE id = ?`,
		queueID, time.Now().UnixMilli(), ticketID)
	if err != nil {
		return nil, fmt.Errorf("set ticket queue: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("set ticket queue: ticket %d not found", ticketID)
	}
	return db.GetTicket(ctx, ticketID)
}

// SetTicketUser records the operator handling the ticket and opens it.
func (db *DB) SetTicketUser(ctx context.Context, ticketID, userID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE tickets SET user_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		userID, StatusOpen, time.Now().UnixMilli(), ticketID)
	return err
}

// CloseTicket marks the ticket closed.
func (db *DB) CloseTicket(ctx context.Context, ticketID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE tickets SET status = ?, updated_at = ? WHERE id = ?`,
		StatusClosed, time.Now().UnixMilli(), ticketID)
	return err
}

// UpdateLastMessage sets the ticket's preview text.
func (db *DB) UpdateLastMessage(ctx context.Context, ticketID int64, body string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE tickets SET last_message = ?, updated_at = ? WHERE id = ?`,
		body, time.Now().UnixMilli(), ticketID)
	return err
}
