package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateMessage upserts a message on its provider id and returns it with
// contact and quoted message loaded. A repeated write keeps the stored ack.
func (db *DB) CreateMessage(ctx context.Context, m *Message) (*Message, error) {
	now := time.Now().UnixMilli()
	created := m.CreatedAt
	if created == 0 {
		created = now
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO messages (id, ticket_id, contact_id, body, from_me, read, media_url, media_type,
			quoted_msg_id, ack, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			read = excluded.read,
			media_url = excluded.media_url,
			media_type = excluded.media_type,
			quoted_msg_id = excluded.quoted_msg_id,
			updated_at = excluded.updated_at`,
		m.ID, m.TicketID, m.ContactID, m.Body, m.FromMe, m.Read, m.MediaURL, m.MediaType,
		m.QuotedMsgID, m.Ack, created, now)
	if err != nil {
		return nil, fmt.Errorf("upsert message: %w", err)
	}
	msg, err := db.FindMessage(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("upsert message: %s vanished", m.ID)
	}
	return msg, nil
}

// FindMessage returns a message with its contact and quoted message (and
// the quoted message's contact), or nil if absent.
func (db *DB) FindMessage(ctx context.Context, id string) (*Message, error) {
	msg, err := db.getMessage(ctx, id)
	if err != nil || msg == nil {
		return msg, err
	}
	if msg.QuotedMsgID != nil {
		if msg.QuotedMsg, err = db.getMessage(ctx, *msg.QuotedMsgID); err != nil {
			return nil, fmt.Errorf("get quoted message: %w", err)
		}
	}
	return msg, nil
}

func (db *DB) getMessage(ctx context.Context, id string) (*Message, error) {
	var m Message
	var contactID sql.NullInt64
	var quoted sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, ticket_id, contact_id, body, from_me, read, media_url, media_type,
			quoted_msg_id, ack, created_at, updated_at
		FROM messages WHERE id = ?`, id).
		Scan(&m.ID, &m.TicketID, &contactID, &m.Body, &m.FromMe, &m.Read, &m.MediaURL, &m.MediaType,
			&quoted, &m.Ack, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if quoted.Valid {
		m.QuotedMsgID = &quoted.String
	}
	if contactID.Valid {
		m.ContactID = &contactID.Int64
		if m.Contact, err = db.GetContact(ctx, contactID.Int64); err != nil {
			return nil, fmt.Errorf("get message contact: %w", err)
		}
	}
	return &m, nil
}

// ackDelivered is the first level at which a send can no longer fail.
const ackDelivered = 2

// ApplyMessageAck stores a delivery level. A repeated level is applied
// again; a lower non-negative level is not. A negative (error) level
// replaces anything below delivered. The returned flag is false when no
// message has the id or the level was refused.
func (db *DB) ApplyMessageAck(ctx context.Context, id string, ack int) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE messages SET ack = ?, updated_at = ?
		WHERE id = ? AND ((? >= 0 AND ack <= ?) OR (? < 0 AND ack < ?))`,
		ack, time.Now().UnixMilli(), id, ack, ack, ack, ackDelivered)
	if err != nil {
		return false, fmt.Errorf("update ack: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListTicketMessages returns a ticket's messages oldest first.
func (db *DB) ListTicketMessages(ctx context.Context, ticketID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id FROM messages WHERE ticket_id = ?
		ORDER BY created_at ASC, id ASC LIMIT ?`, ticketID, limit)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(ids))
	for _, id := range ids {
		m, err := db.getMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		if m != nil {
			msgs = append(msgs, *m)
		}
	}
	return msgs, nil
}
