package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const contactColumns = `id, name, number, profile_pic_url, is_group, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (*Contact, error) {
	var c Contact
	if err := row.Scan(&c.ID, &c.Name, &c.Number, &c.ProfilePicURL, &c.IsGroup, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertContact finds a contact by number or creates it. An existing record
// keeps its name and gets the new profile picture. The returned flag reports
// whether the row was created.
func (db *DB) UpsertContact(ctx context.Context, c *Contact) (*Contact, bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	existing, err := scanContact(tx.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE number = ?`, c.Number))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `
			INSERT INTO contacts (name, number, profile_pic_url, is_group, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.Name, c.Number, c.ProfilePicURL, c.IsGroup, now, now)
		if err != nil {
			return nil, false, fmt.Errorf("insert contact: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("commit: %w", err)
		}
		created := *c
		created.ID = id
		created.CreatedAt = now
		created.UpdatedAt = now
		return &created, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("select contact: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE contacts SET profile_pic_url = ?, updated_at = ? WHERE id = ?`,
		c.ProfilePicURL, now, existing.ID); err != nil {
		return nil, false, fmt.Errorf("update contact: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	existing.ProfilePicURL = c.ProfilePicURL
	existing.UpdatedAt = now
	return existing, false, nil
}

// GetContact returns a contact by id, or nil if absent.
func (db *DB) GetContact(ctx context.Context, id int64) (*Contact, error) {
	c, err := scanContact(db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// GetContactByNumber returns a contact by number, or nil if absent.
func (db *DB) GetContactByNumber(ctx context.Context, number string) (*Contact, error) {
	c, err := scanContact(db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE number = ?`, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}
