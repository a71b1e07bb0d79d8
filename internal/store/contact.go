package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matheus3301/wamcp/internal/query"
)

const upsertContactSQL = `
	INSERT INTO contacts (jid, name, push_name, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(jid) DO UPDATE SET
		name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
		push_name = CASE WHEN excluded.push_name != '' THEN excluded.push_name ELSE contacts.push_name END,
		updated_at = excluded.updated_at`

// UpsertContact inserts or updates a contact. Empty names never erase known ones.
func (db *DB) UpsertContact(c *Contact) error {
	_, err := db.Exec(upsertContactSQL, c.JID, c.Name, c.PushName, time.Now().UnixMilli())
	return err
}

// BulkUpsertContacts inserts or updates multiple contacts in a single transaction.
func (db *DB) BulkUpsertContacts(contacts []Contact) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, c := range contacts {
		if _, err := tx.Exec(upsertContactSQL, c.JID, c.Name, c.PushName, now); err != nil {
			return fmt.Errorf("upsert contact %q: %w", c.JID, err)
		}
	}
	return tx.Commit()
}

// GetContact returns a contact by JID, or nil.
func (db *DB) GetContact(jid string) (*Contact, error) {
	var c Contact
	err := db.QueryRow(`SELECT jid, name, push_name FROM contacts WHERE jid = ?`, jid).
		Scan(&c.JID, &c.Name, &c.PushName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SearchContacts matches text against contact names, push names and JIDs.
// Direct chats with no contact row are included so unsaved numbers are
// searchable too. Groups and LIDs are excluded. Ordered by name, then JID.
func (db *DB) SearchContacts(ctx context.Context, text string, limit int) ([]query.Contact, error) {
	pattern := likePattern(text)
	rows, err := db.QueryContext(ctx, `
		SELECT jid, name, push_name, has_chat FROM (
			SELECT ct.jid AS jid, ct.name AS name, ct.push_name AS push_name,
				EXISTS (SELECT 1 FROM chats c WHERE c.jid = ct.jid) AS has_chat
			FROM contacts ct
			WHERE ct.jid LIKE '%@s.whatsapp.net'
			  AND (ct.name LIKE ? ESCAPE '\' OR ct.push_name LIKE ? ESCAPE '\' OR ct.jid LIKE ? ESCAPE '\')
			UNION ALL
			SELECT c.jid, c.name, '', 1
			FROM chats c
			WHERE c.jid LIKE '%@s.whatsapp.net'
			  AND NOT EXISTS (SELECT 1 FROM contacts ct WHERE ct.jid = c.jid)
			  AND (c.name LIKE ? ESCAPE '\' OR c.jid LIKE ? ESCAPE '\')
		)
		ORDER BY COALESCE(NULLIF(name,''), NULLIF(push_name,''), jid) COLLATE NOCASE, jid
		LIMIT ?`, pattern, pattern, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	contacts := []query.Contact{}
	for rows.Next() {
		var (
			c       query.Contact
			hasChat bool
		)
		if err := rows.Scan(&c.JID, &c.Name, &c.PushName, &hasChat); err != nil {
			return nil, err
		}
		c.PhoneNumber = query.PhoneOf(c.JID)
		if c.Name == "" {
			c.Name = c.PushName
		}
		if hasChat {
			c.ChatJIDs = []string{c.JID}
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// ChatCount returns the total number of chats.
func (db *DB) ChatCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM chats`).Scan(&count)
	return count, err
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
