package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// LIDMapping pairs a hidden-identity user part with its phone number digits.
type LIDMapping struct {
	LID string
	PN  string
}

// SyncLIDMap merges mappings into lid_map. Known mappings are updated in
// place; mappings not in the batch are kept.
func (db *DB) SyncLIDMap(mappings []LIDMapping) error {
	if len(mappings) == 0 {
		return nil
	}
	return db.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO lid_map (lid, pn) VALUES (?, ?)
			ON CONFLICT(lid) DO UPDATE SET pn = excluded.pn`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		for _, m := range mappings {
			lid := strings.TrimSuffix(m.LID, "@lid")
			pn := strings.TrimSuffix(m.PN, "@s.whatsapp.net")
			if lid == "" || pn == "" {
				continue
			}
			if _, err := stmt.Exec(lid, pn); err != nil {
				return fmt.Errorf("map lid %q: %w", lid, err)
			}
		}
		return nil
	})
}

// PhoneForLID returns the phone number JID mapped to a LID JID, or "".
func (db *DB) PhoneForLID(lidJID string) (string, error) {
	var pn string
	err := db.QueryRow(`SELECT pn FROM lid_map WHERE lid = ?`, strings.TrimSuffix(lidJID, "@lid")).Scan(&pn)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return pn + "@s.whatsapp.net", nil
}

// lidSteps fold every mapped LID chat, message and contact onto its phone
// number JID. They run in order inside one transaction.
var lidSteps = []struct {
	name string
	sql  string
}{
	{"ensure phone chats", `
		INSERT INTO chats (jid, name, is_group, unread_count, last_message_at, last_message_preview, updated_at)
		SELECT lm.pn || '@s.whatsapp.net', c.name, 0, c.unread_count, c.last_message_at, c.last_message_preview, c.updated_at
		FROM chats c
		JOIN lid_map lm ON c.jid = lm.lid || '@lid'
		WHERE true
		ON CONFLICT(jid) DO UPDATE SET
			last_message_preview = CASE WHEN excluded.last_message_at > chats.last_message_at THEN excluded.last_message_preview ELSE chats.last_message_preview END,
			last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
			name = CASE WHEN chats.name = '' THEN excluded.name ELSE chats.name END,
			updated_at = excluded.updated_at`},
	// Messages already present under the phone JID win over their LID copies.
	{"drop duplicate messages", `
		DELETE FROM messages
		WHERE chat_jid IN (SELECT lid || '@lid' FROM lid_map)
		  AND EXISTS (
			SELECT 1 FROM messages p JOIN lid_map lm ON p.chat_jid = lm.pn || '@s.whatsapp.net'
			WHERE messages.chat_jid = lm.lid || '@lid' AND p.msg_id = messages.msg_id)`},
	{"move messages", `
		UPDATE messages SET
			chat_jid = (SELECT lm.pn || '@s.whatsapp.net' FROM lid_map lm WHERE messages.chat_jid = lm.lid || '@lid')
		WHERE chat_jid IN (SELECT lid || '@lid' FROM lid_map)`},
	// Group messages keep their chat but get a phone number sender.
	{"rewrite senders", `
		UPDATE messages SET
			sender_jid = (SELECT lm.pn || '@s.whatsapp.net' FROM lid_map lm WHERE messages.sender_jid = lm.lid || '@lid')
		WHERE sender_jid IN (SELECT lid || '@lid' FROM lid_map)`},
	{"move contacts", `
		INSERT INTO contacts (jid, name, push_name, updated_at)
		SELECT lm.pn || '@s.whatsapp.net', ct.name, ct.push_name, ct.updated_at
		FROM contacts ct
		JOIN lid_map lm ON ct.jid = lm.lid || '@lid'
		WHERE true
		ON CONFLICT(jid) DO UPDATE SET
			name = CASE WHEN contacts.name = '' THEN excluded.name ELSE contacts.name END,
			push_name = CASE WHEN contacts.push_name = '' THEN excluded.push_name ELSE contacts.push_name END,
			updated_at = excluded.updated_at`},
	{"drop lid contacts", `DELETE FROM contacts WHERE jid IN (SELECT lid || '@lid' FROM lid_map)`},
	{"repoint outbox", `
		UPDATE outbox SET
			chat_jid = (SELECT lm.pn || '@s.whatsapp.net' FROM lid_map lm WHERE outbox.chat_jid = lm.lid || '@lid')
		WHERE chat_jid IN (SELECT lid || '@lid' FROM lid_map)`},
}

// ReconcileLIDs merges every mapped LID chat into its phone number chat and
// returns how many LID chats were removed.
func (db *DB) ReconcileLIDs() (int64, error) {
	var merged int64
	err := db.inTx(func(tx *sql.Tx) error {
		for _, step := range lidSteps {
			if _, err := tx.Exec(step.sql); err != nil {
				return fmt.Errorf("%s: %w", step.name, err)
			}
		}
		res, err := tx.Exec(`DELETE FROM chats WHERE jid IN (SELECT lid || '@lid' FROM lid_map)`)
		if err != nil {
			return fmt.Errorf("drop lid chats: %w", err)
		}
		merged, err = res.RowsAffected()
		return err
	})
	return merged, err
}
