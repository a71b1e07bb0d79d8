package store

import (
	"database/sql"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/matheus3301/wamcp/internal/query"
)

// previewLen caps the last_message_preview stored with a chat.
const previewLen = 100

// Preview cuts body to the chat preview length without splitting a rune.
func Preview(body string) string {
	if len(body) <= previewLen {
		return body
	}
	cut := previewLen
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}

// touchChatSQL records activity on a chat, creating it if needed. Unlike
// upsertChatSQL it keeps the stored name and unread count.
const touchChatSQL = `
	INSERT INTO chats (jid, is_group, last_message_at, last_message_preview, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(jid) DO UPDATE SET
		last_message_preview = CASE WHEN excluded.last_message_at >= chats.last_message_at THEN excluded.last_message_preview ELSE chats.last_message_preview END,
		last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
		updated_at = excluded.updated_at`

// IngestMessages upserts msgs and touches the chats they belong to in one
// transaction. Messages without a chat or ID are skipped. It returns how
// many distinct chats were touched.
func (db *DB) IngestMessages(msgs []*Message) (int, error) {
	chats := make(map[string]struct{})
	err := db.inTx(func(tx *sql.Tx) error {
		chatStmt, err := tx.Prepare(touchChatSQL)
		if err != nil {
			return err
		}
		defer func() { _ = chatStmt.Close() }()
		msgStmt, err := tx.Prepare(upsertMessageSQL)
		if err != nil {
			return err
		}
		defer func() { _ = msgStmt.Close() }()

		now := time.Now().UnixMilli()
		for _, m := range msgs {
			if m.ChatJID == "" || m.MsgID == "" {
				continue
			}
			if _, err := chatStmt.Exec(m.ChatJID, query.IsGroupJID(m.ChatJID), m.Timestamp, Preview(m.Body), now); err != nil {
				return fmt.Errorf("touch chat %q: %w", m.ChatJID, err)
			}
			if _, err := msgStmt.Exec(messageArgs(m, now)...); err != nil {
				return fmt.Errorf("upsert message %q: %w", m.MsgID, err)
			}
			chats[m.ChatJID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(chats), nil
}
