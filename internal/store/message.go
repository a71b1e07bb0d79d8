package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matheus3301/wamcp/internal/query"
)

const messageColumns = `m.id, m.chat_jid, m.msg_id, m.sender_jid, m.sender_name, m.body, m.message_type,
	m.from_me, m.status, m.timestamp, m.filename, m.mime_type, m.media_url, m.direct_path,
	m.media_key, m.file_sha256, m.file_enc_sha256, m.file_length`

// messageFrom joins the chat display name so results carry chat_name.
const messageFrom = `FROM messages m
	LEFT JOIN chats c ON c.jid = m.chat_jid
	LEFT JOIN contacts ct ON ct.jid = m.chat_jid`

const messageSelect = `SELECT ` + messageColumns + `, ` + displayName + ` ` + messageFrom

const upsertMessageSQL = `
	INSERT INTO messages (chat_jid, msg_id, sender_jid, sender_name, body, message_type, from_me, status, timestamp, created_at,
		filename, mime_type, media_url, direct_path, media_key, file_sha256, file_enc_sha256, file_length)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(chat_jid, msg_id) DO UPDATE SET
		sender_name = CASE WHEN excluded.sender_name != '' THEN excluded.sender_name ELSE messages.sender_name END,
		body = excluded.body,
		status = excluded.status,
		direct_path = CASE WHEN excluded.direct_path != '' THEN excluded.direct_path ELSE messages.direct_path END,
		media_url = CASE WHEN excluded.media_url != '' THEN excluded.media_url ELSE messages.media_url END,
		media_key = COALESCE(excluded.media_key, messages.media_key),
		file_sha256 = COALESCE(excluded.file_sha256, messages.file_sha256),
		file_enc_sha256 = COALESCE(excluded.file_enc_sha256, messages.file_enc_sha256)`

func messageArgs(m *Message, now int64) []any {
	return []any{
		m.ChatJID, m.MsgID, m.SenderJID, m.SenderName, m.Body, m.MessageType, m.FromMe, m.Status, m.Timestamp, now,
		m.Media.Filename, m.Media.MimeType, m.Media.URL, m.Media.DirectPath,
		m.Media.MediaKey, m.Media.FileSHA256, m.Media.FileEncSHA256, m.Media.FileLength,
	}
}

// UpsertMessage inserts or updates a message (idempotent on chat_jid + msg_id).
func (db *DB) UpsertMessage(m *Message) error {
	_, err := db.Exec(upsertMessageSQL, messageArgs(m, time.Now().UnixMilli())...)
	return err
}

// MarkStatus sets the delivery status of messages in a chat. Unknown IDs
// are ignored.
func (db *DB) MarkStatus(chatJID string, msgIDs []string, status string) (int64, error) {
	var n int64
	err := db.inTx(func(tx *sql.Tx) error {
		for _, id := range msgIDs {
			res, err := tx.Exec(`UPDATE messages SET status = ? WHERE chat_jid = ? AND msg_id = ?`, status, chatJID, id)
			if err != nil {
				return err
			}
			affected, _ := res.RowsAffected()
			n += affected
		}
		return nil
	})
	return n, err
}

// MessageRecord returns the raw stored message, media metadata included, or
// nil. An empty chatJID matches the newest message with msgID in any chat.
func (db *DB) MessageRecord(ctx context.Context, chatJID, msgID string) (*Message, error) {
	rows, err := db.QueryContext(ctx, messageSelect+`
		WHERE m.msg_id = ? AND (? = '' OR m.chat_jid = ?)
		ORDER BY m.timestamp DESC, m.id DESC
		LIMIT 1`, msgID, chatJID, chatJID)
	if err != nil {
		return nil, err
	}
	msgs, err := collectMessages(rows)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

// GetMessage implements query.Store.
func (db *DB) GetMessage(ctx context.Context, chatJID, msgID string) (*query.Message, error) {
	m, err := db.MessageRecord(ctx, chatJID, msgID)
	if err != nil || m == nil {
		return nil, err
	}
	qm := m.toQuery()
	return &qm, nil
}

// MessagesBefore returns up to limit messages preceding the anchor in
// (timestamp, id) order, nearest first. A missing anchor yields none.
func (db *DB) MessagesBefore(ctx context.Context, chatJID, anchorID string, limit int) ([]query.Message, error) {
	return db.queryMessages(ctx, messageSelect+`
		WHERE m.chat_jid = ?
		  AND (m.timestamp, m.id) < (SELECT timestamp, id FROM messages WHERE chat_jid = ? AND msg_id = ?)
		ORDER BY m.timestamp DESC, m.id DESC
		LIMIT ?`, chatJID, chatJID, anchorID, limit)
}

// MessagesAfter returns up to limit messages following the anchor in
// (timestamp, id) order, nearest first. A missing anchor yields none.
func (db *DB) MessagesAfter(ctx context.Context, chatJID, anchorID string, limit int) ([]query.Message, error) {
	return db.queryMessages(ctx, messageSelect+`
		WHERE m.chat_jid = ?
		  AND (m.timestamp, m.id) > (SELECT timestamp, id FROM messages WHERE chat_jid = ? AND msg_id = ?)
		ORDER BY m.timestamp ASC, m.id ASC
		LIMIT ?`, chatJID, chatJID, anchorID, limit)
}

// ListMessages returns messages matching f, newest first.
func (db *DB) ListMessages(ctx context.Context, f query.MessageFilter) ([]query.Message, error) {
	q := messageSelect + ` WHERE 1 = 1`
	var args []any
	if !f.After.IsZero() {
		q += ` AND m.timestamp >= ?`
		args = append(args, f.After.UnixMilli())
	}
	if !f.Before.IsZero() {
		q += ` AND m.timestamp < ?`
		args = append(args, f.Before.UnixMilli())
	}
	if f.Sender != "" {
		q += ` AND m.sender_jid = ?`
		args = append(args, f.Sender)
	}
	if f.ChatJID != "" {
		q += ` AND m.chat_jid = ?`
		args = append(args, f.ChatJID)
	}
	if f.Text != "" {
		q += ` AND m.body LIKE ? ESCAPE '\'`
		args = append(args, likePattern(f.Text))
	}
	q += ` ORDER BY m.timestamp DESC, m.id DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)
	return db.queryMessages(ctx, q, args...)
}

// LatestMessage returns the newest message of a chat, or nil.
func (db *DB) LatestMessage(ctx context.Context, chatJID string) (*query.Message, error) {
	msgs, err := db.queryMessages(ctx, messageSelect+`
		WHERE m.chat_jid = ?
		ORDER BY m.timestamp DESC, m.id DESC
		LIMIT 1`, chatJID)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

// LastInteraction returns the newest timestamp of a message sent by jid or
// exchanged in the direct chat with jid.
func (db *DB) LastInteraction(ctx context.Context, jid string) (time.Time, error) {
	var ts sql.NullInt64
	err := db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM messages WHERE sender_jid = ? OR chat_jid = ?`, jid, jid).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.UnixMilli(ts.Int64).UTC(), nil
}

func (db *DB) queryMessages(ctx context.Context, q string, args ...any) ([]query.Message, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	out := make([]query.Message, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].toQuery()
	}
	return out, nil
}

// collectMessages scans and closes rows produced by messageSelect.
func collectMessages(rows *sql.Rows) ([]Message, error) {
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var (
			m        Message
			chatName sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ChatJID, &m.MsgID, &m.SenderJID, &m.SenderName, &m.Body, &m.MessageType,
			&m.FromMe, &m.Status, &m.Timestamp, &m.Media.Filename, &m.Media.MimeType, &m.Media.URL, &m.Media.DirectPath,
			&m.Media.MediaKey, &m.Media.FileSHA256, &m.Media.FileEncSHA256, &m.Media.FileLength, &chatName); err != nil {
			return nil, err
		}
		m.chatName = chatName.String
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (m *Message) toQuery() query.Message {
	qm := query.Message{
		ID:         m.MsgID,
		ChatJID:    m.ChatJID,
		ChatName:   m.chatName,
		Sender:     m.SenderJID,
		SenderName: m.SenderName,
		Content:    m.Body,
		Timestamp:  time.UnixMilli(m.Timestamp).UTC(),
		IsFromMe:   m.FromMe,
		Status:     m.Status,
		Filename:   m.Media.Filename,
	}
	if m.MessageType != "text" && m.MessageType != "" {
		qm.MediaType = m.MessageType
	}
	return qm
}
