package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/wamcp/internal/query"
)

// displayName resolves a chat's name with fallback:
// chat.name -> contact.push_name -> contact.name -> chat.jid
const displayName = `COALESCE(NULLIF(c.name,''), NULLIF(ct.push_name,''), NULLIF(ct.name,''), c.jid)`

const chatColumns = `c.jid, ` + displayName + ` AS display_name,
	c.is_group, c.unread_count, c.last_message_at, c.last_message_preview`

const chatFrom = `FROM chats c LEFT JOIN contacts ct ON c.jid = ct.jid`

const upsertChatSQL = `
	INSERT INTO chats (jid, name, is_group, unread_count, last_message_at, last_message_preview, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(jid) DO UPDATE SET
		name = CASE WHEN excluded.name != '' THEN excluded.name ELSE chats.name END,
		is_group = excluded.is_group,
		unread_count = excluded.unread_count,
		last_message_preview = CASE WHEN excluded.last_message_at >= chats.last_message_at THEN excluded.last_message_preview ELSE chats.last_message_preview END,
		last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
		updated_at = excluded.updated_at`

func chatArgs(c *Chat, now int64) []any {
	return []any{c.JID, c.Name, c.IsGroup || query.IsGroupJID(c.JID), c.UnreadCount, c.LastMessageAt, c.LastMessagePreview, now}
}

// UpsertChat inserts or updates a chat record. An empty name never
// overwrites a known one, and last activity never moves backwards.
func (db *DB) UpsertChat(c *Chat) error {
	_, err := db.Exec(upsertChatSQL, chatArgs(c, time.Now().UnixMilli())...)
	return err
}

// SetChatName records a chat's display name without touching activity.
func (db *DB) SetChatName(jid, name string) error {
	if name == "" {
		return nil
	}
	_, err := db.Exec(`
		INSERT INTO chats (jid, name, is_group, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
		jid, name, query.IsGroupJID(jid), time.Now().UnixMilli())
	return err
}

// GetChat returns a single chat by JID, or nil if it does not exist.
func (db *DB) GetChat(ctx context.Context, jid string) (*query.Chat, error) {
	row := db.QueryRowContext(ctx, `SELECT `+chatColumns+` `+chatFrom+` WHERE c.jid = ?`, jid)
	c, err := scanChat(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListChats returns chats ordered by f.Sort with ties broken by JID, then
// sliced by f.Offset and f.Limit. LID chats are hidden.
func (db *DB) ListChats(ctx context.Context, f query.ChatFilter) ([]query.Chat, error) {
	q := `SELECT ` + chatColumns + ` ` + chatFrom + ` WHERE c.jid NOT LIKE '%@lid'`
	var args []any
	if f.Text != "" {
		pattern := likePattern(f.Text)
		q += ` AND (` + displayName + ` LIKE ? ESCAPE '\' OR c.jid LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}
	switch f.Sort {
	case query.SortName:
		q += ` ORDER BY display_name COLLATE NOCASE ASC, c.jid ASC`
	default:
		q += ` ORDER BY c.last_message_at DESC, c.jid ASC`
	}
	q += ` LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	return db.queryChats(ctx, q, args...)
}

// MinPhoneSuffix is the shortest digit run DirectChatByPhone will match
// against the end of a number, for local numbers typed without a country
// code.
const MinPhoneSuffix = 8

// DirectChatByPhone returns the one-to-one chat for digits, or nil. An exact
// JID match wins. Otherwise digits must have at least MinPhoneSuffix digits
// and end exactly one direct chat's number; no match or several matches
// yield nil.
func (db *DB) DirectChatByPhone(ctx context.Context, digits string) (*query.Chat, error) {
	c, err := db.GetChat(ctx, digits+"@"+query.UserServer)
	if err != nil || c != nil {
		return c, err
	}
	if len(digits) < MinPhoneSuffix {
		return nil, nil
	}
	chats, err := db.queryChats(ctx, `SELECT `+chatColumns+` `+chatFrom+`
		WHERE c.jid LIKE ? ESCAPE '\'
		ORDER BY c.jid
		LIMIT 2`, "%"+escapeLike(digits)+"@"+query.UserServer)
	if err != nil {
		return nil, err
	}
	if len(chats) != 1 {
		return nil, nil
	}
	return &chats[0], nil
}

// ContactChats lists the direct chat with jid and every chat where jid sent
// a message, most recently active first.
func (db *DB) ContactChats(ctx context.Context, jid string, limit, offset int) ([]query.Chat, error) {
	return db.queryChats(ctx, `SELECT `+chatColumns+` `+chatFrom+`
		WHERE c.jid = ?
		   OR EXISTS (SELECT 1 FROM messages m WHERE m.chat_jid = c.jid AND m.sender_jid = ?)
		ORDER BY c.last_message_at DESC, c.jid ASC
		LIMIT ? OFFSET ?`, jid, jid, limit, offset)
}

func (db *DB) queryChats(ctx context.Context, q string, args ...any) ([]query.Chat, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	chats := []query.Chat{}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChat(s scanner) (*query.Chat, error) {
	var (
		c       query.Chat
		lastAt  int64
		preview string
	)
	if err := s.Scan(&c.JID, &c.Name, &c.IsGroup, &c.UnreadCount, &lastAt, &preview); err != nil {
		return nil, err
	}
	if lastAt > 0 {
		c.LastMessageTime = time.UnixMilli(lastAt).UTC()
	}
	return &c, nil
}

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
func likePattern(s string) string {
	return "%" + escapeLike(s) + "%"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
