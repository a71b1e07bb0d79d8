package query

import (
	"time"

	"github.com/matheus3301/wamcp/internal/serialize"
)

// Message is a stored WhatsApp message as seen by callers.
type Message struct {
	ID         string
	ChatJID    string
	ChatName   string
	Sender     string
	SenderName string
	Content    string
	Timestamp  time.Time
	IsFromMe   bool
	MediaType  string
	Filename   string
	Status     string
}

func (m Message) Fields() map[string]any {
	f := map[string]any{
		"id":         m.ID,
		"chat_jid":   m.ChatJID,
		"sender":     m.Sender,
		"content":    m.Content,
		"timestamp":  m.Timestamp,
		"is_from_me": m.IsFromMe,
	}
	if m.ChatName != "" {
		f["chat_name"] = m.ChatName
	}
	if m.SenderName != "" {
		f["sender_name"] = m.SenderName
	}
	if m.MediaType != "" {
		f["media_type"] = m.MediaType
	}
	if m.Filename != "" {
		f["filename"] = m.Filename
	}
	if m.Status != "" {
		f["status"] = m.Status
	}
	return f
}

// Chat is a direct or group conversation.
type Chat struct {
	JID             string
	Name            string
	IsGroup         bool
	UnreadCount     int
	LastMessageTime time.Time
	LastMessage     *Message
}

func (c Chat) Fields() map[string]any {
	f := map[string]any{
		"jid":               c.JID,
		"name":              c.Name,
		"is_group":          c.IsGroup,
		"unread_count":      c.UnreadCount,
		"last_message_time": c.LastMessageTime,
	}
	if c.LastMessage != nil {
		f["last_message"] = c.LastMessage.Content
		f["last_sender"] = c.LastMessage.Sender
		f["last_is_from_me"] = c.LastMessage.IsFromMe
		if c.LastMessage.MediaType != "" {
			f["last_media_type"] = c.LastMessage.MediaType
		}
	}
	return f
}

// Contact is a person reachable through one or more direct chats.
type Contact struct {
	JID         string
	PhoneNumber string
	Name        string
	PushName    string
	ChatJIDs    []string
}

func (c Contact) Fields() map[string]any {
	chats := c.ChatJIDs
	if chats == nil {
		chats = []string{}
	}
	return map[string]any{
		"jid":          c.JID,
		"phone_number": c.PhoneNumber,
		"name":         c.Name,
		"push_name":    c.PushName,
		"chat_jids":    chats,
	}
}

// ContextWindow is an ordered run of messages around an anchor message.
type ContextWindow struct {
	AnchorID string
	Before   int
	After    int
	Messages []Message
}

// Anchor returns the anchor message of the window.
func (w ContextWindow) Anchor() (Message, bool) {
	for _, m := range w.Messages {
		if m.ID == w.AnchorID {
			return m, true
		}
	}
	return Message{}, false
}

func (w ContextWindow) Fields() map[string]any {
	f := map[string]any{
		"anchor_id": w.AnchorID,
		"before":    w.Before,
		"after":     w.After,
		"messages":  serialize.Slice(w.Messages),
	}
	if anchor, ok := w.Anchor(); ok {
		f["message"] = anchor
	}
	return f
}

// MessageEntry is one list_messages match. Context is nil when it was not
// requested or could not be assembled; ContextError says why in the latter case.
type MessageEntry struct {
	Message      Message
	Context      *ContextWindow
	ContextError string
}

func (e MessageEntry) Fields() map[string]any {
	f := map[string]any{"message": e.Message}
	if e.Context != nil {
		f["context"] = *e.Context
	}
	if e.ContextError != "" {
		f["context"] = ContextWindow{AnchorID: e.Message.ID, Messages: []Message{}}
		f["context_error"] = e.ContextError
	}
	return f
}
