package query

import (
	"context"
	"time"
)

// MessageFilter selects messages for ListMessages. Zero values mean "no
// constraint". Results are ordered newest first.
type MessageFilter struct {
	After   time.Time // inclusive
	Before  time.Time // exclusive
	Sender  string
	ChatJID string
	Text    string
	Limit   int
	Offset  int
}

// ChatFilter selects chats for ListChats. Results are ordered by Sort with
// ties broken by JID ascending, then sliced by Offset/Limit.
type ChatFilter struct {
	Text   string
	Sort   Sort
	Limit  int
	Offset int
}

// Store is the read surface the query engine needs from the message store.
// Point lookups return (nil, nil) when the target does not exist.
type Store interface {
	GetMessage(ctx context.Context, chatJID, msgID string) (*Message, error)
	// MessagesBefore returns up to limit messages of the chat strictly before
	// the anchor in timeline order, nearest first.
	MessagesBefore(ctx context.Context, chatJID, anchorID string, limit int) ([]Message, error)
	// MessagesAfter returns up to limit messages of the chat strictly after
	// the anchor in timeline order, nearest first.
	MessagesAfter(ctx context.Context, chatJID, anchorID string, limit int) ([]Message, error)
	ListMessages(ctx context.Context, f MessageFilter) ([]Message, error)
	LatestMessage(ctx context.Context, chatJID string) (*Message, error)

	GetChat(ctx context.Context, jid string) (*Chat, error)
	ListChats(ctx context.Context, f ChatFilter) ([]Chat, error)
	DirectChatByPhone(ctx context.Context, phone string) (*Chat, error)
	// ContactChats lists chats the contact takes part in, most recently
	// active first.
	ContactChats(ctx context.Context, jid string, limit, offset int) ([]Chat, error)

	SearchContacts(ctx context.Context, text string, limit int) ([]Contact, error)
	// LastInteraction returns the newest message timestamp involving jid, or
	// the zero time.
	LastInteraction(ctx context.Context, jid string) (time.Time, error)
}
