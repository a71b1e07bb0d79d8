package query

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// ListChats returns one page of chats matching p.Text, ordered by p.Sort.
func (s *Service) ListChats(ctx context.Context, p Params) ([]Chat, error) {
	d, err := Resolve(p)
	if err != nil {
		return nil, err
	}
	chats, err := s.store.ListChats(ctx, ChatFilter{
		Text:   d.Text,
		Sort:   d.Sort,
		Limit:  d.Limit,
		Offset: d.Offset(),
	})
	if err != nil {
		return nil, unavailable("list_chats", err)
	}
	chats = bound(chats, d.Limit)
	if d.IncludeLastMessage {
		s.attachLastMessages(ctx, chats)
	}
	return chats, nil
}

// GetChat looks up a chat by JID.
func (s *Service) GetChat(ctx context.Context, jid string, includeLastMessage bool) (*Chat, error) {
	jid = strings.TrimSpace(jid)
	if jid == "" {
		return nil, invalidf("get_chat", "chat_jid is required")
	}
	c, err := s.store.GetChat(ctx, jid)
	if err != nil {
		return nil, unavailable("get_chat", err)
	}
	if c == nil {
		return nil, notFoundf("get_chat", "chat %q not found", jid)
	}
	if includeLastMessage {
		s.attachLastMessage(ctx, c)
	}
	return c, nil
}

// DirectChatByPhone finds the one-to-one chat with a phone number.
func (s *Service) DirectChatByPhone(ctx context.Context, phone string) (*Chat, error) {
	phone = strings.TrimSpace(phone)
	digits := PhoneDigits(phone)
	if strings.Contains(phone, "@") {
		digits = PhoneOf(phone)
	}
	if digits == "" {
		return nil, invalidf("get_direct_chat_by_contact", "%q is not a phone number", phone)
	}
	c, err := s.store.DirectChatByPhone(ctx, digits)
	if err != nil {
		return nil, unavailable("get_direct_chat_by_contact", err)
	}
	if c == nil {
		return nil, notFoundf("get_direct_chat_by_contact", "no direct chat with %s", digits)
	}
	s.attachLastMessage(ctx, c)
	return c, nil
}

// ContactChats returns one page of the chats a contact takes part in.
func (s *Service) ContactChats(ctx context.Context, jid string, p Params) ([]Chat, error) {
	jid, err := requireJID("get_contact_chats", jid)
	if err != nil {
		return nil, err
	}
	d, err := Resolve(Params{Limit: p.Limit, Page: p.Page})
	if err != nil {
		return nil, err
	}
	chats, err := s.store.ContactChats(ctx, jid, d.Limit, d.Offset())
	if err != nil {
		return nil, unavailable("get_contact_chats", err)
	}
	chats = bound(chats, d.Limit)
	s.attachLastMessages(ctx, chats)
	return chats, nil
}

func (s *Service) attachLastMessages(ctx context.Context, chats []Chat) {
	for i := range chats {
		s.attachLastMessage(ctx, &chats[i])
	}
}

// attachLastMessage sets c.LastMessage. A failed lookup leaves it unset.
func (s *Service) attachLastMessage(ctx context.Context, c *Chat) {
	m, err := s.store.LatestMessage(ctx, c.JID)
	if err != nil {
		s.logger.Warn("last message lookup failed", zap.String("chat_jid", c.JID), zap.Error(err))
		return
	}
	c.LastMessage = m
}

// bound never lets more than limit items through, whatever the store did.
func bound[T any](items []T, limit int) []T {
	if items == nil {
		return []T{}
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
