package query

import (
	"context"
	"slices"
	"strings"
	"time"
)

// memStore is an in-memory Store. Messages are kept in timeline order per
// chat; failing operations return err.
type memStore struct {
	chats    []Chat
	messages []Message // ascending timeline
	contacts []Contact

	err      error
	failGet  map[string]bool
	calls    []string
	returned int // when > 0, list calls return this many extra rows past limit
}

func (s *memStore) record(op string) { s.calls = append(s.calls, op) }

func (s *memStore) GetMessage(_ context.Context, chatJID, msgID string) (*Message, error) {
	s.record("GetMessage")
	if s.err != nil {
		return nil, s.err
	}
	if s.failGet[msgID] {
		return nil, nil
	}
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.ID == msgID && (chatJID == "" || m.ChatJID == chatJID) {
			return &m, nil
		}
	}
	return nil, nil
}

func (s *memStore) timeline(chatJID string) []Message {
	var out []Message
	for _, m := range s.messages {
		if m.ChatJID == chatJID {
			out = append(out, m)
		}
	}
	return out
}

func (s *memStore) MessagesBefore(_ context.Context, chatJID, anchorID string, limit int) ([]Message, error) {
	s.record("MessagesBefore")
	if s.err != nil {
		return nil, s.err
	}
	tl := s.timeline(chatJID)
	i := slices.IndexFunc(tl, func(m Message) bool { return m.ID == anchorID })
	if i < 0 {
		return nil, nil
	}
	var out []Message
	for j := i - 1; j >= 0 && len(out) < limit; j-- {
		out = append(out, tl[j])
	}
	return out, nil
}

func (s *memStore) MessagesAfter(_ context.Context, chatJID, anchorID string, limit int) ([]Message, error) {
	s.record("MessagesAfter")
	if s.err != nil {
		return nil, s.err
	}
	tl := s.timeline(chatJID)
	i := slices.IndexFunc(tl, func(m Message) bool { return m.ID == anchorID })
	if i < 0 {
		return nil, nil
	}
	var out []Message
	for j := i + 1; j < len(tl) && len(out) < limit; j++ {
		out = append(out, tl[j])
	}
	return out, nil
}

func (s *memStore) ListMessages(_ context.Context, f MessageFilter) ([]Message, error) {
	s.record("ListMessages")
	if s.err != nil {
		return nil, s.err
	}
	var out []Message
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if f.ChatJID != "" && m.ChatJID != f.ChatJID {
			continue
		}
		if f.Sender != "" && m.Sender != f.Sender {
			continue
		}
		if f.Text != "" && !strings.Contains(strings.ToLower(m.Content), strings.ToLower(f.Text)) {
			continue
		}
		if !f.After.IsZero() && m.Timestamp.Before(f.After) {
			continue
		}
		if !f.Before.IsZero() && !m.Timestamp.Before(f.Before) {
			continue
		}
		out = append(out, m)
	}
	return page(out, f.Offset, f.Limit+s.returned), nil
}

func (s *memStore) LatestMessage(_ context.Context, chatJID string) (*Message, error) {
	s.record("LatestMessage")
	if s.err != nil {
		return nil, s.err
	}
	tl := s.timeline(chatJID)
	if len(tl) == 0 {
		return nil, nil
	}
	return &tl[len(tl)-1], nil
}

func (s *memStore) GetChat(_ context.Context, jid string) (*Chat, error) {
	s.record("GetChat")
	if s.err != nil {
		return nil, s.err
	}
	for _, c := range s.chats {
		if c.JID == jid {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListChats(_ context.Context, f ChatFilter) ([]Chat, error) {
	s.record("ListChats")
	if s.err != nil {
		return nil, s.err
	}
	out := slices.Clone(s.chats)
	slices.SortStableFunc(out, func(a, b Chat) int {
		if f.Sort == SortName {
			if c := strings.Compare(a.Name, b.Name); c != 0 {
				return c
			}
		} else if c := b.LastMessageTime.Compare(a.LastMessageTime); c != 0 {
			return c
		}
		return strings.Compare(a.JID, b.JID)
	})
	return page(out, f.Offset, f.Limit+s.returned), nil
}

func (s *memStore) DirectChatByPhone(ctx context.Context, phone string) (*Chat, error) {
	s.record("DirectChatByPhone")
	return s.GetChat(ctx, phone+"@"+UserServer)
}

func (s *memStore) ContactChats(_ context.Context, jid string, limit, offset int) ([]Chat, error) {
	s.record("ContactChats")
	if s.err != nil {
		return nil, s.err
	}
	var out []Chat
	for _, c := range s.chats {
		if c.JID == jid {
			out = append(out, c)
		}
	}
	return page(out, offset, limit), nil
}

func (s *memStore) SearchContacts(_ context.Context, text string, limit int) ([]Contact, error) {
	s.record("SearchContacts")
	if s.err != nil {
		return nil, s.err
	}
	var out []Contact
	for _, c := range s.contacts {
		if strings.Contains(c.Name, text) || strings.Contains(c.JID, text) {
			out = append(out, c)
		}
	}
	return page(out, 0, limit), nil
}

func (s *memStore) LastInteraction(_ context.Context, jid string) (time.Time, error) {
	s.record("LastInteraction")
	if s.err != nil {
		return time.Time{}, s.err
	}
	var last time.Time
	for _, m := range s.messages {
		if (m.Sender == jid || m.ChatJID == jid) && m.Timestamp.After(last) {
			last = m.Timestamp
		}
	}
	return last, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

var t0 = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

// chatOf builds n messages in chat, one minute apart, with ids
// <chat>-ma, <chat>-mb and so on.
func chatOf(chat string, n int) []Message {
	out := make([]Message, n)
	for i := range out {
		out[i] = Message{
			ID:        chat + "-m" + string(rune('a'+i)),
			ChatJID:   chat,
			Sender:    "1@s.whatsapp.net",
			Content:   "msg",
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}
