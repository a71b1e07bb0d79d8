package query

import (
	"context"

	"go.uber.org/zap"
)

// ListMessages returns one page of messages matching p, newest first. With
// IncludeContext each match carries its own context window; a window that
// cannot be assembled leaves that entry with an empty context and a reason.
func (s *Service) ListMessages(ctx context.Context, p Params) ([]MessageEntry, error) {
	d, err := Resolve(p)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, MessageFilter{
		After:   d.After,
		Before:  d.Before,
		Sender:  d.Sender,
		ChatJID: d.ChatJID,
		Text:    d.Text,
		Limit:   d.Limit,
		Offset:  d.Offset(),
	})
	if err != nil {
		return nil, unavailable("list_messages", err)
	}
	msgs = bound(msgs, d.Limit)

	entries := make([]MessageEntry, len(msgs))
	for i, m := range msgs {
		entries[i] = MessageEntry{Message: m}
		if !d.IncludeContext {
			continue
		}
		w, err := s.assembler.AssembleIn(ctx, m.ChatJID, m.ID, d.ContextBefore, d.ContextAfter)
		if err != nil {
			s.logger.Warn("context assembly failed",
				zap.String("msg_id", m.ID), zap.String("chat_jid", m.ChatJID), zap.Error(err))
			entries[i].ContextError = err.Error()
			continue
		}
		entries[i].Context = w
	}
	return entries, nil
}
