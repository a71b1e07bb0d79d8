package api

import (
	"context"

	"github.com/matheus3301/wamcp/internal/query"
	"github.com/matheus3301/wamcp/internal/serialize"
)

func (s *Server) searchContacts(ctx context.Context, a *args) (any, error) {
	text := a.text("query")
	if a.err != nil {
		return nil, a.err
	}
	contacts, err := s.queries.SearchContacts(ctx, text)
	if err != nil {
		return nil, err
	}
	return serialize.Slice(contacts), nil
}

func (s *Server) listMessages(ctx context.Context, a *args) (any, error) {
	p := query.Params{
		After:          a.str("after"),
		Before:         a.str("before"),
		Sender:         a.str("sender_phone_number"),
		ChatJID:        a.str("chat_jid"),
		Text:           a.str("query"),
		Limit:          a.integer("limit"),
		Page:           a.integer("page"),
		IncludeContext: a.boolean("include_context"),
		ContextBefore:  a.integer("context_before"),
		ContextAfter:   a.integer("context_after"),
	}
	if a.err != nil {
		return nil, a.err
	}
	entries, err := s.queries.ListMessages(ctx, p)
	if err != nil {
		return nil, err
	}
	return serialize.Slice(entries), nil
}

func (s *Server) listChats(ctx context.Context, a *args) (any, error) {
	p := query.Params{
		Text:               a.str("query"),
		Limit:              a.integer("limit"),
		Page:               a.integer("page"),
		IncludeLastMessage: a.boolean("include_last_message"),
		Sort:               a.str("sort_by", "sort"),
	}
	if a.err != nil {
		return nil, a.err
	}
	chats, err := s.queries.ListChats(ctx, p)
	if err != nil {
		return nil, err
	}
	return serialize.Slice(chats), nil
}

func (s *Server) getChat(ctx context.Context, a *args) (any, error) {
	jid := a.text("chat_jid")
	withLast := a.flag("include_last_message", true)
	if a.err != nil {
		return nil, a.err
	}
	chat, err := s.queries.GetChat(ctx, jid, withLast)
	if err != nil {
		return nil, err
	}
	return *chat, nil
}

func (s *Server) getDirectChat(ctx context.Context, a *args) (any, error) {
	phone := a.text("sender_phone_number")
	if a.err != nil {
		return nil, a.err
	}
	chat, err := s.queries.DirectChatByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return *chat, nil
}

func (s *Server) getContactChats(ctx context.Context, a *args) (any, error) {
	jid := a.text("jid")
	p := query.Params{Limit: a.integer("limit"), Page: a.integer("page")}
	if a.err != nil {
		return nil, a.err
	}
	chats, err := s.queries.ContactChats(ctx, jid, p)
	if err != nil {
		return nil, err
	}
	return serialize.Slice(chats), nil
}

func (s *Server) getLastInteraction(ctx context.Context, a *args) (any, error) {
	jid := a.text("jid")
	if a.err != nil {
		return nil, a.err
	}
	ts, err := s.queries.LastInteraction(ctx, jid)
	if err != nil {
		return nil, err
	}
	return serialize.Time(ts), nil
}

func (s *Server) getMessageContext(ctx context.Context, a *args) (any, error) {
	id := a.text("message_id")
	before, after := a.integer("before"), a.integer("after")
	if a.err != nil {
		return nil, a.err
	}
	w, err := s.queries.MessageContext(ctx, id, before, after)
	if err != nil {
		return nil, err
	}
	return *w, nil
}

func (s *Server) sendMessage(ctx context.Context, a *args) (any, error) {
	recipient, message := a.text("recipient"), a.text("message")
	if a.err != nil {
		return nil, a.err
	}
	return s.commands.SendMessage(ctx, recipient, message), nil
}

func (s *Server) sendFile(ctx context.Context, a *args) (any, error) {
	recipient, path := a.text("recipient"), a.text("media_path")
	if a.err != nil {
		return nil, a.err
	}
	return s.commands.SendFile(ctx, recipient, path), nil
}

func (s *Server) sendAudioMessage(ctx context.Context, a *args) (any, error) {
	recipient, path := a.text("recipient"), a.text("media_path")
	if a.err != nil {
		return nil, a.err
	}
	return s.commands.SendAudioMessage(ctx, recipient, path), nil
}

func (s *Server) downloadMedia(ctx context.Context, a *args) (any, error) {
	id, chatJID := a.text("message_id"), a.text("chat_jid")
	if a.err != nil {
		return nil, a.err
	}
	return s.commands.DownloadMedia(ctx, id, chatJID), nil
}
