// Package outbox journals outgoing commands and hands them to the WhatsApp
// network exactly once.
package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/matheus3301/wamcp/internal/bus"
	"github.com/matheus3301/wamcp/internal/store"
	"github.com/matheus3301/wamcp/internal/wa"
	"go.uber.org/zap"
)

// Network is the part of the WhatsApp adapter the sender drives.
type Network interface {
	SendText(ctx context.Context, recipient, text string) (*wa.Sent, error)
	SendFile(ctx context.Context, recipient, path string) (*wa.Sent, error)
	SendVoice(ctx context.Context, recipient, path string) (*wa.Sent, error)
	Download(ctx context.Context, m *store.Message) (string, error)
}

// Ack is the payload of bus.KindSendAck.
type Ack struct {
	ClientMsgID string
	ServerMsgID string
	ChatJID     string
}

// Failure is the payload of bus.KindSendFailed.
type Failure struct {
	ClientMsgID string
	ChatJID     string
	Error       string
}

// ErrMessageNotFound is returned when a download names an unknown message.
var ErrMessageNotFound = errors.New("message not found")

// interrupted is recorded for journal entries a previous run never finished.
const interrupted = "interrupted before the send completed"

// Sender journals each send in the outbox table, performs it, and records
// the outcome. Successful sends are stored as outgoing messages.
type Sender struct {
	db      *store.DB
	network Network
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, network Network, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:      db,
		network: network,
		bus:     b,
		logger:  logger,
	}
}

// Recover marks entries left 'queued' by a previous run as failed. Their
// outcome is unknown and they are never resent.
func (s *Sender) Recover() (int, error) {
	stale, err := s.db.StaleOutbox()
	if err != nil {
		return 0, fmt.Errorf("read outbox: %w", err)
	}
	for _, e := range stale {
		if err := s.db.MarkOutboxFailed(e.ClientMsgID, interrupted); err != nil {
			return 0, fmt.Errorf("fail stale entry %s: %w", e.ClientMsgID, err)
		}
		s.logger.Warn("stale outbox entry marked failed",
			zap.String("client_msg_id", e.ClientMsgID), zap.String("chat_jid", e.ChatJID))
	}
	return len(stale), nil
}

// SendText implements command.Bridge.
func (s *Sender) SendText(ctx context.Context, recipient, body string) (string, error) {
	return s.send(ctx, "text", recipient, body, "", s.network.SendText)
}

// SendFile implements command.Bridge.
func (s *Sender) SendFile(ctx context.Context, recipient, path string) (string, error) {
	return s.send(ctx, "file", recipient, "", path, s.network.SendFile)
}

// SendVoice implements command.Bridge.
func (s *Sender) SendVoice(ctx context.Context, recipient, path string) (string, error) {
	return s.send(ctx, "voice", recipient, "", path, s.network.SendVoice)
}

// DownloadMedia implements command.Bridge.
func (s *Sender) DownloadMedia(ctx context.Context, chatJID, msgID string) (string, error) {
	m, err := s.db.MessageRecord(ctx, wa.NormalizeJID(chatJID), msgID)
	if err != nil {
		return "", fmt.Errorf("look up message: %w", err)
	}
	if m == nil {
		return "", ErrMessageNotFound
	}
	path, err := s.network.Download(ctx, m)
	if err != nil {
		return "", err
	}
	s.logger.Info("media downloaded", zap.String("msg_id", msgID), zap.String("path", path))
	return path, nil
}

type sendFunc func(ctx context.Context, recipient, arg string) (*wa.Sent, error)

func (s *Sender) send(ctx context.Context, kind, recipient, body, mediaPath string, fn sendFunc) (string, error) {
	to, err := wa.ParseRecipient(recipient)
	if err != nil {
		return "", err
	}
	entry := &store.OutboxEntry{
		ClientMsgID: uuid.NewString(),
		ChatJID:     to.String(),
		Kind:        kind,
		Body:        body,
		MediaPath:   mediaPath,
	}
	if err := s.db.QueueOutbox(entry); err != nil {
		return "", fmt.Errorf("journal send: %w", err)
	}

	arg := body
	if kind != "text" {
		arg = mediaPath
	}
	sent, err := fn(ctx, entry.ChatJID, arg)
	if err != nil {
		s.logger.Error("failed to send message", zap.Error(err),
			zap.String("client_msg_id", entry.ClientMsgID), zap.String("kind", kind))
		if markErr := s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark failed", zap.Error(markErr), zap.String("client_msg_id", entry.ClientMsgID))
		}
		s.bus.Emit(bus.KindSendFailed, Failure{ClientMsgID: entry.ClientMsgID, ChatJID: entry.ChatJID, Error: err.Error()})
		return "", err
	}

	if err := s.db.MarkOutboxSent(entry.ClientMsgID, sent.ID); err != nil {
		s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
	}
	// The network already accepted the message, so a failed insert is not a
	// failed send.
	if _, err := s.db.IngestMessages([]*store.Message{sent.Store()}); err != nil {
		s.logger.Error("failed to store sent message", zap.Error(err), zap.String("msg_id", sent.ID))
	} else {
		s.bus.Emit(bus.KindMessageUpserted, bus.MessageRef{ChatJID: sent.ChatJID, MsgID: sent.ID})
	}

	s.logger.Info("message sent", zap.String("client_msg_id", entry.ClientMsgID), zap.String("server_msg_id", sent.ID))
	s.bus.Emit(bus.KindSendAck, Ack{ClientMsgID: entry.ClientMsgID, ServerMsgID: sent.ID, ChatJID: sent.ChatJID})
	return "Message sent to " + sent.ChatJID, nil
}
