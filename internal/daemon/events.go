package daemon

import (
	"context"

	"github.com/matheus3301/wamcp/internal/bus"
	"github.com/matheus3301/wamcp/internal/outbox"
	"github.com/matheus3301/wamcp/internal/status"
	intsync "github.com/matheus3301/wamcp/internal/sync"
	"go.uber.org/zap"
)

// watchEvents logs session and delivery events until ctx ends.
func watchEvents(ctx context.Context, b *bus.Bus, logger *zap.Logger) {
	ch, unsub := b.Subscribe("", 64)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				logEvent(logger, evt)
			case <-ctx.Done():
				if n := b.Dropped(); n > 0 {
					logger.Warn("bus deliveries dropped", zap.Uint64("count", n))
				}
				return
			}
		}
	}()
}

func logEvent(logger *zap.Logger, evt bus.Event) {
	switch p := evt.Payload.(type) {
	case status.StatusChange:
		logger.Info("status changed", zap.String("from", string(p.From)), zap.String("to", string(p.To)))
	case outbox.Failure:
		logger.Warn("send failed",
			zap.String("client_msg_id", p.ClientMsgID), zap.String("chat_jid", p.ChatJID), zap.String("error", p.Error))
	case outbox.Ack:
		logger.Debug("send acknowledged",
			zap.String("client_msg_id", p.ClientMsgID), zap.String("server_msg_id", p.ServerMsgID))
	case intsync.HistoryStats:
		logger.Debug("history batch stored", zap.Int("messages", p.Messages), zap.Int("chats", p.Chats))
	default:
		switch evt.Kind {
		case bus.KindLoggedOut:
			logger.Warn("logged out by the phone, run `wamcpd pair` to link again")
		case bus.KindAuthFailed:
			logger.Warn("authentication failed", zap.Any("reason", evt.Payload))
		case bus.KindDisconnected:
			logger.Info("disconnected from WhatsApp")
		case bus.KindContactsSynced:
			logger.Info("contacts refreshed", zap.Any("count", evt.Payload))
		}
	}
}
