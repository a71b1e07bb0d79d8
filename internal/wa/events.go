package wa

import (
	"context"
	"time"

	"github.com/matheus3301/wamcp/internal/bus"
	"github.com/matheus3301/wamcp/internal/status"
	"github.com/matheus3301/wamcp/internal/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// LIDResolver maps hidden-identity JIDs to phone number JIDs.
type LIDResolver interface {
	ResolveLID(ctx context.Context, jid types.JID) types.JID
}

// HistoryBatch is the payload of bus.KindHistoryBatch.
type HistoryBatch struct {
	Messages []*store.Message
	Chats    []store.Chat    // conversations that carry a name
	Contacts []store.Contact // senders that carry a push name
}

// Receipt is the payload of bus.KindReceipt.
type Receipt struct {
	ChatJID string
	MsgIDs  []string
	Status  string
}

// EventHandler processes whatsmeow events, drives the state machine,
// and publishes parsed domain events on the bus. It never writes to the
// store itself: the ingestion engine subscribes to the bus independently.
type EventHandler struct {
	bus      *bus.Bus
	machine  *status.Machine
	resolver LIDResolver
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler. resolver may be nil, in which
// case LID JIDs are kept as they are.
func NewEventHandler(b *bus.Bus, machine *status.Machine, resolver LIDResolver, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		bus:      b,
		machine:  machine,
		resolver: resolver,
		logger:   logger,
	}
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.Receipt:
		h.handleReceipt(evt)
	case *events.PushName:
		h.bus.Emit(bus.KindContact, store.Contact{
			JID:      h.resolveJID(evt.JID.String()),
			PushName: evt.NewPushName,
		})
	case *events.GroupInfo:
		if evt.Name != nil && evt.Name.Name != "" {
			h.bus.Emit(bus.KindChatName, store.Chat{JID: evt.JID.String(), Name: evt.Name.Name})
		}
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		current := h.machine.Current()
		if current == status.AuthRequired || current == status.Reconnecting || current == status.Degraded {
			_ = h.machine.Transition(status.Connecting)
		}
		_ = h.machine.Transition(status.Syncing)
		h.bus.Emit(bus.KindConnected, nil)
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		_ = h.machine.Transition(status.Reconnecting)
		h.bus.Emit(bus.KindDisconnected, nil)
	case *events.KeepAliveTimeout:
		h.logger.Warn("WhatsApp keepalive timeout", zap.Int("error_count", evt.ErrorCount))
		_ = h.machine.Transition(status.Degraded)
	case *events.KeepAliveRestored:
		h.logger.Info("WhatsApp keepalive restored")
		_ = h.machine.Transition(status.Ready)
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		_ = h.machine.Transition(status.AuthRequired)
		h.bus.Emit(bus.KindLoggedOut, evt.Reason.String())
	}
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	if h.machine.Current() == status.Syncing {
		_ = h.machine.Transition(status.Ready)
	}

	parsed := ParseLiveMessage(evt)
	parsed.ChatJID = h.resolveJID(parsed.ChatJID)
	parsed.SenderJID = h.resolveJID(parsed.SenderJID)
	h.bus.Emit(bus.KindMessage, parsed.ToStoreMessage())
}

func (h *EventHandler) handleReceipt(evt *events.Receipt) {
	var st string
	switch evt.Type {
	case types.ReceiptTypeDelivered:
		st = "delivered"
	case types.ReceiptTypeRead, types.ReceiptTypeReadSelf:
		st = "read"
	case types.ReceiptTypePlayed:
		st = "played"
	default:
		return
	}
	ids := make([]string, len(evt.MessageIDs))
	for i, id := range evt.MessageIDs {
		ids[i] = string(id)
	}
	h.bus.Emit(bus.KindReceipt, Receipt{
		ChatJID: h.resolveJID(evt.Chat.String()),
		MsgIDs:  ids,
		Status:  st,
	})
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	var batch HistoryBatch
	for _, conv := range data.GetConversations() {
		chatJID := h.resolveJID(conv.GetID())
		if name := conv.GetName(); name != "" {
			batch.Chats = append(batch.Chats, store.Chat{JID: chatJID, Name: name})
		}
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			key := wmsg.GetKey()
			sender := key.GetParticipant()
			if sender == "" && !key.GetFromMe() {
				sender = chatJID
			}
			msg := unwrap(wmsg.GetMessage())
			parsed := &ParsedMessage{
				ChatJID:     chatJID,
				MsgID:       key.GetID(),
				SenderJID:   h.resolveJID(sender),
				SenderName:  wmsg.GetPushName(),
				Body:        extractTextBody(msg),
				MessageType: detectMessageType(msg),
				FromMe:      key.GetFromMe(),
				Timestamp:   time.Unix(int64(wmsg.GetMessageTimestamp()), 0).UnixMilli(),
				Media:       extractMedia(msg),
			}
			batch.Messages = append(batch.Messages, parsed.ToStoreMessage())
			if parsed.SenderName != "" && parsed.SenderJID != "" && !parsed.FromMe {
				batch.Contacts = append(batch.Contacts, store.Contact{JID: parsed.SenderJID, PushName: parsed.SenderName})
			}
		}
	}

	if len(batch.Messages) > 0 || len(batch.Chats) > 0 {
		h.bus.Emit(bus.KindHistoryBatch, batch)
	}
}

// resolveJID normalizes s and, when a resolver is set, maps a LID JID to
// its phone number JID.
func (h *EventHandler) resolveJID(s string) string {
	s = NormalizeJID(s)
	if h.resolver == nil || s == "" {
		return s
	}
	jid, err := types.ParseJID(s)
	if err != nil || jid.Server != types.HiddenUserServer {
		return s
	}
	return h.resolver.ResolveLID(context.Background(), jid).ToNonAD().String()
}
