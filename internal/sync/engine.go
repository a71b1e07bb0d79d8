package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/matheus3301/wamcp/internal/bus"
	"github.com/matheus3301/wamcp/internal/store"
	"github.com/matheus3301/wamcp/internal/wa"
	"go.uber.org/zap"
)

// Source supplies the account-level data pulled on every connect.
type Source interface {
	GetContacts(ctx context.Context) []store.Contact
	GetLIDMappings(ctx context.Context) []store.LIDMapping
	GroupNames(ctx context.Context) (map[string]string, error)
}

// HistoryStats is the payload of bus.KindHistoryIngest.
type HistoryStats struct {
	Messages int
	Chats    int
}

// Engine handles idempotent ingestion into the store. It subscribes to
// "wa." events and to connects on the bus and processes them in order.
type Engine struct {
	db          *store.DB
	bus         *bus.Bus
	source      Source
	checkpoints *Reconciler
	logger      *zap.Logger
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewEngine creates a new sync engine. source may be nil, in which case
// connects trigger no refresh.
func NewEngine(db *store.DB, b *bus.Bus, source Source, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:          db,
		bus:         b,
		source:      source,
		checkpoints: NewReconciler(db, logger),
		logger:      logger,
	}
}

// Start subscribes to the bus. Events are handled on one goroutine until
// ctx ends or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	inbound, unsubInbound := e.bus.Subscribe("wa.", 256)
	connects, unsubConnects := e.bus.Subscribe(bus.KindConnected, 4)

	go func() {
		defer close(e.done)
		defer unsubInbound()
		defer unsubConnects()
		for {
			select {
			case evt := <-inbound:
				e.handleEvent(evt)
			case <-connects:
				if err := e.Refresh(ctx); err != nil {
					e.logger.Error("refresh after connect failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the current event to finish.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch p := evt.Payload.(type) {
	case *store.Message:
		if err := e.IngestMessage(p); err != nil {
			e.logger.Error("failed to ingest message", zap.Error(err), zap.String("msg_id", p.MsgID))
		}
	case wa.HistoryBatch:
		if err := e.IngestHistory(p); err != nil {
			e.logger.Error("failed to ingest history batch", zap.Error(err), zap.Int("count", len(p.Messages)))
		}
	case wa.Receipt:
		if _, err := e.db.MarkStatus(p.ChatJID, p.MsgIDs, p.Status); err != nil {
			e.logger.Warn("failed to apply receipt", zap.Error(err), zap.String("chat_jid", p.ChatJID))
		}
	case store.Contact:
		if err := e.db.UpsertContact(&p); err != nil {
			e.logger.Warn("failed to upsert contact", zap.Error(err), zap.String("jid", p.JID))
		}
	case store.Chat:
		if err := e.db.SetChatName(p.JID, p.Name); err != nil {
			e.logger.Warn("failed to rename chat", zap.Error(err), zap.String("jid", p.JID))
		}
	default:
		e.logger.Debug("ignoring event", zap.String("kind", evt.Kind))
	}
}

// IngestMessage stores a single message and touches its chat (idempotent).
func (e *Engine) IngestMessage(msg *store.Message) error {
	e.resolveLID(msg)
	if _, err := e.db.IngestMessages([]*store.Message{msg}); err != nil {
		return err
	}
	if !msg.FromMe && msg.SenderName != "" && msg.SenderJID != "" {
		if err := e.db.UpsertContact(&store.Contact{JID: msg.SenderJID, PushName: msg.SenderName}); err != nil {
			return fmt.Errorf("upsert sender: %w", err)
		}
	}
	e.bus.Emit(bus.KindMessageUpserted, bus.MessageRef{ChatJID: msg.ChatJID, MsgID: msg.MsgID})
	return nil
}

// resolveLID files a message from a LID chat or sender under its phone
// number JID once the mapping is known.
func (e *Engine) resolveLID(msg *store.Message) {
	for _, jid := range []*string{&msg.ChatJID, &msg.SenderJID} {
		if !strings.HasSuffix(*jid, "@lid") {
			continue
		}
		pn, err := e.db.PhoneForLID(*jid)
		if err != nil {
			e.logger.Warn("lid lookup failed", zap.Error(err), zap.String("jid", *jid))
			continue
		}
		if pn != "" {
			*jid = pn
		}
	}
}

// IngestHistory stores one history sync batch: its messages in a single
// transaction, then conversation names and sender push names.
func (e *Engine) IngestHistory(batch wa.HistoryBatch) error {
	chats, err := e.db.IngestMessages(batch.Messages)
	if err != nil {
		return fmt.Errorf("ingest messages: %w", err)
	}
	for _, c := range batch.Chats {
		if err := e.db.SetChatName(c.JID, c.Name); err != nil {
			return fmt.Errorf("name chat %q: %w", c.JID, err)
		}
	}
	if len(batch.Contacts) > 0 {
		if err := e.db.BulkUpsertContacts(batch.Contacts); err != nil {
			return fmt.Errorf("upsert contacts: %w", err)
		}
	}
	e.checkpoints.Touch(CheckpointHistory)

	e.logger.Info("history batch ingested",
		zap.Int("messages", len(batch.Messages)), zap.Int("chats", chats))
	e.bus.Emit(bus.KindHistoryIngest, HistoryStats{Messages: len(batch.Messages), Chats: chats})
	return nil
}

// Refresh pulls contacts, LID mappings and group names from the source,
// then folds LID chats into their phone number chats.
func (e *Engine) Refresh(ctx context.Context) error {
	if e.source == nil {
		return nil
	}
	e.checkpoints.Touch(CheckpointConnected)

	contacts := e.source.GetContacts(ctx)
	if err := e.db.BulkUpsertContacts(contacts); err != nil {
		return fmt.Errorf("store contacts: %w", err)
	}

	if mappings := e.source.GetLIDMappings(ctx); len(mappings) > 0 {
		if err := e.db.SyncLIDMap(mappings); err != nil {
			return fmt.Errorf("store lid map: %w", err)
		}
		merged, err := e.db.ReconcileLIDs()
		if err != nil {
			return fmt.Errorf("reconcile lids: %w", err)
		}
		if merged > 0 {
			e.logger.Info("merged lid chats", zap.Int64("chats", merged))
		}
	}

	names, err := e.source.GroupNames(ctx)
	if err != nil {
		// Group names are cosmetic; contacts are already stored.
		e.logger.Warn("group names unavailable", zap.Error(err))
	}
	for jid, name := range names {
		if err := e.db.SetChatName(jid, name); err != nil {
			return fmt.Errorf("name group %q: %w", jid, err)
		}
	}

	e.bus.Emit(bus.KindContactsSynced, len(contacts))
	return nil
}
