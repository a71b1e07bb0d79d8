package query

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Service composes parameter resolution, store reads and context assembly
// into the chat, contact and message operations exposed to callers. It holds
// no mutable state and is safe for concurrent use.
type Service struct {
	store     Store
	assembler *Assembler
	logger    *zap.Logger
}

// NewService creates a query service over store.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		assembler: NewAssembler(store),
		logger:    logger,
	}
}

// MessageContext returns the context window around a message.
func (s *Service) MessageContext(ctx context.Context, messageID string, before, after *int) (*ContextWindow, error) {
	b, a, err := ResolveWindow(before, after)
	if err != nil {
		return nil, err
	}
	return s.assembler.Assemble(ctx, messageID, b, a)
}

func requireJID(op, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", invalidf(op, "jid is required")
	}
	jid, ok := NormalizeJID(raw)
	if !ok {
		return "", invalidf(op, "%q is not a phone number or JID", raw)
	}
	return jid, nil
}
