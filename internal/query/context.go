package query

import (
	"context"
	"slices"
	"strings"
)

// Assembler builds context windows around an anchor message.
type Assembler struct {
	store Store
}

// NewAssembler creates an assembler reading from store.
func NewAssembler(store Store) *Assembler {
	return &Assembler{store: store}
}

// Assemble locates the anchor message and merges up to before preceding and
// after following messages of its chat into one ascending sequence. A chat
// with less history yields a shorter window.
func (a *Assembler) Assemble(ctx context.Context, anchorID string, before, after int) (*ContextWindow, error) {
	return a.AssembleIn(ctx, "", anchorID, before, after)
}

// AssembleIn is Assemble with the anchor looked up inside one chat. An empty
// chatJID searches all chats.
func (a *Assembler) AssembleIn(ctx context.Context, chatJID, anchorID string, before, after int) (*ContextWindow, error) {
	anchorID = strings.TrimSpace(anchorID)
	if anchorID == "" {
		return nil, invalidf("message_context", "message_id is required")
	}
	if before < 0 || after < 0 {
		return nil, invalidf("message_context", "before/after must be non-negative")
	}

	anchor, err := a.store.GetMessage(ctx, chatJID, anchorID)
	if err != nil {
		return nil, unavailable("message_context", err)
	}
	if anchor == nil {
		return nil, notFoundf("message_context", "message %q not found", anchorID)
	}
	return a.around(ctx, *anchor, before, after)
}

// around assembles the window for an already located anchor.
func (a *Assembler) around(ctx context.Context, anchor Message, before, after int) (*ContextWindow, error) {
	var preceding, following []Message
	var err error
	if before > 0 {
		preceding, err = a.store.MessagesBefore(ctx, anchor.ChatJID, anchor.ID, before)
		if err != nil {
			return nil, unavailable("message_context", err)
		}
	}
	if after > 0 {
		following, err = a.store.MessagesAfter(ctx, anchor.ChatJID, anchor.ID, after)
		if err != nil {
			return nil, unavailable("message_context", err)
		}
	}

	return &ContextWindow{
		AnchorID: anchor.ID,
		Before:   before,
		After:    after,
		Messages: merge(anchor, preceding, following, before, after),
	}, nil
}

// merge joins preceding (nearest first), the anchor and following (nearest
// first) into one ascending run. The anchor appears exactly once; any other
// id seen twice keeps its first position.
func merge(anchor Message, preceding, following []Message, before, after int) []Message {
	if len(preceding) > before {
		preceding = preceding[:before]
	}
	if len(following) > after {
		following = following[:after]
	}

	out := make([]Message, 0, len(preceding)+1+len(following))
	seen := map[string]bool{anchor.ID: true}

	for i := len(preceding) - 1; i >= 0; i-- {
		m := preceding[i]
		if seen[m.ID] || m.Timestamp.After(anchor.Timestamp) {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	out = append(out, anchor)
	for _, m := range following {
		if seen[m.ID] || m.Timestamp.Before(anchor.Timestamp) {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}

	// Equal timestamps keep store order.
	slices.SortStableFunc(out, func(x, y Message) int {
		return x.Timestamp.Compare(y.Timestamp)
	})
	return out
}
