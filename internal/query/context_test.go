package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestAssembleWindow(t *testing.T) {
	s := &memStore{messages: chatOf("c", 10)}
	a := NewAssembler(s)

	w, err := a.Assemble(context.Background(), "c-me", 2, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"c-mc", "c-md", "c-me", "c-mf", "c-mg", "c-mh"}, ids(w.Messages))
	anchor, ok := w.Anchor()
	require.True(t, ok)
	assert.Equal(t, "c-me", anchor.ID)
	assert.Equal(t, 2, w.Before)
	assert.Equal(t, 3, w.After)
}

func TestAssembleShortHistory(t *testing.T) {
	s := &memStore{messages: chatOf("c", 3)}
	a := NewAssembler(s)

	w, err := a.Assemble(context.Background(), "c-mb", 100, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"c-ma", "c-mb", "c-mc"}, ids(w.Messages))
}

func TestAssembleZeroWindow(t *testing.T) {
	s := &memStore{messages: chatOf("c", 3)}
	a := NewAssembler(s)

	w, err := a.Assemble(context.Background(), "c-mb", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c-mb"}, ids(w.Messages))
	assert.Equal(t, []string{"GetMessage"}, s.calls)
}

func TestAssembleStaysInAnchorChat(t *testing.T) {
	msgs := append(chatOf("a", 3), chatOf("b", 3)...)
	s := &memStore{messages: msgs}
	a := NewAssembler(s)

	w, err := a.Assemble(context.Background(), "b-mb", 5, 5)
	require.NoError(t, err)
	for _, m := range w.Messages {
		assert.Equal(t, "b", m.ChatJID)
	}
}

func TestAssembleErrors(t *testing.T) {
	s := &memStore{messages: chatOf("c", 3)}
	a := NewAssembler(s)
	ctx := context.Background()

	_, err := a.Assemble(ctx, "", 1, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = a.Assemble(ctx, "c-ma", -1, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = a.Assemble(ctx, "missing", 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	s.err = errors.New("disk I/O error")
	_, err = a.Assemble(ctx, "c-ma", 1, 1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestMergeDropsDuplicatesAndStrays(t *testing.T) {
	anchor := Message{ID: "x", Timestamp: t0}
	preceding := []Message{
		{ID: "p1", Timestamp: t0.Add(-time.Minute)},
		{ID: "x", Timestamp: t0},                   // anchor echoed back
		{ID: "late", Timestamp: t0.Add(time.Hour)}, // wrong side
		{ID: "p2", Timestamp: t0.Add(-2 * time.Minute)},
	}
	following := []Message{
		{ID: "f1", Timestamp: t0.Add(time.Minute)},
		{ID: "p1", Timestamp: t0.Add(-time.Minute)},
	}

	out := merge(anchor, preceding, following, 4, 4)
	assert.Equal(t, []string{"p2", "p1", "x", "f1"}, ids(out))
}

func TestMergeTruncatesOverlongInput(t *testing.T) {
	anchor := Message{ID: "x", Timestamp: t0}
	preceding := []Message{
		{ID: "p1", Timestamp: t0.Add(-time.Minute)},
		{ID: "p2", Timestamp: t0.Add(-2 * time.Minute)},
		{ID: "p3", Timestamp: t0.Add(-3 * time.Minute)},
	}
	out := merge(anchor, preceding, nil, 1, 0)
	assert.Equal(t, []string{"p1", "x"}, ids(out))
}

func TestMergeEqualTimestampsKeepOrder(t *testing.T) {
	anchor := Message{ID: "x", Timestamp: t0}
	preceding := []Message{{ID: "p1", Timestamp: t0}}
	following := []Message{{ID: "f1", Timestamp: t0}}

	out := merge(anchor, preceding, following, 1, 1)
	assert.Equal(t, []string{"p1", "x", "f1"}, ids(out))
}
