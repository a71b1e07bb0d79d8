package api

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/matheus3301/wamcp/internal/command"
	"github.com/matheus3301/wamcp/internal/query"
	"github.com/matheus3301/wamcp/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	anaJID   = "5511999990000@s.whatsapp.net"
	groupJID = "120363123456@g.us"
)

var base = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

type fakeBridge struct {
	calls []string
	path  string
}

func (f *fakeBridge) SendText(_ context.Context, recipient, _ string) (string, error) {
	f.calls = append(f.calls, "text:"+recipient)
	return "Message sent to " + recipient, nil
}

func (f *fakeBridge) SendFile(_ context.Context, recipient, _ string) (string, error) {
	f.calls = append(f.calls, "file:"+recipient)
	return "File sent", nil
}

func (f *fakeBridge) SendVoice(_ context.Context, recipient, _ string) (string, error) {
	f.calls = append(f.calls, "voice:"+recipient)
	return "Voice message sent", nil
}

func (f *fakeBridge) DownloadMedia(_ context.Context, chatJID, msgID string) (string, error) {
	f.calls = append(f.calls, "download:"+chatJID+"/"+msgID)
	return f.path, nil
}

func newTestServer(t *testing.T) (*Server, *fakeBridge) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Migrate()
	require.NoError(t, err)

	require.NoError(t, db.UpsertContact(&store.Contact{JID: anaJID, Name: "Ana"}))
	require.NoError(t, db.SetChatName(groupJID, "Family"))
	_, err = db.IngestMessages([]*store.Message{
		{ChatJID: anaJID, MsgID: "a1", SenderJID: anaJID, Body: "hi", MessageType: "text", Status: "received", Timestamp: base.UnixMilli()},
		{ChatJID: anaJID, MsgID: "a2", Body: "hello Ana", MessageType: "text", FromMe: true, Status: "sent", Timestamp: base.Add(time.Minute).UnixMilli()},
		{ChatJID: anaJID, MsgID: "a3", SenderJID: anaJID, Body: "lunch?", MessageType: "text", Status: "received", Timestamp: base.Add(2 * time.Minute).UnixMilli()},
		{ChatJID: groupJID, MsgID: "g1", SenderJID: anaJID, Body: "photo", MessageType: "image", Status: "received", Timestamp: base.Add(-time.Hour).UnixMilli()},
	})
	require.NoError(t, err)

	bridge := &fakeBridge{path: "/tmp/media/g1.jpg"}
	s := NewServer(query.NewService(db, nil), command.NewService(bridge, nil), "test", zap.NewNop())
	return s, bridge
}

func call(t *testing.T, s *Server, name string, arguments map[string]any) *mcp.CallToolResult {
	t.Helper()
	for _, st := range s.tools() {
		if st.Tool.Name != name {
			continue
		}
		res, err := st.Handler(context.Background(), mcp.CallToolRequest{
			Params: mcp.CallToolParams{Name: name, Arguments: arguments},
		})
		require.NoError(t, err)
		require.NotNil(t, res)
		return res
	}
	t.Fatalf("tool %q not registered", name)
	return nil
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, "unexpected error result: %s", textOf(t, res))
	var v T
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &v))
	return v
}

func TestToolsAreRegistered(t *testing.T) {
	s, _ := newTestServer(t)

	raw := s.MCP().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	out, err := json.Marshal(raw)
	require.NoError(t, err)

	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(out, &resp))

	var names []string
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"search_contacts", "list_messages", "list_chats", "get_chat",
		"get_direct_chat_by_contact", "get_contact_chats", "get_last_interaction",
		"get_message_context", "send_message", "send_file", "send_audio_message",
		"download_media",
	}, names)
}

func TestListChats(t *testing.T) {
	s, _ := newTestServer(t)

	chats := decode[[]map[string]any](t, call(t, s, "list_chats", nil))
	require.Len(t, chats, 2)
	assert.Equal(t, anaJID, chats[0]["jid"])
	assert.Equal(t, "lunch?", chats[0]["last_message"])
	assert.Equal(t, "2025-01-15T12:02:00.000Z", chats[0]["last_message_time"])
	assert.Equal(t, true, chats[1]["is_group"])
}

func TestListChatsArguments(t *testing.T) {
	s, _ := newTestServer(t)

	byName := decode[[]map[string]any](t, call(t, s, "list_chats", map[string]any{"sort": "name", "include_last_message": false}))
	require.Len(t, byName, 2)
	assert.Equal(t, "Ana", byName[0]["name"])
	assert.NotContains(t, byName[0], "last_message")

	paged := decode[[]map[string]any](t, call(t, s, "list_chats", map[string]any{"limit": "1", "page": float64(1)}))
	require.Len(t, paged, 1)
	assert.Equal(t, groupJID, paged[0]["jid"])
}

func TestInvalidArgumentsAreErrorResults(t *testing.T) {
	s, bridge := newTestServer(t)

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"unknown sort", "list_chats", map[string]any{"sort_by": "popularity"}, "invalid_argument: resolve"},
		{"fractional limit", "list_chats", map[string]any{"limit": 1.5}, "invalid_argument: list_chats: limit"},
		{"zero limit", "list_messages", map[string]any{"limit": float64(0)}, "invalid_argument"},
		{"string for bool", "list_messages", map[string]any{"include_context": "maybe"}, "include_context"},
		{"number for string", "get_chat", map[string]any{"chat_jid": float64(5)}, "chat_jid: want a string"},
		{"inverted range", "list_messages", map[string]any{"after": "2025-02-01", "before": "2025-01-01"}, "invalid_argument"},
		{"unknown chat", "get_chat", map[string]any{"chat_jid": "nonexistent-id"}, "not_found: get_chat"},
		{"partial phone number", "get_direct_chat_by_contact", map[string]any{"sender_phone_number": "1"}, "not_found: get_direct_chat_by_contact"},
		{"unknown message", "get_message_context", map[string]any{"message_id": "nope"}, "not_found"},
		{"empty query", "search_contacts", map[string]any{}, "invalid_argument: search_contacts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, s, tt.tool, tt.args)
			assert.True(t, res.IsError)
			assert.Contains(t, textOf(t, res), tt.want)
		})
	}
	assert.Empty(t, bridge.calls)
}

func TestGetChat(t *testing.T) {
	s, _ := newTestServer(t)

	chat := decode[map[string]any](t, call(t, s, "get_chat", map[string]any{"chat_jid": groupJID}))
	assert.Equal(t, "Family", chat["name"])
	assert.Equal(t, "photo", chat["last_message"])
	assert.Equal(t, "image", chat["last_media_type"])

	direct := decode[map[string]any](t, call(t, s, "get_direct_chat_by_contact", map[string]any{"sender_phone_number": "+55 11 99999-0000"}))
	assert.Equal(t, anaJID, direct["jid"])
}

func TestListMessages(t *testing.T) {
	s, _ := newTestServer(t)

	entries := decode[[]map[string]any](t, call(t, s, "list_messages", map[string]any{
		"chat_jid": anaJID, "query": "hello",
	}))
	require.Len(t, entries, 1)
	msg := entries[0]["message"].(map[string]any)
	assert.Equal(t, "a2", msg["id"])
	assert.Equal(t, true, msg["is_from_me"])

	window := entries[0]["context"].(map[string]any)
	msgs := window["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "a1", msgs[0].(map[string]any)["id"])
	assert.Equal(t, "a3", msgs[2].(map[string]any)["id"])

	bare := decode[[]map[string]any](t, call(t, s, "list_messages", map[string]any{
		"sender_phone_number": "5511999990000", "include_context": false,
	}))
	require.Len(t, bare, 3)
	assert.NotContains(t, bare[0], "context")
	assert.Equal(t, "a3", bare[0]["message"].(map[string]any)["id"])
}

func TestMessageContextAndInteraction(t *testing.T) {
	s, _ := newTestServer(t)

	w := decode[map[string]any](t, call(t, s, "get_message_context", map[string]any{"message_id": "a2", "before": 1, "after": 0}))
	assert.Equal(t, "a2", w["anchor_id"])
	assert.Len(t, w["messages"], 2)

	last := decode[*string](t, call(t, s, "get_last_interaction", map[string]any{"jid": anaJID}))
	require.NotNil(t, last)
	assert.Equal(t, "2025-01-15T12:02:00.000Z", *last)

	none := decode[*string](t, call(t, s, "get_last_interaction", map[string]any{"jid": "5599@s.whatsapp.net"}))
	assert.Nil(t, none)

	chats := decode[[]map[string]any](t, call(t, s, "get_contact_chats", map[string]any{"jid": anaJID}))
	assert.Len(t, chats, 2)
}

func TestSearchContacts(t *testing.T) {
	s, _ := newTestServer(t)

	contacts := decode[[]map[string]any](t, call(t, s, "search_contacts", map[string]any{"query": "ana"}))
	require.Len(t, contacts, 1)
	assert.Equal(t, "5511999990000", contacts[0]["phone_number"])
	assert.Equal(t, []any{anaJID}, contacts[0]["chat_jids"])
}

func TestCommands(t *testing.T) {
	s, bridge := newTestServer(t)

	rejected := decode[map[string]any](t, call(t, s, "send_message", map[string]any{"message": "hi"}))
	assert.Equal(t, false, rejected["success"])
	assert.Equal(t, "Recipient must be provided", rejected["message"])
	assert.Empty(t, bridge.calls)

	sent := decode[map[string]any](t, call(t, s, "send_message", map[string]any{"recipient": anaJID, "message": "hi"}))
	assert.Equal(t, true, sent["success"])
	assert.NotContains(t, sent, "file_path")

	_ = call(t, s, "send_file", map[string]any{"recipient": anaJID, "media_path": "/tmp/a.pdf"})
	_ = call(t, s, "send_audio_message", map[string]any{"recipient": anaJID, "media_path": "/tmp/a.ogg"})

	dl := decode[map[string]any](t, call(t, s, "download_media", map[string]any{"message_id": "g1", "chat_jid": groupJID}))
	assert.Equal(t, true, dl["success"])
	assert.Equal(t, "/tmp/media/g1.jpg", dl["file_path"])

	assert.Equal(t, []string{
		"text:" + anaJID, "file:" + anaJID, "voice:" + anaJID, "download:" + groupJID + "/g1",
	}, bridge.calls)
}

func TestDownloadWithoutPathFails(t *testing.T) {
	s, bridge := newTestServer(t)
	bridge.path = ""

	dl := decode[map[string]any](t, call(t, s, "download_media", map[string]any{"message_id": "g1", "chat_jid": groupJID}))
	assert.Equal(t, false, dl["success"])
	assert.Equal(t, "Failed to download media", dl["message"])
	assert.NotContains(t, dl, "file_path")
}
