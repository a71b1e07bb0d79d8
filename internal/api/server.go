// Package api exposes the query and command facades as MCP tools.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/matheus3301/wamcp/internal/command"
	"github.com/matheus3301/wamcp/internal/query"
	"github.com/matheus3301/wamcp/internal/serialize"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

// ServerName is announced to MCP clients.
const ServerName = "whatsapp"

// Server is the MCP tool surface over the query and command facades.
type Server struct {
	queries  *query.Service
	commands *command.Service
	logger   *zap.Logger
	mcp      *server.MCPServer
}

// NewServer creates an MCP server with every tool registered.
func NewServer(queries *query.Service, commands *command.Service, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		queries:  queries,
		commands: commands,
		logger:   logger,
		mcp: server.NewMCPServer(ServerName, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.mcp.AddTools(s.tools()...)
	return s
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// handler computes a tool's result from decoded arguments.
type handler func(ctx context.Context, a *args) (any, error)

// tool turns h into an MCP handler: decoding errors and facade errors become
// error results, anything else is serialized to JSON text.
func (s *Server) tool(h handler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		a := newArgs(req)
		v, err := h(ctx, a)
		if err == nil {
			err = a.err
		}
		if err != nil {
			var qe *query.Error
			if !errors.As(err, &qe) {
				err = &query.Error{Code: codes.Internal, Op: req.Params.Name, Err: err}
			}
			s.logger.Info("tool call rejected", zap.String("tool", req.Params.Name), zap.Error(err))
			return mcp.NewToolResultError(err.Error()), nil
		}

		out, err := json.Marshal(serialize.Value(v))
		if err != nil {
			return nil, err
		}
		s.logger.Debug("tool call",
			zap.String("tool", req.Params.Name), zap.Duration("took", time.Since(start)))
		return mcp.NewToolResultText(string(out)), nil
	}
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("search_contacts",
				mcp.WithDescription("Search WhatsApp contacts by name or phone number."),
				mcp.WithString("query", mcp.Required(), mcp.Description("Text to match against contact names or phone numbers")),
			),
			Handler: s.tool(s.searchContacts),
		},
		{
			Tool: mcp.NewTool("list_messages",
				mcp.WithDescription("Get WhatsApp messages matching specified criteria with optional context."),
				mcp.WithString("after", mcp.Description("Only messages at or after this ISO-8601 time")),
				mcp.WithString("before", mcp.Description("Only messages before this ISO-8601 time")),
				mcp.WithString("sender_phone_number", mcp.Description("Only messages from this phone number")),
				mcp.WithString("chat_jid", mcp.Description("Only messages in this chat")),
				mcp.WithString("query", mcp.Description("Text the message content must contain")),
				mcp.WithNumber("limit", mcp.DefaultNumber(query.DefaultLimit), mcp.Description("Maximum number of messages")),
				mcp.WithNumber("page", mcp.DefaultNumber(0), mcp.Description("Zero-based page number")),
				mcp.WithBoolean("include_context", mcp.DefaultBool(true), mcp.Description("Attach surrounding messages to each match")),
				mcp.WithNumber("context_before", mcp.DefaultNumber(query.DefaultContextBefore)),
				mcp.WithNumber("context_after", mcp.DefaultNumber(query.DefaultContextAfter)),
			),
			Handler: s.tool(s.listMessages),
		},
		{
			Tool: mcp.NewTool("list_chats",
				mcp.WithDescription("Get WhatsApp chats matching specified criteria."),
				mcp.WithString("query", mcp.Description("Text the chat name or JID must contain")),
				mcp.WithNumber("limit", mcp.DefaultNumber(query.DefaultLimit)),
				mcp.WithNumber("page", mcp.DefaultNumber(0)),
				mcp.WithBoolean("include_last_message", mcp.DefaultBool(true)),
				mcp.WithString("sort_by", mcp.DefaultString(string(query.SortLastActive)),
					mcp.Enum(string(query.SortLastActive), string(query.SortName))),
			),
			Handler: s.tool(s.listChats),
		},
		{
			Tool: mcp.NewTool("get_chat",
				mcp.WithDescription("Get WhatsApp chat metadata by JID."),
				mcp.WithString("chat_jid", mcp.Required()),
				mcp.WithBoolean("include_last_message", mcp.DefaultBool(true)),
			),
			Handler: s.tool(s.getChat),
		},
		{
			Tool: mcp.NewTool("get_direct_chat_by_contact",
				mcp.WithDescription("Get WhatsApp chat metadata by sender phone number."),
				mcp.WithString("sender_phone_number", mcp.Required()),
			),
			Handler: s.tool(s.getDirectChat),
		},
		{
			Tool: mcp.NewTool("get_contact_chats",
				mcp.WithDescription("Get all WhatsApp chats involving the contact."),
				mcp.WithString("jid", mcp.Required(), mcp.Description("Contact JID or phone number")),
				mcp.WithNumber("limit", mcp.DefaultNumber(query.DefaultLimit)),
				mcp.WithNumber("page", mcp.DefaultNumber(0)),
			),
			Handler: s.tool(s.getContactChats),
		},
		{
			Tool: mcp.NewTool("get_last_interaction",
				mcp.WithDescription("Get most recent WhatsApp message involving the contact."),
				mcp.WithString("jid", mcp.Required(), mcp.Description("Contact JID or phone number")),
			),
			Handler: s.tool(s.getLastInteraction),
		},
		{
			Tool: mcp.NewTool("get_message_context",
				mcp.WithDescription("Get context around a specific WhatsApp message."),
				mcp.WithString("message_id", mcp.Required()),
				mcp.WithNumber("before", mcp.DefaultNumber(query.DefaultWindowSize)),
				mcp.WithNumber("after", mcp.DefaultNumber(query.DefaultWindowSize)),
			),
			Handler: s.tool(s.getMessageContext),
		},
		{
			Tool: mcp.NewTool("send_message",
				mcp.WithDescription("Send a WhatsApp message to a person or group."),
				mcp.WithString("recipient", mcp.Required(), mcp.Description("Phone number with country code, or a chat JID")),
				mcp.WithString("message", mcp.Required()),
			),
			Handler: s.tool(s.sendMessage),
		},
		{
			Tool: mcp.NewTool("send_file",
				mcp.WithDescription("Send an image, video, raw audio, or document via WhatsApp."),
				mcp.WithString("recipient", mcp.Required()),
				mcp.WithString("media_path", mcp.Required(), mcp.Description("Absolute path of the file to send")),
			),
			Handler: s.tool(s.sendFile),
		},
		{
			Tool: mcp.NewTool("send_audio_message",
				mcp.WithDescription("Send an audio file as a WhatsApp voice message."),
				mcp.WithString("recipient", mcp.Required()),
				mcp.WithString("media_path", mcp.Required(), mcp.Description("Absolute path of an .ogg Opus file")),
			),
			Handler: s.tool(s.sendAudioMessage),
		},
		{
			Tool: mcp.NewTool("download_media",
				mcp.WithDescription("Download media from a WhatsApp message and get the local file path."),
				mcp.WithString("message_id", mcp.Required()),
				mcp.WithString("chat_jid", mcp.Required()),
			),
			Handler: s.tool(s.downloadMedia),
		},
	}
}
