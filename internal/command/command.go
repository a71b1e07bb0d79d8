// Package command validates outgoing WhatsApp commands and maps the bridge's
// outcome onto a uniform Result. Failures are results, never errors.
package command

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Result is the outcome of one command. FilePath is set only by a
// successful download.
type Result struct {
	Success  bool
	Message  string
	FilePath string
}

func (r Result) Fields() map[string]any {
	f := map[string]any{
		"success": r.Success,
		"message": r.Message,
	}
	if r.Success && r.FilePath != "" {
		f["file_path"] = r.FilePath
	}
	return f
}

// Bridge performs commands against the WhatsApp network. Sends return a
// human readable status; DownloadMedia returns the local file path.
type Bridge interface {
	SendText(ctx context.Context, recipient, body string) (string, error)
	SendFile(ctx context.Context, recipient, path string) (string, error)
	SendVoice(ctx context.Context, recipient, path string) (string, error)
	DownloadMedia(ctx context.Context, chatJID, msgID string) (string, error)
}

// Service is the command facade. It holds no state besides its
// collaborators and never retries.
type Service struct {
	bridge Bridge
	logger *zap.Logger
}

// NewService creates a command facade over bridge.
func NewService(bridge Bridge, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{bridge: bridge, logger: logger}
}

// SendMessage sends a text message to a phone number or JID.
func (s *Service) SendMessage(ctx context.Context, recipient, message string) Result {
	if r, ok := require("Recipient", recipient, "Message", message); !ok {
		return r
	}
	return s.finish("send_message", recipient)(s.bridge.SendText(ctx, strings.TrimSpace(recipient), message))
}

// SendFile sends an image, video, audio file or document.
func (s *Service) SendFile(ctx context.Context, recipient, mediaPath string) Result {
	if r, ok := require("Recipient", recipient, "Media path", mediaPath); !ok {
		return r
	}
	return s.finish("send_file", recipient)(s.bridge.SendFile(ctx, strings.TrimSpace(recipient), strings.TrimSpace(mediaPath)))
}

// SendAudioMessage sends an audio file as a voice note.
func (s *Service) SendAudioMessage(ctx context.Context, recipient, mediaPath string) Result {
	if r, ok := require("Recipient", recipient, "Media path", mediaPath); !ok {
		return r
	}
	return s.finish("send_audio_message", recipient)(s.bridge.SendVoice(ctx, strings.TrimSpace(recipient), strings.TrimSpace(mediaPath)))
}

// DownloadMedia fetches a message's attachment to local disk. Only a
// non-empty path counts as success.
func (s *Service) DownloadMedia(ctx context.Context, messageID, chatJID string) Result {
	if r, ok := require("Message ID", messageID, "Chat JID", chatJID); !ok {
		return r
	}
	path, err := s.bridge.DownloadMedia(ctx, strings.TrimSpace(chatJID), strings.TrimSpace(messageID))
	if err != nil || path == "" {
		s.logger.Warn("download failed",
			zap.String("msg_id", messageID), zap.String("chat_jid", chatJID), zap.Error(err))
		return Result{Message: "Failed to download media"}
	}
	return Result{Success: true, Message: "Media downloaded successfully", FilePath: path}
}

func (s *Service) finish(op, recipient string) func(string, error) Result {
	return func(status string, err error) Result {
		if err != nil {
			s.logger.Warn("command failed", zap.String("op", op), zap.String("recipient", recipient), zap.Error(err))
			return Result{Message: err.Error()}
		}
		return Result{Success: true, Message: status}
	}
}

// require checks name/value pairs in order and reports the first empty one.
func require(pairs ...string) (Result, bool) {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return Result{Message: pairs[i] + " must be provided"}, false
		}
	}
	return Result{}, true
}
