package wa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matheus3301/wamcp/internal/store"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/proto"
)

// Sent describes a message the server accepted.
type Sent struct {
	ID          string
	ChatJID     string
	Timestamp   time.Time
	MessageType string
	Body        string
	Media       store.Media
}

// Store returns the stored form of s as an outgoing message.
func (s *Sent) Store() *store.Message {
	return &store.Message{
		ChatJID:     s.ChatJID,
		MsgID:       s.ID,
		Body:        s.Body,
		MessageType: s.MessageType,
		FromMe:      true,
		Status:      "sent",
		Timestamp:   s.Timestamp.UnixMilli(),
		Media:       s.Media,
	}
}

// SendText sends a text message to a phone number or JID.
func (a *Adapter) SendText(ctx context.Context, recipient, text string) (*Sent, error) {
	to, err := ParseRecipient(recipient)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &Sent{ID: resp.ID, ChatJID: to.String(), Timestamp: resp.Timestamp, MessageType: "text", Body: text}, nil
}

// SendFile uploads path and sends it as an image, video, audio or document
// message depending on its content type.
func (a *Adapter) SendFile(ctx context.Context, recipient, path string) (*Sent, error) {
	to, err := ParseRecipient(recipient)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	mimeType := DetectMIME(path, data)
	kind := MediaKind(mimeType)

	up, err := a.client.Upload(ctx, data, uploadType(kind))
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", kind, err)
	}

	media := store.Media{
		Filename:      filepath.Base(path),
		MimeType:      mimeType,
		URL:           up.URL,
		DirectPath:    up.DirectPath,
		MediaKey:      up.MediaKey,
		FileSHA256:    up.FileSHA256,
		FileEncSHA256: up.FileEncSHA256,
		FileLength:    up.FileLength,
	}
	resp, err := a.client.SendMessage(ctx, to, buildMediaMessage(kind, media, nil))
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", kind, err)
	}
	return &Sent{ID: resp.ID, ChatJID: to.String(), Timestamp: resp.Timestamp, MessageType: kind, Media: media}, nil
}

// SendVoice sends an Ogg Opus file as a push-to-talk voice note. Other
// formats are refused: there is no transcoding.
func (a *Adapter) SendVoice(ctx context.Context, recipient, path string) (*Sent, error) {
	if !strings.EqualFold(filepath.Ext(path), ".ogg") && !strings.EqualFold(filepath.Ext(path), ".opus") {
		return nil, fmt.Errorf("voice messages must be Ogg Opus (.ogg), got %q; convert it first or use send_file", filepath.Base(path))
	}
	to, err := ParseRecipient(recipient)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if !IsOgg(data) {
		return nil, fmt.Errorf("%s is not an Ogg container", filepath.Base(path))
	}

	up, err := a.client.Upload(ctx, data, whatsmeow.MediaAudio)
	if err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}
	media := store.Media{
		Filename:      filepath.Base(path),
		MimeType:      VoiceMIME,
		URL:           up.URL,
		DirectPath:    up.DirectPath,
		MediaKey:      up.MediaKey,
		FileSHA256:    up.FileSHA256,
		FileEncSHA256: up.FileEncSHA256,
		FileLength:    up.FileLength,
	}
	seconds := OggDuration(data)
	resp, err := a.client.SendMessage(ctx, to, buildMediaMessage("audio", media, &seconds))
	if err != nil {
		return nil, fmt.Errorf("send voice: %w", err)
	}
	return &Sent{ID: resp.ID, ChatJID: to.String(), Timestamp: resp.Timestamp, MessageType: "audio", Media: media}, nil
}

func uploadType(kind string) whatsmeow.MediaType {
	switch kind {
	case "image":
		return whatsmeow.MediaImage
	case "video":
		return whatsmeow.MediaVideo
	case "audio":
		return whatsmeow.MediaAudio
	default:
		return whatsmeow.MediaDocument
	}
}

// buildMediaMessage builds the message for kind from stored media fields.
// A non-nil voiceSeconds marks audio as a voice note.
func buildMediaMessage(kind string, m store.Media, voiceSeconds *uint32) *waE2E.Message {
	switch kind {
	case "image":
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			URL: proto.String(m.URL), DirectPath: proto.String(m.DirectPath), Mimetype: proto.String(m.MimeType),
			MediaKey: m.MediaKey, FileSHA256: m.FileSHA256, FileEncSHA256: m.FileEncSHA256, FileLength: proto.Uint64(m.FileLength),
		}}
	case "video":
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			URL: proto.String(m.URL), DirectPath: proto.String(m.DirectPath), Mimetype: proto.String(m.MimeType),
			MediaKey: m.MediaKey, FileSHA256: m.FileSHA256, FileEncSHA256: m.FileEncSHA256, FileLength: proto.Uint64(m.FileLength),
		}}
	case "audio":
		audio := &waE2E.AudioMessage{
			URL: proto.String(m.URL), DirectPath: proto.String(m.DirectPath), Mimetype: proto.String(m.MimeType),
			MediaKey: m.MediaKey, FileSHA256: m.FileSHA256, FileEncSHA256: m.FileEncSHA256, FileLength: proto.Uint64(m.FileLength),
		}
		if voiceSeconds != nil {
			audio.PTT = proto.Bool(true)
			audio.Seconds = voiceSeconds
		}
		return &waE2E.Message{AudioMessage: audio}
	case "sticker":
		return &waE2E.Message{StickerMessage: &waE2E.StickerMessage{
			URL: proto.String(m.URL), DirectPath: proto.String(m.DirectPath), Mimetype: proto.String(m.MimeType),
			MediaKey: m.MediaKey, FileSHA256: m.FileSHA256, FileEncSHA256: m.FileEncSHA256, FileLength: proto.Uint64(m.FileLength),
		}}
	default:
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			URL: proto.String(m.URL), DirectPath: proto.String(m.DirectPath), Mimetype: proto.String(m.MimeType),
			MediaKey: m.MediaKey, FileSHA256: m.FileSHA256, FileEncSHA256: m.FileEncSHA256, FileLength: proto.Uint64(m.FileLength),
			FileName: proto.String(m.Filename), Title: proto.String(m.Filename),
		}}
	}
}
