package wa

import (
	"github.com/matheus3301/wamcp/internal/store"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// ParsedMessage is a normalized message ready for ingestion.
type ParsedMessage struct {
	ChatJID     string
	MsgID       string
	SenderJID   string
	SenderName  string
	Body        string
	MessageType string
	FromMe      bool
	Timestamp   int64
	Media       store.Media
}

// ParseLiveMessage normalizes a live whatsmeow message event.
func ParseLiveMessage(evt *events.Message) *ParsedMessage {
	return ParseHistoryMessage(evt.Message, evt.Info)
}

// ParseHistoryMessage normalizes a message given its envelope info.
func ParseHistoryMessage(msg *waE2E.Message, info types.MessageInfo) *ParsedMessage {
	msg = unwrap(msg)
	return &ParsedMessage{
		ChatJID:     info.Chat.ToNonAD().String(),
		MsgID:       info.ID,
		SenderJID:   info.Sender.ToNonAD().String(),
		SenderName:  info.PushName,
		Body:        extractTextBody(msg),
		MessageType: detectMessageType(msg),
		FromMe:      info.IsFromMe,
		Timestamp:   info.Timestamp.UnixMilli(),
		Media:       extractMedia(msg),
	}
}

// ToStoreMessage converts a ParsedMessage to a store.Message.
func (p *ParsedMessage) ToStoreMessage() *store.Message {
	status := "received"
	if p.FromMe {
		status = "sent"
	}
	return &store.Message{
		ChatJID:     p.ChatJID,
		MsgID:       p.MsgID,
		SenderJID:   p.SenderJID,
		SenderName:  p.SenderName,
		Body:        p.Body,
		MessageType: p.MessageType,
		FromMe:      p.FromMe,
		Status:      status,
		Timestamp:   p.Timestamp,
		Media:       p.Media,
	}
}

// unwrap peels ephemeral and view-once envelopes.
func unwrap(msg *waE2E.Message) *waE2E.Message {
	for range 3 {
		switch {
		case msg.GetEphemeralMessage().GetMessage() != nil:
			msg = msg.GetEphemeralMessage().GetMessage()
		case msg.GetViewOnceMessage().GetMessage() != nil:
			msg = msg.GetViewOnceMessage().GetMessage()
		case msg.GetViewOnceMessageV2().GetMessage() != nil:
			msg = msg.GetViewOnceMessageV2().GetMessage()
		case msg.GetDocumentWithCaptionMessage().GetMessage() != nil:
			msg = msg.GetDocumentWithCaptionMessage().GetMessage()
		default:
			return msg
		}
	}
	return msg
}

// extractTextBody returns the text of a message, or the caption of a media
// message.
func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	switch {
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetCaption()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetCaption()
	}
	return ""
}

func detectMessageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil:
		return "location"
	default:
		return "unknown"
	}
}

// attachment is the part every downloadable message type shares.
type attachment interface {
	GetURL() string
	GetDirectPath() string
	GetMimetype() string
	GetMediaKey() []byte
	GetFileSHA256() []byte
	GetFileEncSHA256() []byte
	GetFileLength() uint64
}

// extractMedia returns the download keys of a media message. Text yields
// the zero Media.
func extractMedia(msg *waE2E.Message) store.Media {
	var (
		att      attachment
		filename string
	)
	switch {
	case msg.GetImageMessage() != nil:
		att = msg.GetImageMessage()
	case msg.GetVideoMessage() != nil:
		att = msg.GetVideoMessage()
	case msg.GetAudioMessage() != nil:
		att = msg.GetAudioMessage()
	case msg.GetStickerMessage() != nil:
		att = msg.GetStickerMessage()
	case msg.GetDocumentMessage() != nil:
		att = msg.GetDocumentMessage()
		filename = msg.GetDocumentMessage().GetFileName()
	default:
		return store.Media{}
	}
	return store.Media{
		Filename:      filename,
		MimeType:      att.GetMimetype(),
		URL:           att.GetURL(),
		DirectPath:    att.GetDirectPath(),
		MediaKey:      att.GetMediaKey(),
		FileSHA256:    att.GetFileSHA256(),
		FileEncSHA256: att.GetFileEncSHA256(),
		FileLength:    att.GetFileLength(),
	}
}
