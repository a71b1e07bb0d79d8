package wa

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/matheus3301/wamcp/internal/store"
	"go.mau.fi/whatsmeow"
)

// VoiceMIME is the content type WhatsApp clients expect for voice notes.
const VoiceMIME = "audio/ogg; codecs=opus"

// ErrNoMedia is returned when a message carries nothing to download.
var ErrNoMedia = errors.New("message has no downloadable media")

// DetectMIME guesses the content type from the file extension, falling back
// to sniffing the first bytes.
func DetectMIME(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

// MediaKind maps a content type to the WhatsApp message kind that carries it.
func MediaKind(mimeType string) string {
	major, _, _ := strings.Cut(mimeType, "/")
	switch major {
	case "image", "video", "audio":
		return major
	}
	return "document"
}

// IsOgg reports whether data starts with an Ogg page.
func IsOgg(data []byte) bool {
	return bytes.HasPrefix(data, []byte("OggS"))
}

// oggHeaderLen is the fixed part of an Ogg page header, up to and including
// the segment count.
const oggHeaderLen = 27

// OggDuration returns the length in whole seconds of an Ogg Opus stream. It
// walks the pages from the start and reads the granule position of the last
// complete one; Opus always counts granules at 48 kHz. Unreadable input
// yields 0.
func OggDuration(data []byte) uint32 {
	var granule uint64
	for off := 0; off+oggHeaderLen <= len(data); {
		hdr := data[off:]
		if !IsOgg(hdr) || hdr[4] != 0 {
			break
		}
		segments := int(hdr[26])
		if off+oggHeaderLen+segments > len(data) {
			break
		}
		body := 0
		for _, lacing := range hdr[oggHeaderLen : oggHeaderLen+segments] {
			body += int(lacing)
		}
		next := off + oggHeaderLen + segments + body
		if next > len(data) {
			break
		}
		// -1 marks a page on which no packet ends.
		if g := binary.LittleEndian.Uint64(hdr[6:14]); g != ^uint64(0) {
			granule = g
		}
		off = next
	}
	return uint32(granule / 48000)
}

// Download fetches and decrypts a stored message's attachment into
// <media dir>/<chat>/<message id><ext> and returns the absolute path.
func (a *Adapter) Download(ctx context.Context, m *store.Message) (string, error) {
	if m == nil || !m.HasMedia() {
		return "", ErrNoMedia
	}
	msg, err := downloadable(m)
	if err != nil {
		return "", err
	}
	data, err := a.client.Download(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", m.MessageType, err)
	}

	path := MediaPath(a.mediaDir, m)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write media: %w", err)
	}
	return filepath.Abs(path)
}

// MediaPath is where the attachment of m is written under dir.
func MediaPath(dir string, m *store.Message) string {
	chat := strings.NewReplacer("@", "_", ":", "_", "/", "_").Replace(m.ChatJID)
	id := strings.NewReplacer("/", "_", "\\", "_").Replace(m.MsgID)
	return filepath.Join(dir, chat, id+mediaExt(m))
}

func mediaExt(m *store.Message) string {
	if ext := filepath.Ext(m.Media.Filename); ext != "" {
		return strings.ToLower(ext)
	}
	base, _, _ := strings.Cut(m.Media.MimeType, ";")
	switch base {
	case "image/jpeg":
		return ".jpg"
	case "audio/ogg":
		return ".ogg"
	case "image/webp":
		return ".webp"
	}
	if exts, _ := mime.ExtensionsByType(base); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// downloadable rebuilds the proto message whatsmeow needs to locate and
// decrypt the attachment.
func downloadable(m *store.Message) (whatsmeow.DownloadableMessage, error) {
	msg := buildMediaMessage(m.MessageType, m.Media, nil)
	switch m.MessageType {
	case "image":
		return msg.GetImageMessage(), nil
	case "video":
		return msg.GetVideoMessage(), nil
	case "audio":
		return msg.GetAudioMessage(), nil
	case "sticker":
		return msg.GetStickerMessage(), nil
	case "document":
		return msg.GetDocumentMessage(), nil
	}
	return nil, fmt.Errorf("%w: type %q", ErrNoMedia, m.MessageType)
}
