package wa

import (
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/matheus3301/wamcp/internal/store"
)

func TestMediaKind(t *testing.T) {
	tests := map[string]string{
		"image/jpeg":            "image",
		"video/mp4":             "video",
		"audio/mpeg":            "audio",
		VoiceMIME:               "audio",
		"application/pdf":       "document",
		"text/plain; charset=x": "document",
		"":                      "document",
	}
	for in, want := range tests {
		if got := MediaKind(in); got != want {
			t.Errorf("MediaKind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetectMIME(t *testing.T) {
	if got := DetectMIME("photo.PNG", nil); got != "image/png" {
		t.Errorf("DetectMIME(photo.PNG) = %q, want image/png", got)
	}
	// No extension: sniffed from content.
	if got := DetectMIME("blob", []byte("%PDF-1.7\n")); got != "application/pdf" {
		t.Errorf("DetectMIME(pdf bytes) = %q, want application/pdf", got)
	}
}

// oggPage builds a page carrying payload as one segment.
func oggPage(granule uint64, payload ...byte) []byte {
	page := make([]byte, 27, 28+len(payload))
	copy(page, "OggS")
	binary.LittleEndian.PutUint64(page[6:14], granule)
	page[26] = 1
	page = append(page, byte(len(payload)))
	return append(page, payload...)
}

func TestOggDuration(t *testing.T) {
	data := append(oggPage(0), oggPage(48000*3+100)...)
	if !IsOgg(data) {
		t.Fatal("IsOgg() = false for an Ogg page")
	}
	if got := OggDuration(data); got != 3 {
		t.Errorf("OggDuration() = %d, want 3", got)
	}
	if got := OggDuration(append(data, oggPage(^uint64(0))...)); got != 3 {
		t.Errorf("OggDuration() with a continued last page = %d, want 3", got)
	}
	if got := OggDuration([]byte("RIFF....WAVE")); got != 0 {
		t.Errorf("OggDuration(wav) = %d, want 0", got)
	}
	if IsOgg([]byte("ID3")) {
		t.Error("IsOgg(mp3) = true")
	}
}

func TestOggDurationIgnoresCaptureInPayload(t *testing.T) {
	// The audio bytes of the last page happen to spell a page header.
	fake := make([]byte, 27)
	copy(fake, "OggS")
	binary.LittleEndian.PutUint64(fake[6:14], 48000*999)
	data := append(oggPage(0), oggPage(48000*5, fake...)...)

	if got := OggDuration(data); got != 5 {
		t.Errorf("OggDuration() = %d, want 5", got)
	}

	// A truncated trailing page does not count.
	truncated := append(data, oggPage(48000*9, 1, 2, 3)[:29]...)
	if got := OggDuration(truncated); got != 5 {
		t.Errorf("OggDuration(truncated) = %d, want 5", got)
	}

	bad := oggPage(48000 * 7)
	bad[4] = 1
	if got := OggDuration(bad); got != 0 {
		t.Errorf("OggDuration(version 1) = %d, want 0", got)
	}
}

func TestMediaPath(t *testing.T) {
	tests := []struct {
		name string
		msg  store.Message
		want string
	}{
		{
			"filename extension wins",
			store.Message{ChatJID: "123@s.whatsapp.net", MsgID: "ABC", Media: store.Media{Filename: "Report.PDF", MimeType: "application/pdf"}},
			filepath.Join("/m", "123_s.whatsapp.net", "ABC.pdf"),
		},
		{
			"jpeg from mime",
			store.Message{ChatJID: "1203@g.us", MsgID: "X1", Media: store.Media{MimeType: "image/jpeg"}},
			filepath.Join("/m", "1203_g.us", "X1.jpg"),
		},
		{
			"voice note",
			store.Message{ChatJID: "1@s.whatsapp.net", MsgID: "V", Media: store.Media{MimeType: VoiceMIME}},
			filepath.Join("/m", "1_s.whatsapp.net", "V.ogg"),
		},
		{
			"unknown type",
			store.Message{ChatJID: "1@s.whatsapp.net", MsgID: "../x", Media: store.Media{}},
			filepath.Join("/m", "1_s.whatsapp.net", ".._x.bin"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MediaPath("/m", &tt.msg); got != tt.want {
				t.Errorf("MediaPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDownloadableRejectsText(t *testing.T) {
	_, err := downloadable(&store.Message{MessageType: "text", Media: store.Media{DirectPath: "/x"}})
	if !errors.Is(err, ErrNoMedia) {
		t.Errorf("err = %v, want ErrNoMedia", err)
	}
	d, err := downloadable(&store.Message{MessageType: "image", Media: store.Media{DirectPath: "/v/t62", MediaKey: []byte{1}}})
	if err != nil {
		t.Fatal(err)
	}
	if d.GetDirectPath() != "/v/t62" {
		t.Errorf("direct path = %q, want /v/t62", d.GetDirectPath())
	}
}

func TestDownloadWithoutMedia(t *testing.T) {
	a := &Adapter{}
	if _, err := a.Download(t.Context(), &store.Message{MessageType: "text"}); !errors.Is(err, ErrNoMedia) {
		t.Errorf("err = %v, want ErrNoMedia", err)
	}
}
