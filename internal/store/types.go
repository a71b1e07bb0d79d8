package store

// Chat represents a synced chat.
type Chat struct {
	JID                string
	Name               string
	IsGroup            bool
	UnreadCount        int
	LastMessageAt      int64
	LastMessagePreview string
}

// Contact represents a synced contact.
type Contact struct {
	JID      string
	Name     string
	PushName string
}

// Media holds what is needed to fetch and decrypt a message attachment.
type Media struct {
	Filename      string
	MimeType      string
	URL           string
	DirectPath    string
	MediaKey      []byte
	FileSHA256    []byte
	FileEncSHA256 []byte
	FileLength    uint64
}

// Message represents a synced message. Timestamp is Unix milliseconds.
type Message struct {
	ID          int64
	ChatJID     string
	MsgID       string
	SenderJID   string
	SenderName  string
	Body        string
	MessageType string
	FromMe      bool
	Status      string
	Timestamp   int64
	Media       Media

	chatName string // resolved on read, never written
}

// HasMedia reports whether the message carries a downloadable attachment.
func (m *Message) HasMedia() bool {
	return m.Media.DirectPath != "" || m.Media.URL != ""
}

// OutboxEntry journals one outgoing command.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	ChatJID      string
	Kind         string // text, file, voice
	Body         string
	MediaPath    string
	Status       string // queued, sent, failed
	ErrorMessage string
	ServerMsgID  string
}
