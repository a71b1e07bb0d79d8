package bus

import "time"

// Event kinds. Subscribers filter on prefixes such as "wa." or "session.".
const (
	// Inbound from the WhatsApp bridge.
	KindMessage      = "wa.message"
	KindHistoryBatch = "wa.history_batch"
	KindReceipt      = "wa.receipt"
	KindContact      = "wa.contact"
	KindChatName     = "wa.chat_name"

	// Store side effects.
	KindMessageUpserted = "message.upserted"
	KindSendAck         = "message.send_ack"
	KindSendFailed      = "message.send_failed"

	// Connection lifecycle.
	KindConnected      = "sync.connected"
	KindDisconnected   = "sync.disconnected"
	KindHistoryIngest  = "sync.history_batch"
	KindContactsSynced = "sync.contacts"

	KindStatusChanged = "session.status_changed"
	KindQRGenerated   = "session.qr_generated"
	KindAuthenticated = "session.authenticated"
	KindAuthFailed    = "session.auth_failed"
	KindLoggedOut     = "session.logged_out"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// MessageRef identifies one stored message.
type MessageRef struct {
	ChatJID string
	MsgID   string
}
