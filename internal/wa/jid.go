package wa

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wamcp/internal/query"
	"go.mau.fi/whatsmeow/types"
)

// NormalizeJID strips the device/agent part of a JID so one contact maps to
// one chat. Strings that do not parse are returned unchanged.
func NormalizeJID(s string) string {
	if !strings.Contains(s, "@") {
		return s
	}
	jid, err := types.ParseJID(s)
	if err != nil {
		return s
	}
	return jid.ToNonAD().String()
}

// ParseRecipient turns a phone number or JID into a JID the client can send
// to. Phone numbers may carry '+' and the usual punctuation.
func ParseRecipient(recipient string) (types.JID, error) {
	recipient = strings.TrimSpace(recipient)
	if strings.Contains(recipient, "@") {
		jid, err := types.ParseJID(recipient)
		if err != nil {
			return types.EmptyJID, fmt.Errorf("invalid JID %q: %w", recipient, err)
		}
		return jid.ToNonAD(), nil
	}
	digits := query.PhoneDigits(recipient)
	if digits == "" {
		return types.EmptyJID, fmt.Errorf("invalid recipient %q: want a phone number or JID", recipient)
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}
