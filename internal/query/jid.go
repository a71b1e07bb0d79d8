package query

import "strings"

// Well-known JID servers.
const (
	UserServer  = "s.whatsapp.net"
	GroupServer = "g.us"
	LIDServer   = "lid"
)

// NormalizeJID turns a phone number or JID into a JID. Phone numbers may
// carry '+', spaces, dashes, dots and parentheses. It reports false when s
// contains no usable digits.
func NormalizeJID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if strings.Contains(s, "@") {
		return s, true
	}
	digits := PhoneDigits(s)
	if digits == "" {
		return "", false
	}
	return digits + "@" + UserServer, true
}

// PhoneDigits strips phone number punctuation. It returns "" if anything
// other than digits and punctuation is present.
func PhoneDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return ""
		}
	}
	return b.String()
}

// IsGroupJID reports whether jid addresses a group chat.
func IsGroupJID(jid string) bool {
	return strings.HasSuffix(jid, "@"+GroupServer)
}

// PhoneOf returns the user part of a user JID, without device suffix.
func PhoneOf(jid string) string {
	user, server, ok := strings.Cut(jid, "@")
	if !ok || server != UserServer {
		return ""
	}
	user, _, _ = strings.Cut(user, ":")
	return user
}
