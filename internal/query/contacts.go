package query

import (
	"context"
	"strings"
	"time"
)

// ContactSearchLimit bounds search_contacts results.
const ContactSearchLimit = 50

// SearchContacts finds contacts whose name, push name or phone number
// contains text.
func (s *Service) SearchContacts(ctx context.Context, text string) ([]Contact, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalidf("search_contacts", "query is required")
	}
	contacts, err := s.store.SearchContacts(ctx, text, ContactSearchLimit)
	if err != nil {
		return nil, unavailable("search_contacts", err)
	}
	if contacts == nil {
		contacts = []Contact{}
	}
	return contacts, nil
}

// LastInteraction returns the time of the newest message involving the
// contact. The zero time means there is none.
func (s *Service) LastInteraction(ctx context.Context, jid string) (time.Time, error) {
	jid, err := requireJID("get_last_interaction", jid)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := s.store.LastInteraction(ctx, jid)
	if err != nil {
		return time.Time{}, unavailable("get_last_interaction", err)
	}
	return ts, nil
}
