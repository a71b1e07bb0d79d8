package query

import (
	"strings"
	"time"
)

// Defaults applied by Resolve to absent parameters.
const (
	DefaultLimit         = 20
	MaxLimit             = 500
	DefaultContextBefore = 1
	DefaultContextAfter  = 1
	DefaultWindowSize    = 5
)

// Sort is a chat ordering key.
type Sort string

const (
	SortLastActive Sort = "last_active"
	SortName       Sort = "name"
)

// ParseSort maps a caller-supplied sort key to a Sort. Unknown keys are
// rejected instead of falling back to the default.
func ParseSort(s string) (Sort, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last_active", "last-active", "lastactive":
		return SortLastActive, nil
	case "name":
		return SortName, nil
	}
	return "", invalidf("resolve", "unknown sort %q (want last_active or name)", s)
}

// Params is the raw, loosely specified form of a list request. Nil fields
// are unset and receive the documented default.
type Params struct {
	After              *string
	Before             *string
	Sender             *string
	ChatJID            *string
	Text               *string
	Limit              *int
	Page               *int
	Sort               *string
	IncludeLastMessage *bool
	IncludeContext     *bool
	ContextBefore      *int
	ContextAfter       *int
}

// Descriptor is the canonical, validated form of a list request. Every field
// is set; zero times mean an open bound.
type Descriptor struct {
	After              time.Time
	Before             time.Time
	Sender             string
	ChatJID            string
	Text               string
	Limit              int
	Page               int
	Sort               Sort
	IncludeLastMessage bool
	IncludeContext     bool
	ContextBefore      int
	ContextAfter       int
}

// Offset is the index of the first result of the descriptor's page.
func (d Descriptor) Offset() int { return d.Page * d.Limit }

// Resolve validates p and fills in defaults.
func Resolve(p Params) (Descriptor, error) {
	d := Descriptor{
		Limit:              DefaultLimit,
		Sort:               SortLastActive,
		IncludeLastMessage: true,
		IncludeContext:     true,
		ContextBefore:      DefaultContextBefore,
		ContextAfter:       DefaultContextAfter,
	}

	if p.Limit != nil {
		if *p.Limit <= 0 {
			return Descriptor{}, invalidf("resolve", "limit must be a positive integer, got %d", *p.Limit)
		}
		d.Limit = min(*p.Limit, MaxLimit)
	}
	if p.Page != nil {
		if *p.Page < 0 {
			return Descriptor{}, invalidf("resolve", "page must be non-negative, got %d", *p.Page)
		}
		d.Page = *p.Page
	}
	if p.Sort != nil {
		s, err := ParseSort(*p.Sort)
		if err != nil {
			return Descriptor{}, err
		}
		d.Sort = s
	}
	if p.IncludeLastMessage != nil {
		d.IncludeLastMessage = *p.IncludeLastMessage
	}
	if p.IncludeContext != nil {
		d.IncludeContext = *p.IncludeContext
	}
	if p.ContextBefore != nil {
		if *p.ContextBefore < 0 {
			return Descriptor{}, invalidf("resolve", "context_before must be non-negative, got %d", *p.ContextBefore)
		}
		d.ContextBefore = *p.ContextBefore
	}
	if p.ContextAfter != nil {
		if *p.ContextAfter < 0 {
			return Descriptor{}, invalidf("resolve", "context_after must be non-negative, got %d", *p.ContextAfter)
		}
		d.ContextAfter = *p.ContextAfter
	}

	var err error
	if d.After, err = parseBound("after", p.After); err != nil {
		return Descriptor{}, err
	}
	if d.Before, err = parseBound("before", p.Before); err != nil {
		return Descriptor{}, err
	}
	if !d.After.IsZero() && !d.Before.IsZero() && d.After.After(d.Before) {
		return Descriptor{}, invalidf("resolve", "after (%s) is later than before (%s)",
			d.After.Format(time.RFC3339), d.Before.Format(time.RFC3339))
	}

	if p.Sender != nil && strings.TrimSpace(*p.Sender) != "" {
		jid, ok := NormalizeJID(*p.Sender)
		if !ok {
			return Descriptor{}, invalidf("resolve", "sender %q is not a phone number or JID", *p.Sender)
		}
		d.Sender = jid
	}
	if p.ChatJID != nil {
		d.ChatJID = strings.TrimSpace(*p.ChatJID)
	}
	if p.Text != nil {
		d.Text = strings.TrimSpace(*p.Text)
	}
	return d, nil
}

// ResolveWindow validates the before/after counts of a context request.
func ResolveWindow(before, after *int) (int, int, error) {
	b, a := DefaultWindowSize, DefaultWindowSize
	if before != nil {
		if *before < 0 {
			return 0, 0, invalidf("resolve", "before must be non-negative, got %d", *before)
		}
		b = *before
	}
	if after != nil {
		if *after < 0 {
			return 0, 0, invalidf("resolve", "after must be non-negative, got %d", *after)
		}
		a = *after
	}
	return b, a, nil
}

var boundLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseBound(name string, raw *string) (time.Time, error) {
	if raw == nil {
		return time.Time{}, nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range boundLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalidf("resolve", "%s: cannot parse %q as an ISO-8601 timestamp", name, s)
}
