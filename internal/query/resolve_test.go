package query

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestResolveDefaults(t *testing.T) {
	d, err := Resolve(Params{})
	require.NoError(t, err)

	assert.Equal(t, DefaultLimit, d.Limit)
	assert.Equal(t, 0, d.Page)
	assert.Equal(t, SortLastActive, d.Sort)
	assert.True(t, d.IncludeLastMessage)
	assert.True(t, d.IncludeContext)
	assert.Equal(t, 1, d.ContextBefore)
	assert.Equal(t, 1, d.ContextAfter)
	assert.True(t, d.After.IsZero())
	assert.True(t, d.Before.IsZero())
	assert.Equal(t, 0, d.Offset())
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		check   func(t *testing.T, d Descriptor)
		invalid bool
	}{
		{
			name:   "limit capped",
			params: Params{Limit: ptr(10_000)},
			check:  func(t *testing.T, d Descriptor) { assert.Equal(t, MaxLimit, d.Limit) },
		},
		{
			name:   "page offset",
			params: Params{Limit: ptr(10), Page: ptr(3)},
			check:  func(t *testing.T, d Descriptor) { assert.Equal(t, 30, d.Offset()) },
		},
		{name: "zero limit", params: Params{Limit: ptr(0)}, invalid: true},
		{name: "negative limit", params: Params{Limit: ptr(-5)}, invalid: true},
		{name: "negative page", params: Params{Page: ptr(-1)}, invalid: true},
		{name: "negative context", params: Params{ContextBefore: ptr(-1)}, invalid: true},
		{name: "unknown sort", params: Params{Sort: ptr("popularity")}, invalid: true},
		{
			name:   "sort by name",
			params: Params{Sort: ptr(" Name ")},
			check:  func(t *testing.T, d Descriptor) { assert.Equal(t, SortName, d.Sort) },
		},
		{
			name:   "empty sort is default",
			params: Params{Sort: ptr("")},
			check:  func(t *testing.T, d Descriptor) { assert.Equal(t, SortLastActive, d.Sort) },
		},
		{
			name:   "date only bound",
			params: Params{After: ptr("2024-03-05")},
			check: func(t *testing.T, d Descriptor) {
				assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), d.After)
			},
		},
		{
			name:   "offset bound converted to UTC",
			params: Params{Before: ptr("2024-03-05T14:07:09-03:00")},
			check: func(t *testing.T, d Descriptor) {
				assert.Equal(t, time.Date(2024, 3, 5, 17, 7, 9, 0, time.UTC), d.Before)
			},
		},
		{name: "garbage bound", params: Params{After: ptr("yesterday")}, invalid: true},
		{name: "after later than before", params: Params{After: ptr("2024-02-01"), Before: ptr("2024-01-01")}, invalid: true},
		{
			name:   "equal bounds allowed",
			params: Params{After: ptr("2024-01-01"), Before: ptr("2024-01-01")},
			check:  func(t *testing.T, d Descriptor) { assert.Equal(t, d.After, d.Before) },
		},
		{
			name:   "sender phone normalized",
			params: Params{Sender: ptr("+55 (11) 99999-0000")},
			check:  func(t *testing.T, d Descriptor) { assert.Equal(t, "5511999990000@s.whatsapp.net", d.Sender) },
		},
		{
			name:   "sender jid kept",
			params: Params{Sender: ptr("123@lid")},
			check:  func(t *testing.T, d Descriptor) { assert.Equal(t, "123@lid", d.Sender) },
		},
		{name: "sender not a number", params: Params{Sender: ptr("bob")}, invalid: true},
		{
			name:   "flags honored",
			params: Params{IncludeLastMessage: ptr(false), IncludeContext: ptr(false)},
			check: func(t *testing.T, d Descriptor) {
				assert.False(t, d.IncludeLastMessage)
				assert.False(t, d.IncludeContext)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Resolve(tt.params)
			if tt.invalid {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidArgument), "got %v", err)
				return
			}
			require.NoError(t, err)
			tt.check(t, d)
		})
	}
}

func TestResolveWindow(t *testing.T) {
	b, a, err := ResolveWindow(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, b)
	assert.Equal(t, 5, a)

	b, a, err = ResolveWindow(ptr(0), ptr(2))
	require.NoError(t, err)
	assert.Equal(t, 0, b)
	assert.Equal(t, 2, a)

	_, _, err = ResolveWindow(ptr(-1), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNormalizeJID(t *testing.T) {
	for in, want := range map[string]string{
		"5511999990000":         "5511999990000@s.whatsapp.net",
		"+1 (415) 555-0100":     "14155550100@s.whatsapp.net",
		"120363@g.us":           "120363@g.us",
		" 5511@s.whatsapp.net ": "5511@s.whatsapp.net",
	} {
		got, ok := NormalizeJID(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "   ", "abc", "+-"} {
		_, ok := NormalizeJID(in)
		assert.False(t, ok, in)
	}
}

func TestPhoneOf(t *testing.T) {
	assert.Equal(t, "5511", PhoneOf("5511@s.whatsapp.net"))
	assert.Equal(t, "5511", PhoneOf("5511:3@s.whatsapp.net"))
	assert.Equal(t, "", PhoneOf("120363@g.us"))
	assert.Equal(t, "", PhoneOf("nojid"))
}
