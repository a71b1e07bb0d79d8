package api

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/matheus3301/wamcp/internal/query"
	"google.golang.org/grpc/codes"
)

// args decodes the arguments of one tool call. The first decoding error
// sticks; later calls return zero values.
type args struct {
	tool string
	m    map[string]any
	err  error
}

func newArgs(req mcp.CallToolRequest) *args {
	m := req.GetArguments()
	if m == nil {
		m = map[string]any{}
	}
	return &args{tool: req.Params.Name, m: m}
}

func (a *args) fail(name, format string, v ...any) {
	if a.err == nil {
		a.err = &query.Error{
			Code: codes.InvalidArgument,
			Op:   a.tool,
			Msg:  name + ": " + fmt.Sprintf(format, v...),
		}
	}
}

// lookup returns the first of names present with a non-null value.
func (a *args) lookup(names ...string) (string, any, bool) {
	for _, n := range names {
		if v, ok := a.m[n]; ok && v != nil {
			return n, v, true
		}
	}
	return "", nil, false
}

// str returns a string argument, nil when absent. Aliases are tried in order.
func (a *args) str(names ...string) *string {
	name, v, ok := a.lookup(names...)
	if !ok || a.err != nil {
		return nil
	}
	s, isString := v.(string)
	if !isString {
		a.fail(name, "want a string, got %T", v)
		return nil
	}
	return &s
}

// text returns a string argument or "" when absent. Command tools validate
// emptiness themselves.
func (a *args) text(name string) string {
	if s := a.str(name); s != nil {
		return *s
	}
	return ""
}

// integer returns an integer argument, nil when absent. JSON numbers must
// be integral; numeric strings are accepted.
func (a *args) integer(name string) *int {
	_, v, ok := a.lookup(name)
	if !ok || a.err != nil {
		return nil
	}
	var n int
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.Abs(t) > math.MaxInt32 {
			a.fail(name, "want an integer, got %v", t)
			return nil
		}
		n = int(t)
	case int:
		n = t
	case int64:
		n = int(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			a.fail(name, "want an integer, got %s", t)
			return nil
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			a.fail(name, "want an integer, got %q", t)
			return nil
		}
		n = i
	default:
		a.fail(name, "want an integer, got %T", v)
		return nil
	}
	return &n
}

// boolean returns a boolean argument, nil when absent. "true"/"false"
// strings are accepted.
func (a *args) boolean(name string) *bool {
	_, v, ok := a.lookup(name)
	if !ok || a.err != nil {
		return nil
	}
	switch t := v.(type) {
	case bool:
		return &t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			a.fail(name, "want a boolean, got %q", t)
			return nil
		}
		return &b
	}
	a.fail(name, "want a boolean, got %T", v)
	return nil
}

// flag is boolean with a default.
func (a *args) flag(name string, def bool) bool {
	if b := a.boolean(name); b != nil {
		return *b
	}
	return def
}
