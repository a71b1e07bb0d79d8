package serialize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int
	At   time.Time
}

func (p point) Fields() map[string]any {
	return map[string]any{"x": p.X, "y": p.Y, "at": p.At}
}

func TestValueNestedStructure(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 7, 9, 123456789, time.FixedZone("BRT", -3*3600))
	in := map[string]any{
		"when": at,
		"meta": map[string]any{"name": "alice", "count": 3, "tags": []string{"a", "b"}},
		"list": []any{1, "two", map[string]any{"deep": at}},
		"flag": true,
	}

	out := Value(in).(map[string]any)

	assert.Equal(t, "2024-03-05T17:07:09.123Z", out["when"])
	assert.Equal(t, map[string]any{"name": "alice", "count": 3, "tags": []any{"a", "b"}}, out["meta"])
	assert.Equal(t, []any{1, "two", map[string]any{"deep": "2024-03-05T17:07:09.123Z"}}, out["list"])
	assert.Equal(t, true, out["flag"])

	parsed, err := time.Parse(time.RFC3339Nano, out["when"].(string))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(at.Truncate(time.Millisecond)))

	_, err = json.Marshal(out)
	require.NoError(t, err)
}

func TestValueTypedSequences(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	in := map[string]any{
		"rows":    []map[string]any{{"at": at, "n": 1}},
		"times":   []time.Time{at, {}},
		"records": []Record{point{X: 7, At: at}},
		"points":  Slice([]point{{X: 8, At: at}}),
	}

	out := Value(in).(map[string]any)

	assert.Equal(t, []any{map[string]any{"at": "2024-05-01T12:00:00.123Z", "n": 1}}, out["rows"])
	assert.Equal(t, []any{"2024-05-01T12:00:00.123Z", nil}, out["times"])
	assert.Equal(t, []any{map[string]any{"x": 7, "y": 0, "at": "2024-05-01T12:00:00.123Z"}}, out["records"])
	assert.Equal(t, []any{map[string]any{"x": 8, "y": 0, "at": "2024-05-01T12:00:00.123Z"}}, out["points"])

	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "123456789")
}

func TestValueRecord(t *testing.T) {
	p := point{X: 1, Y: 2, At: time.UnixMilli(0)}
	assert.Equal(t, map[string]any{"x": 1, "y": 2, "at": "1970-01-01T00:00:00.000Z"}, Value(p))
}

func TestSlicePreservesOrderAndNeverNil(t *testing.T) {
	pts := []point{{X: 3}, {X: 1}, {X: 2}}
	got := Slice(pts)
	require.Len(t, got, 3)
	for i, want := range []int{3, 1, 2} {
		assert.Equal(t, want, got[i].(map[string]any)["x"])
	}

	empty := Slice[point](nil)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestZeroTimeIsAbsent(t *testing.T) {
	assert.Nil(t, Time(time.Time{}))
	var tp *time.Time
	assert.Nil(t, Value(tp))
}

func TestPrimitivesPassThrough(t *testing.T) {
	for _, v := range []any{"s", 1, int64(2), 3.5, false} {
		assert.Equal(t, v, Value(v))
	}
}
