package flatten

import (
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvbatch/internal/batcherr"
	"csvbatch/internal/schema"
)

func parse(t *testing.T, doc string) schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(doc))
	require.NoError(t, err)
	return s
}

// newFor builds a Flattener and checks it agrees with schema.Flatten.
func newFor(t *testing.T, doc string, maxLevel int) *Flattener {
	t.Helper()
	s := parse(t, doc)
	flat, err := s.Flatten(maxLevel)
	require.NoError(t, err)
	f := New(s, maxLevel)
	require.Equal(t, flat.Columns(), f.Columns())
	return f
}

const nestedDoc = `{"properties": {"a": {"type": "object", "properties": {"x": {"type": "integer"}}}}}`

func TestFlatten_Depth(t *testing.T) {
	t.Parallel()

	rec := Record{"a": map[string]any{"x": 1}}

	cases := []struct {
		name     string
		doc      string
		maxLevel int
		want     Flattened
	}{
		{
			name:     "depth zero keeps the nested object",
			doc:      nestedDoc,
			maxLevel: 0,
			want:     Flattened{"a": map[string]any{"x": 1}},
		},
		{
			name:     "depth one joins the path",
			doc:      nestedDoc,
			maxLevel: 1,
			want:     Flattened{"a__x": 1},
		},
		{
			name:     "free-form object stays one column",
			doc:      `{"properties": {"a": {"type": "object"}}}`,
			maxLevel: 3,
			want:     Flattened{"a": map[string]any{"x": 1}},
		},
		{
			name:     "properties without an object type stay one column",
			doc:      `{"properties": {"a": {"properties": {"x": {"type": "integer"}}}}}`,
			maxLevel: 1,
			want:     Flattened{"a": map[string]any{"x": 1}},
		},
		{
			name:     "nullable object expands",
			doc:      `{"properties": {"a": {"type": ["null", "object"], "properties": {"x": {}}}}}`,
			maxLevel: 1,
			want:     Flattened{"a__x": 1},
		},
		{
			name:     "undeclared nested key is dropped",
			doc:      `{"properties": {"a": {"type": "object", "properties": {"y": {}}}}}`,
			maxLevel: 1,
			want:     Flattened{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := newFor(t, tc.doc, tc.maxLevel).Flatten(rec)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFlatten_BeyondDepthKeptIntact(t *testing.T) {
	t.Parallel()

	doc := `{"properties": {"a": {"type": "object", "properties": {
		"b": {"type": "object", "properties": {"c": {"type": "string"}}},
		"n": {"type": "integer"}
	}}}}`
	rec := Record{
		"a": map[string]any{
			"b": map[string]any{"c": "deep"},
			"n": 2,
		},
	}
	got, err := newFor(t, doc, 1).Flatten(rec)
	require.NoError(t, err)
	assert.Equal(t, Flattened{
		"a__b": map[string]any{"c": "deep"},
		"a__n": 2,
	}, got)
}

func TestFlatten_ExpandedPropertyWithScalarValue(t *testing.T) {
	t.Parallel()

	got, err := newFor(t, nestedDoc, 1).Flatten(Record{"a": "not an object"})
	require.NoError(t, err)
	assert.Equal(t, Flattened{}, got)

	got, err = newFor(t, nestedDoc, 1).Flatten(Record{"a": nil})
	require.NoError(t, err)
	assert.Equal(t, Flattened{}, got)
}

func TestFlatten_SequencesAreOpaque(t *testing.T) {
	t.Parallel()

	rec := Record{"tags": []any{map[string]any{"k": 1}, "x"}}
	got, err := newFor(t, `{"properties": {"tags": {"type": "array"}}}`, 5).Flatten(rec)
	require.NoError(t, err)
	assert.Equal(t, Flattened{"tags": []any{map[string]any{"k": 1}, "x"}}, got)
}

func TestFlatten_LiteralKeyDoesNotShadowNestedPath(t *testing.T) {
	t.Parallel()

	f := newFor(t, nestedDoc, 1)
	rec := Record{"a__x": json.Number("1"), "a": map[string]any{"x": json.Number("2")}}
	for range 200 {
		got, err := f.Flatten(rec)
		require.NoError(t, err)
		require.Equal(t, Flattened{"a__x": json.Number("2")}, got)
	}

	// A declared literal column wins when nothing expands onto it.
	f = newFor(t, `{"properties": {"a__x": {"type": "integer"}, "a": {"type": "object"}}}`, 1)
	got, err := f.Flatten(rec)
	require.NoError(t, err)
	assert.Equal(t, Flattened{"a__x": json.Number("1"), "a": map[string]any{"x": json.Number("2")}}, got)
}

func TestFlatten_DoesNotMutateAndIsIdempotent(t *testing.T) {
	t.Parallel()

	doc := `{"properties": {
		"id": {"type": "integer"},
		"user": {"type": "object", "properties": {
			"name": {"type": "string"},
			"meta": {"type": "object", "properties": {"age": {"type": "integer"}}}
		}}
	}}`
	rec := Record{
		"id":   1,
		"user": map[string]any{"name": "ann", "meta": map[string]any{"age": 30}},
	}
	f := newFor(t, doc, 2)
	assert.Equal(t, []string{"id", "user__name", "user__meta__age"}, f.Columns())

	first, err := f.Flatten(rec)
	require.NoError(t, err)
	second, err := f.Flatten(rec)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, Flattened{"id": 1, "user__name": "ann", "user__meta__age": 30}, first)
	assert.Equal(t, Record{
		"id":   1,
		"user": map[string]any{"name": "ann", "meta": map[string]any{"age": 30}},
	}, rec)
}

func TestFlatten_NamedMapTypes(t *testing.T) {
	t.Parallel()

	type attrs map[string]string
	doc := `{"properties": {"attrs": {"type": "object", "properties": {"color": {"type": "string"}}}}}`
	got, err := newFor(t, doc, 1).Flatten(Record{"attrs": attrs{"color": "red"}})
	require.NoError(t, err)
	assert.Equal(t, Flattened{"attrs__color": "red"}, got)
}

func TestFlatten_InvalidRecords(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		rec      Record
		maxLevel int
	}{
		{name: "nil record", rec: nil},
		{name: "non-string keys while descending", rec: Record{"a": map[int]any{1: "x"}}, maxLevel: 1},
		{name: "non-string keys beyond depth", rec: Record{"a": map[int]any{1: "x"}}, maxLevel: 0},
		{name: "non-string keys inside a sequence", rec: Record{"a": []any{map[any]any{true: 1}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := newFor(t, nestedDoc, tc.maxLevel).Flatten(tc.rec)
			var invalid *batcherr.InvalidRecordError
			require.True(t, errors.As(err, &invalid), "got %v", err)
		})
	}
}

func TestFlatten_LongKeysMatchSchemaColumns(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("field_name_", 25)
	doc := `{"properties": {"outer_object": {"type": "object", "properties": {"` + long + `": {"type": "string"}}}}}`
	f := newFor(t, doc, 1)
	require.Len(t, f.Columns(), 1)

	got, err := f.Flatten(Record{"outer_object": map[string]any{long: "v"}})
	require.NoError(t, err)
	assert.Equal(t, Flattened{f.Columns()[0]: "v"}, got)
	assert.Less(t, len(f.Columns()[0]), schema.MaxKeyLength)
}
