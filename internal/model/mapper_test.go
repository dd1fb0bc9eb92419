package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC)

func TestNewFromDataSeparatesNamespaces(t *testing.T) {
	e, err := NewFromData(KindType, map[string]any{
		"$name":      "Point",
		"$validator": "x: <100",
		"$meta":      map[string]any{"owner": "geo"},
		"hello":      "world",
	})
	require.NoError(t, err)

	assert.Equal(t, "Point", e.Name())
	assert.Equal(t, Validator{Lang: ValidatorCUE, Source: "x: <100"}, e.Validator())
	assert.Equal(t, map[string]any{"owner": "geo", "hello": "world"}, e.Extras())
}

func TestNewFromDataRejectsCollisions(t *testing.T) {
	_, err := NewFromData(KindDocument, map[string]any{"typeId": "x"})
	require.Error(t, err)

	_, err = NewFromData(KindDocument, map[string]any{"$bogus": 1})
	require.Error(t, err)

	_, err = NewFromData(KindDocument, map[string]any{"$type": "Point"})
	require.Error(t, err, "read-only attributes cannot be written")
}

func TestFromRowSuppressesCollidingBagKeys(t *testing.T) {
	e, err := FromRow(KindDocument, Row{
		"id":       "doc-1",
		"content":  `{"hello":"world","id":"shadow","$typeId":"shadow"}`,
		"types_id": nil,
		"created":  fixedTime,
		"unknown":  "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, "doc-1", e.ID())
	assert.Equal(t, map[string]any{"hello": "world"}, e.Extras())
	assert.Equal(t, "", e.TypeID())
	assert.Equal(t, fixedTime, e.CreatedAt())
	assert.True(t, e.Loaded())
}

func TestFromRowKeepsCollidingBagKeysOnWrite(t *testing.T) {
	e, err := FromRow(KindDocument, Row{
		"id":      "doc-1",
		"content": `{"a":1,"typeId":"legacy","$id":"old"}`,
		"created": fixedTime,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": int64(1)}, e.Extras())
	assert.NotContains(t, e.Map(), "typeId")

	require.NoError(t, e.SetExtra("a", 2))
	changes, err := Diff(e)
	require.NoError(t, err)
	assert.Equal(t, Row{"content": `{"$id":"old","a":2,"typeId":"legacy"}`}, changes)
}

func TestMapRendersValidators(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"name: #NonEmptyString", "name: #NonEmptyString"},
		{"cue:count: >0", "count: >0"},
		{"builtin:flat", "builtin:flat"},
		{"cue:cue: int", "cue:cue: int"},
	}
	for _, tt := range tests {
		e, err := NewFromData(KindType, map[string]any{"$name": "T", "$validator": tt.in})
		require.NoError(t, err)
		shown := e.Map()["$validator"]
		assert.Equal(t, tt.want, shown)

		again, err := NewFromData(KindType, map[string]any{"$name": "T", "$validator": shown})
		require.NoError(t, err)
		assert.Equal(t, e.Validator(), again.Validator(), "display form parses back")
	}
}

func TestFromRowMissingColumnsAreAbsent(t *testing.T) {
	e, err := FromRow(KindType, Row{"id": "t1"})
	require.NoError(t, err)

	_, ok := e.Attr("name")
	assert.False(t, ok)
	assert.Nil(t, e.Schema())
	assert.Empty(t, e.Extras())
}

func TestFromRowDecodesDriverForms(t *testing.T) {
	e, err := FromRow(KindSchemaVersion, Row{
		"id":      []byte("v1"),
		"version": "3",
		"meta":    []byte(`{}`),
		"created": "2024-03-01 12:30:00.0000005+00:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "v1", e.ID())
	assert.Equal(t, int64(3), e.Version())
	assert.Equal(t, fixedTime, e.CreatedAt())
}

func TestToRowSkipsFalsyAndAlwaysWritesBag(t *testing.T) {
	e, err := NewFromData(KindDocument, map[string]any{"$typeId": ""})
	require.NoError(t, err)

	row, err := ToRow(e)
	require.NoError(t, err)
	assert.Equal(t, Row{"content": "{}"}, row)
}

func TestToRowKeepsZeroVersion(t *testing.T) {
	e := New(KindSchemaVersion)
	require.NoError(t, e.SetAttr("version", 0))

	row, err := ToRow(e)
	require.NoError(t, err)
	assert.Equal(t, int64(0), row["version"])
}

func TestRowRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		data map[string]any
	}{
		{"document", KindDocument, map[string]any{
			"$id": "d1", "$typeId": "t1", "$createdAt": fixedTime, "$updatedAt": fixedTime,
			"hello": "world", "n": 2.5, "nested": map[string]any{"b": []any{1, "x"}, "a": true},
		}},
		{"type", KindType, map[string]any{
			"$id": "t1", "$name": "Point", "$validator": "builtin:in-range",
			"$schema": map[string]any{"type": "object", "required": []any{"x"}},
			"$createdAt": fixedTime,
		}},
		{"attachment", KindAttachment, map[string]any{
			"$id": "a1", "$documentId": "d1", "$content": []byte{0, 1, 2}, "name": "blob.bin",
		}},
		{"library", KindLibrary, map[string]any{
			"$id": "l1", "$name": "std", "$content": "#Pos: >=0", "$contentType": "text/x-cue",
		}},
		{"schema version", KindSchemaVersion, map[string]any{"$id": "s1", "$version": 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewFromData(tt.kind, tt.data)
			require.NoError(t, err)
			row, err := ToRow(e)
			require.NoError(t, err)

			loaded, err := FromRow(tt.kind, row)
			require.NoError(t, err)
			again, err := ToRow(loaded)
			require.NoError(t, err)

			assert.Equal(t, row, again)
		})
	}
}

func TestDiffUsesStructuralEquality(t *testing.T) {
	e, err := FromRow(KindDocument, Row{
		"id":      "d1",
		"content": `{"b":{"y":2,"x":1},"a":1.0}`,
		"created": fixedTime,
	})
	require.NoError(t, err)

	// Identical data in a different key order and number spelling.
	require.NoError(t, e.Apply(map[string]any{
		"a": 1,
		"b": map[string]any{"x": 1, "y": 2},
	}))
	changes, err := Diff(e)
	require.NoError(t, err)
	assert.Empty(t, changes)

	require.NoError(t, e.Apply(map[string]any{"a": 2}))
	changes, err = Diff(e)
	require.NoError(t, err)
	assert.Equal(t, Row{"content": `{"a":2,"b":{"x":1,"y":2}}`}, changes)
}

func TestDiffIgnoresManagedAttributes(t *testing.T) {
	e, err := FromRow(KindType, Row{"id": "t1", "name": "A", "meta": "{}", "updated": fixedTime})
	require.NoError(t, err)
	require.NoError(t, e.SetAttr("updatedAt", fixedTime.Add(time.Hour)))

	changes, err := Diff(e)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestProject(t *testing.T) {
	e, err := NewFromData(KindDocument, map[string]any{"foo": 1, "bar": 2, "$id": "d"})
	require.NoError(t, err)

	only := e.Clone()
	only.Project([]string{"$id", "$content"})
	assert.Len(t, only.Extras(), 2, "sigil-only projection keeps every field")

	e.Project([]string{"foo", "$id"})
	assert.Equal(t, map[string]any{"foo": 1}, e.Extras())
	assert.Equal(t, "d", e.ID())
}

func TestMarshalJSONMergesNamespaces(t *testing.T) {
	e, err := NewFromData(KindAttachment, map[string]any{
		"$id": "a1", "$content": []byte("abc"), "$createdAt": fixedTime, "name": "x.txt",
	})
	require.NoError(t, err)

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"$id":"a1","$contentLength":3,"$createdAt":"2024-03-01T12:30:00.0000005Z","name":"x.txt"}`,
		string(raw))
}

func TestProjectedEntityKeepsHiddenFieldsOnWrite(t *testing.T) {
	e, err := FromRow(KindDocument, Row{"id": "d1", "content": `{"foo":1,"bar":2}`})
	require.NoError(t, err)

	e.Project([]string{"foo"})
	assert.Equal(t, map[string]any{"foo": int64(1)}, e.Extras())

	changes, err := Diff(e)
	require.NoError(t, err)
	assert.Empty(t, changes, "projection alone is not a change")

	require.NoError(t, e.SetExtra("foo", 3))
	changes, err = Diff(e)
	require.NoError(t, err)
	assert.Equal(t, Row{"content": `{"bar":2,"foo":3}`}, changes)
}
