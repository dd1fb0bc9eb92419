package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/nopg/internal/ir"
)

// Row is a raw relational row keyed by column name.
type Row map[string]any

// Entity is an in-memory view of one stored row.
//
// Recognized attributes and caller-defined (bag) fields live in separate
// namespaces and are only merged by Map/MarshalJSON. When a bag key collides
// with a recognized attribute name the recognized attribute wins.
//
// An Entity is a transient value. It holds no reference to the session that
// produced it.
type Entity struct {
	desc   *Descriptor
	attrs  map[string]any
	extra  map[string]any
	loaded Row

	// hidden holds bag fields removed by Project or shadowed by a
	// recognized attribute name. They stay out of Extras and Map but are
	// written back, so an update never drops stored fields.
	hidden map[string]any
}

// New returns an empty entity of kind.
func New(kind Kind) *Entity {
	return &Entity{
		desc:  MustLookup(kind),
		attrs: map[string]any{},
		extra: map[string]any{},
	}
}

// NewFromData builds an entity from a caller map. Keys carrying the sigil
// set recognized attributes; the bag attribute ("$content", "$meta") merges
// its keys into the extras; every other key becomes an extra. A bare key
// equal to a recognized attribute name is rejected.
func NewFromData(kind Kind, data map[string]any) (*Entity, error) {
	e := New(kind)
	if err := e.Apply(data); err != nil {
		return nil, err
	}
	return e, nil
}

// Apply merges data into e. Fields not named in data are preserved.
func (e *Entity) Apply(data map[string]any) error {
	for _, k := range ir.SortedKeys(data) {
		v := data[k]
		name, recognized := strings.CutPrefix(k, Sigil)
		if !recognized {
			if err := e.SetExtra(k, v); err != nil {
				return err
			}
			continue
		}
		if name == e.desc.Bag {
			bag, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("%s%s must be an object, got %T", Sigil, name, v)
			}
			for _, bk := range ir.SortedKeys(bag) {
				if err := e.SetExtra(bk, bag[bk]); err != nil {
					return err
				}
			}
			continue
		}
		if err := e.SetAttr(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Kind returns the entity kind.
func (e *Entity) Kind() Kind { return e.desc.Kind }

// Descriptor returns the kind's static metadata.
func (e *Entity) Descriptor() *Descriptor { return e.desc }

// Attr returns a recognized attribute value.
func (e *Entity) Attr(name string) (any, bool) {
	v, ok := e.attrs[strings.TrimPrefix(name, Sigil)]
	return v, ok && v != nil
}

// SetAttr sets a recognized attribute. Read-only and unknown attributes are
// rejected. A nil value clears the attribute.
func (e *Entity) SetAttr(name string, v any) error {
	name = strings.TrimPrefix(name, Sigil)
	a, ok := e.desc.Attribute(name)
	if !ok {
		return fmt.Errorf("%s has no attribute %q", e.desc.Kind, name)
	}
	if a.ReadOnly() {
		return fmt.Errorf("%s attribute %q is read-only", e.desc.Kind, name)
	}
	if name == e.desc.Bag {
		return fmt.Errorf("%s attribute %q is the metadata bag; set fields individually", e.desc.Kind, name)
	}
	if v == nil {
		delete(e.attrs, name)
		return nil
	}
	if a.Codec == CodecValidator {
		if s, isStr := v.(string); isStr {
			v = ParseValidator(s)
		}
	}
	e.attrs[name] = v
	return nil
}

// Extra returns a caller-defined field.
func (e *Entity) Extra(key string) (any, bool) {
	v, ok := e.extra[key]
	return v, ok
}

// SetExtra sets a caller-defined field. Keys that name a recognized
// attribute, or carry the sigil, are rejected.
func (e *Entity) SetExtra(key string, v any) error {
	if strings.HasPrefix(key, Sigil) || e.desc.Recognizes(key) {
		return fmt.Errorf("field %q collides with a recognized %s attribute", key, e.desc.Kind)
	}
	e.extra[key] = v
	delete(e.hidden, key)
	return nil
}

// Extras returns a copy of the caller-defined fields.
func (e *Entity) Extras() map[string]any {
	out := make(map[string]any, len(e.extra))
	for k, v := range e.extra {
		out[k] = v
	}
	return out
}

// Fields returns a copy of the whole metadata bag, including fields kept
// out of view.
func (e *Entity) Fields() map[string]any {
	bag := e.bag()
	out := make(map[string]any, len(bag))
	for k, v := range bag {
		out[k] = v
	}
	return out
}

// Project keeps only the named caller-defined fields. Names carrying the
// sigil are ignored; a list naming no caller-defined field changes nothing.
func (e *Entity) Project(fields []string) {
	keep := mapset.NewThreadUnsafeSet[string]()
	for _, f := range fields {
		if !strings.HasPrefix(f, Sigil) {
			keep.Add(f)
		}
	}
	if keep.Cardinality() == 0 {
		return
	}
	for k, v := range e.extra {
		if !keep.Contains(k) {
			e.hide(k, v)
			delete(e.extra, k)
		}
	}
}

func (e *Entity) hide(k string, v any) {
	if e.hidden == nil {
		e.hidden = map[string]any{}
	}
	e.hidden[k] = v
}

// bag is the full metadata bag: visible fields over projected-away ones.
func (e *Entity) bag() map[string]any {
	if len(e.hidden) == 0 {
		return e.extra
	}
	out := make(map[string]any, len(e.extra)+len(e.hidden))
	for k, v := range e.hidden {
		out[k] = v
	}
	for k, v := range e.extra {
		out[k] = v
	}
	return out
}

// Clone returns a deep-enough copy: maps are copied, values shared.
func (e *Entity) Clone() *Entity {
	cp := &Entity{
		desc:  e.desc,
		attrs: make(map[string]any, len(e.attrs)),
		extra: e.Extras(),
	}
	for k, v := range e.attrs {
		cp.attrs[k] = v
	}
	if e.loaded != nil {
		cp.loaded = make(Row, len(e.loaded))
		for k, v := range e.loaded {
			cp.loaded[k] = v
		}
	}
	if e.hidden != nil {
		cp.hidden = make(map[string]any, len(e.hidden))
		for k, v := range e.hidden {
			cp.hidden[k] = v
		}
	}
	return cp
}

// Loaded reports whether e was read from the store.
func (e *Entity) Loaded() bool { return e.loaded != nil }

// ID is the primary key, or "" for an unsaved entity.
func (e *Entity) ID() string { return e.text("id") }

// Name is the unique name of a TypeDef or Library.
func (e *Entity) Name() string { return e.text("name") }

// TypeID is the owning TypeDef id of a Document.
func (e *Entity) TypeID() string { return e.text("typeId") }

// TypeName is the owning TypeDef name of a loaded Document.
func (e *Entity) TypeName() string { return e.text("type") }

// DocumentID is the owning Document id of an Attachment.
func (e *Entity) DocumentID() string { return e.text("documentId") }

// CreatedAt is the creation timestamp.
func (e *Entity) CreatedAt() time.Time { return e.time("createdAt") }

// UpdatedAt is the last-modification timestamp.
func (e *Entity) UpdatedAt() time.Time { return e.time("updatedAt") }

// Content is the byte content of an Attachment or the text of a Library.
func (e *Entity) Content() []byte {
	switch v := e.attrs["content"].(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	return nil
}

// Schema is the JSON-Schema document of a TypeDef, or nil.
func (e *Entity) Schema() any { return e.attrs["schema"] }

// Validator is the custom rule of a TypeDef.
func (e *Entity) Validator() Validator {
	v, _ := e.attrs["validator"].(Validator)
	return v
}

// Version is the recorded level of a SchemaVersion row.
func (e *Entity) Version() int64 {
	n, _ := ToInt(e.attrs["version"])
	return n
}

func (e *Entity) text(name string) string {
	s, _ := e.attrs[name].(string)
	return s
}

func (e *Entity) time(name string) time.Time {
	t, _ := e.attrs[name].(time.Time)
	return t
}

// Map merges both namespaces for external consumption: recognized
// attributes under "$name", caller fields under their own key. Byte content
// is omitted.
func (e *Entity) Map() map[string]any {
	out := make(map[string]any, len(e.attrs)+len(e.extra))
	for k, v := range e.extra {
		out[k] = v
	}
	for _, a := range e.desc.Attributes {
		if a.Name == e.desc.Bag {
			continue
		}
		v, ok := e.attrs[a.Name]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case []byte:
			out[Sigil+a.Name+"Length"] = len(val)
			continue
		case Validator:
			v = val.Display()
		case time.Time:
			v = val.Format(time.RFC3339Nano)
		}
		out[Sigil+a.Name] = v
	}
	return out
}

// MarshalJSON encodes Map.
func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Map())
}

// String is a short description for logs.
func (e *Entity) String() string {
	if n := e.Name(); n != "" {
		return fmt.Sprintf("%s(%s %s)", e.desc.Kind, n, e.ID())
	}
	return fmt.Sprintf("%s(%s)", e.desc.Kind, e.ID())
}
