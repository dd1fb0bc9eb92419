// Package model is the entity metadata registry and row mapper.
//
// Each entity kind has a static Descriptor: its table, its ordered recognized
// attributes (with the column each maps to and the codec used to store it),
// and the one attribute holding the free-form metadata bag. Descriptors are
// built at package init and never mutated, so they are safe to share between
// sessions without locking.
package model

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Kind identifies an entity kind. The set is closed.
type Kind string

const (
	KindDocument      Kind = "Document"
	KindType          Kind = "TypeDef"
	KindAttachment    Kind = "Attachment"
	KindLibrary       Kind = "Library"
	KindSchemaVersion Kind = "SchemaVersion"
)

// Sigil marks a recognized attribute in caller-facing maps and predicates.
const Sigil = "$"

// Codec selects how an attribute value is stored in its column.
type Codec int

const (
	// CodecText stores strings as-is.
	CodecText Codec = iota
	// CodecJSON stores any JSON value as canonical JSON text.
	CodecJSON
	// CodecBag stores the metadata bag (a JSON object) as canonical JSON text.
	CodecBag
	// CodecBytes stores opaque bytes.
	CodecBytes
	// CodecTime stores UTC timestamps.
	CodecTime
	// CodecInt stores 64-bit integers.
	CodecInt
	// CodecValidator stores a validator rule reference as "<lang>:<source>".
	CodecValidator
)

// Attribute is one recognized attribute of a kind.
type Attribute struct {
	// Name is the caller-facing name (used after the sigil).
	Name string

	// Column is the backing column, or the alias of Expr.
	Column string

	Codec Codec

	// Managed attributes (id, timestamps) are assigned by the session and
	// never take part in update diffing.
	Managed bool

	// Expr, when set, is a read-only SQL expression selected under Column.
	// It is never written.
	Expr string
}

// ReadOnly reports whether the attribute is computed rather than stored.
func (a Attribute) ReadOnly() bool { return a.Expr != "" }

// Descriptor is the static metadata of one entity kind.
type Descriptor struct {
	Kind       Kind
	Table      string
	Attributes []Attribute

	// Bag names the attribute holding caller-defined fields.
	Bag string

	// Unique names the attribute that identifies a row when it has no id.
	// Empty when the kind has no unique name.
	Unique string

	byName     map[string]int
	byColumn   map[string]int
	recognized mapset.Set[string]
}

func newDescriptor(kind Kind, table, bag, unique string, attrs ...Attribute) *Descriptor {
	d := &Descriptor{
		Kind:       kind,
		Table:      table,
		Attributes: attrs,
		Bag:        bag,
		Unique:     unique,
		byName:     make(map[string]int, len(attrs)),
		byColumn:   make(map[string]int, len(attrs)),
		recognized: mapset.NewSet[string](),
	}
	for i, a := range attrs {
		d.byName[a.Name] = i
		d.byColumn[a.Column] = i
		d.recognized.Add(a.Name)
	}
	if _, ok := d.byName[bag]; !ok {
		panic(fmt.Sprintf("model: %s bag attribute %q not declared", kind, bag))
	}
	return d
}

// Attribute looks up a recognized attribute by name.
func (d *Descriptor) Attribute(name string) (Attribute, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Attribute{}, false
	}
	return d.Attributes[i], true
}

// AttributeByColumn looks up a recognized attribute by its column.
func (d *Descriptor) AttributeByColumn(column string) (Attribute, bool) {
	i, ok := d.byColumn[column]
	if !ok {
		return Attribute{}, false
	}
	return d.Attributes[i], true
}

// Recognizes reports whether name is a recognized attribute. A leading
// sigil is ignored.
func (d *Descriptor) Recognizes(name string) bool {
	return d.recognized.Contains(strings.TrimPrefix(name, Sigil))
}

// BagColumn is the column holding the metadata bag.
func (d *Descriptor) BagColumn() string {
	a, _ := d.Attribute(d.Bag)
	return a.Column
}

// SelectList is the projection used for reads and RETURNING clauses.
func (d *Descriptor) SelectList() string {
	var b strings.Builder
	b.WriteString("*")
	for _, a := range d.Attributes {
		if a.ReadOnly() {
			fmt.Fprintf(&b, ", %s AS %s", a.Expr, a.Column)
		}
	}
	return b.String()
}

// OrderedColumns returns the keys of row that are columns of this kind, in
// attribute order.
func (d *Descriptor) OrderedColumns(row Row) []string {
	cols := make([]string, 0, len(row))
	for _, a := range d.Attributes {
		if _, ok := row[a.Column]; ok {
			cols = append(cols, a.Column)
		}
	}
	return cols
}

const typeNameExpr = "(SELECT t.name FROM types t WHERE t.id = documents.types_id)"

var registry = map[Kind]*Descriptor{
	KindDocument: newDescriptor(KindDocument, "documents", "content", "",
		Attribute{Name: "id", Column: "id", Codec: CodecText, Managed: true},
		Attribute{Name: "content", Column: "content", Codec: CodecBag},
		Attribute{Name: "typeId", Column: "types_id", Codec: CodecText},
		Attribute{Name: "type", Column: "type", Codec: CodecText, Expr: typeNameExpr},
		Attribute{Name: "createdAt", Column: "created", Codec: CodecTime, Managed: true},
		Attribute{Name: "updatedAt", Column: "updated", Codec: CodecTime, Managed: true},
	),
	KindType: newDescriptor(KindType, "types", "meta", "name",
		Attribute{Name: "id", Column: "id", Codec: CodecText, Managed: true},
		Attribute{Name: "name", Column: "name", Codec: CodecText},
		Attribute{Name: "schema", Column: "schema", Codec: CodecJSON},
		Attribute{Name: "validator", Column: "validator", Codec: CodecValidator},
		Attribute{Name: "meta", Column: "meta", Codec: CodecBag},
		Attribute{Name: "createdAt", Column: "created", Codec: CodecTime, Managed: true},
		Attribute{Name: "updatedAt", Column: "updated", Codec: CodecTime, Managed: true},
	),
	KindAttachment: newDescriptor(KindAttachment, "attachments", "meta", "",
		Attribute{Name: "id", Column: "id", Codec: CodecText, Managed: true},
		Attribute{Name: "documentId", Column: "documents_id", Codec: CodecText},
		Attribute{Name: "content", Column: "content", Codec: CodecBytes},
		Attribute{Name: "meta", Column: "meta", Codec: CodecBag},
		Attribute{Name: "createdAt", Column: "created", Codec: CodecTime, Managed: true},
		Attribute{Name: "updatedAt", Column: "updated", Codec: CodecTime, Managed: true},
	),
	KindLibrary: newDescriptor(KindLibrary, "libs", "meta", "name",
		Attribute{Name: "id", Column: "id", Codec: CodecText, Managed: true},
		Attribute{Name: "name", Column: "name", Codec: CodecText},
		Attribute{Name: "content", Column: "content", Codec: CodecText},
		Attribute{Name: "contentType", Column: "content_type", Codec: CodecText},
		Attribute{Name: "meta", Column: "meta", Codec: CodecBag},
		Attribute{Name: "createdAt", Column: "created", Codec: CodecTime, Managed: true},
		Attribute{Name: "updatedAt", Column: "updated", Codec: CodecTime, Managed: true},
	),
	KindSchemaVersion: newDescriptor(KindSchemaVersion, "schema_version", "meta", "",
		Attribute{Name: "id", Column: "id", Codec: CodecText, Managed: true},
		Attribute{Name: "version", Column: "version", Codec: CodecInt},
		Attribute{Name: "meta", Column: "meta", Codec: CodecBag},
		Attribute{Name: "createdAt", Column: "created", Codec: CodecTime, Managed: true},
	),
}

// Kinds returns every entity kind in a fixed order.
func Kinds() []Kind {
	return []Kind{KindDocument, KindType, KindAttachment, KindLibrary, KindSchemaVersion}
}

// Lookup returns the descriptor for kind.
func Lookup(kind Kind) (*Descriptor, error) {
	d, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	return d, nil
}

// MustLookup is Lookup for kinds known at compile time.
func MustLookup(kind Kind) *Descriptor {
	d, err := Lookup(kind)
	if err != nil {
		panic(err)
	}
	return d
}

// RecognizedAttributes lists the attribute names of kind in order.
func RecognizedAttributes(kind Kind) []string {
	d := MustLookup(kind)
	names := make([]string, len(d.Attributes))
	for i, a := range d.Attributes {
		names[i] = a.Name
	}
	return names
}

// MetadataBagAttribute names the metadata bag attribute of kind.
func MetadataBagAttribute(kind Kind) string {
	return MustLookup(kind).Bag
}

// TableName is the backing table of kind.
func TableName(kind Kind) string {
	return MustLookup(kind).Table
}
