// Package queryir is the predicate tree behind document search.
//
// Callers describe what they want with loosely typed input: a flat map of
// field to expected value, nested ["AND", ...] / ["OR", ...] arrays, a
// ["BIND", field, fn, args...] branch evaluated in Go, an already loaded
// entity (identity match), or nil (match everything). Parse turns any of
// these into a sealed Predicate tree; querysql compiles the tree to SQL and
// Match evaluates it in memory for branches SQL cannot express.
//
// FIELDS:
//
// A field name carrying the "$" sigil addresses a recognized attribute and
// compares the column directly. Any other name addresses a key of the
// metadata bag and compares the extracted JSON value.
//
// CAST RULE:
//
// The Go type of the expected value decides the comparison:
//
//	numeric (int*, uint*, float*, json.Number)  numeric comparison
//	nil                                         key missing or JSON null
//	anything else                               text comparison
//
// A numeric-looking string is text. {"n": "2"} and {"n": 2} are different
// predicates.
//
// SEALED INTERFACES:
//
// Predicate is sealed with a marker method so compilers can switch
// exhaustively over the node types defined here.
package queryir
