// Package ir holds the value-level helpers shared by every layer of the
// document store: canonical JSON, structural equality, and the numeric and
// textual renderings used when comparing stored metadata against predicate
// literals.
//
// ir imports nothing internal. Every other internal package may import it.
package ir
