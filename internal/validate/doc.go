// Package validate checks candidate documents against their TypeDef.
//
// A TypeDef carries up to two rules, applied in order:
//
//   - schema: a JSON-Schema document. It is translated to CUE once
//     (cuelang.org/go/encoding/jsonschema) and unified with the candidate.
//   - validator: either a CUE constraint ("cue:<source>") evaluated against
//     the candidate, or the name of a Go predicate registered with the
//     validator ("builtin:<name>"). Stored rules are data, never executed
//     code; a builtin name that was not registered fails validation.
//
// CUE libraries stored in the libs table are prepended to every CUE
// validator, so types can share definitions such as #Email.
package validate
