// Package harness runs end-to-end scenarios against a fresh document store.
//
// A scenario is a YAML file listing session operations and what each one
// should produce. Every step runs in its own session: it is committed when
// the operation succeeds and rolled back when it fails, so a step that
// expects an error does not poison the ones after it.
//
// # Scenario Format
//
//	name: typed_contacts
//	description: "Contacts are checked against their type"
//	steps:
//	  - op: declareType
//	    name: Contact
//	    data: { $validator: "email: #Email" }
//	  - op: create
//	    type: Contact
//	    data: { email: ada@example.com }
//	    save: ada
//	    expect:
//	      result: { email: ada@example.com, $type: Contact }
//	  - op: update
//	    ref: ada
//	    data: { email: nope }
//	    expect:
//	      error: VALIDATION_FAILED
//	  - op: search
//	    type: Contact
//	    predicate: { email: ada@example.com }
//	    expect:
//	      count: 1
//	assertions:
//	  - type: event_order
//	    events: ["created:TypeDef", "created:Document"]
//	  - type: stored_count
//	    kind: Document
//	    count: 1
//
// Results are compared as subsets: recognized attributes under "$name",
// caller fields under their own key. Numbers compare by value.
//
// # Assertion Types
//
//   - event_contains: an event of the given type and kind was delivered
//   - event_order: events appear in the given order, others may interleave
//   - event_count: an event appears exactly Count times
//   - stored_count: a committed search returns Count entities
//   - stored_contains: a committed search returns an entity matching Expect
//
// # Deterministic Runs
//
// Each scenario gets an in-memory SQLite store with a stepping clock and
// sequential ids, so results and traces are identical across runs.
package harness
