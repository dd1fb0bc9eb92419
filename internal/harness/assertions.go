package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/nopg/internal/ir"
	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/queryir"
	"github.com/roach88/nopg/internal/session"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Events   []string // Delivered events for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nDelivered events:\n")
		for i, event := range e.Events {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, event)
		}
	}

	return buf.String()
}

// checkExpect compares a step's fetched value against its expectation.
func checkExpect(value any, expect *Expect) []string {
	var failures []string

	list, isList := value.([]*model.Entity)
	if expect.Count != nil {
		if !isList {
			failures = append(failures, fmt.Sprintf("count: expected a list, got %T", value))
		} else if len(list) != *expect.Count {
			failures = append(failures, fmt.Sprintf("count: expected %d, got %d", *expect.Count, len(list)))
		}
	}

	if expect.Result != nil {
		var e *model.Entity
		switch v := value.(type) {
		case *model.Entity:
			e = v
		case []*model.Entity:
			if len(v) > 0 {
				e = v[0]
			}
		}
		if e == nil {
			failures = append(failures, fmt.Sprintf("result: expected an entity, got %v", value))
		} else if !matchSubset(e.Map(), expect.Result) {
			failures = append(failures, fmt.Sprintf("result: expected %v, got %v", expect.Result, e.Map()))
		}
	}

	if expect.Results != nil {
		switch {
		case !isList:
			failures = append(failures, fmt.Sprintf("results: expected a list, got %T", value))
		case len(list) != len(expect.Results):
			failures = append(failures, fmt.Sprintf("results: expected %d entries, got %d", len(expect.Results), len(list)))
		default:
			for i, want := range expect.Results {
				if got := list[i].Map(); !matchSubset(got, want) {
					failures = append(failures, fmt.Sprintf("results[%d]: expected %v, got %v", i, want, got))
				}
			}
		}
	}

	if expect.Value != nil && !ir.EqualNFC(value, expect.Value) {
		failures = append(failures, fmt.Sprintf("value: expected %v, got %v", expect.Value, value))
	}

	return failures
}

// matchSubset reports whether every expected key is present in actual with
// a structurally equal value, ignoring Unicode normalization form. Extra
// keys in actual are OK.
func matchSubset(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, exists := actual[key]
		if !exists {
			return false
		}
		if !ir.EqualNFC(got, want) {
			return false
		}
	}
	return true
}

func assertEventContains(events []string, a Assertion) error {
	for _, e := range events {
		if e == a.Event {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertEventContains,
		Expected: a.Event,
		Actual:   "not delivered",
		Events:   events,
	}
}

// assertEventOrder checks that events appear in the given order.
// Events don't need to be consecutive.
func assertEventOrder(events []string, a Assertion) error {
	next := 0
	for _, e := range events {
		if next < len(a.Events) && e == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventOrder,
		Expected: strings.Join(a.Events, " -> "),
		Actual:   fmt.Sprintf("%q not found in order", a.Events[next]),
		Events:   events,
	}
}

func assertEventCount(events []string, a Assertion) error {
	n := 0
	for _, e := range events {
		if e == a.Event {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%s delivered %d times", a.Event, a.Count),
		Actual:   fmt.Sprintf("%d times", n),
		Events:   events,
	}
}

// searchStored runs a committed search for a stored_* assertion.
func searchStored(ctx context.Context, db *session.DB, a Assertion) ([]*model.Entity, error) {
	s, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Rollback()

	switch model.Kind(a.Kind) {
	case model.KindDocument:
		var typ any
		if a.TypeName != "" {
			typ = a.TypeName
		}
		s.Search(ctx, typ, a.Predicate, queryir.Options{})
	case model.KindType:
		s.SearchTypes(ctx, a.Predicate, queryir.Options{})
	case model.KindAttachment:
		s.SearchAttachments(ctx, nil, a.Predicate)
	case model.KindLibrary:
		s.SearchLibraries(ctx, a.Predicate)
	default:
		return nil, fmt.Errorf("unsupported kind %q", a.Kind)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	list, _ := session.FetchAs[[]*model.Entity](s)
	return list, nil
}

func assertStoredCount(ctx context.Context, db *session.DB, a Assertion) error {
	found, err := searchStored(ctx, db, a)
	if err != nil {
		return fmt.Errorf("%s: %w", AssertStoredCount, err)
	}
	if len(found) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertStoredCount,
		Expected: fmt.Sprintf("%d %s entities", a.Count, a.Kind),
		Actual:   fmt.Sprintf("%d", len(found)),
	}
}

func assertStoredContains(ctx context.Context, db *session.DB, a Assertion) error {
	found, err := searchStored(ctx, db, a)
	if err != nil {
		return fmt.Errorf("%s: %w", AssertStoredContains, err)
	}
	for _, e := range found {
		if matchSubset(e.Map(), a.Expect) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertStoredContains,
		Expected: fmt.Sprintf("%s matching %v", a.Kind, a.Expect),
		Actual:   fmt.Sprintf("none among %d", len(found)),
	}
}

// EvaluateAssertions evaluates all assertions and returns their failures.
func EvaluateAssertions(ctx context.Context, db *session.DB, result *Result, assertions []Assertion) []string {
	var failures []string
	events := result.Events()

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEventContains:
			err = assertEventContains(events, assertion)
		case AssertEventOrder:
			err = assertEventOrder(events, assertion)
		case AssertEventCount:
			err = assertEventCount(events, assertion)
		case AssertStoredCount:
			err = assertStoredCount(ctx, db, assertion)
		case AssertStoredContains:
			err = assertStoredContains(ctx, db, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			failures = append(failures, err.Error())
		}
	}

	return failures
}
