package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Scenarios(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(context.Background(), scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(scenario.Steps)+len(result.Events()))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/documents_crud.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_ReportsUnexpectedError(t *testing.T) {
	scenario := mustParse(t, `
name: missing_type
description: "Creating under an unknown type fails"
steps:
  - op: create
    type: Ghost
    data: { a: 1 }
`)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Equal(t, "NOT_FOUND", result.Trace[0].Error)
}

func TestRun_ReportsWrongErrorCode(t *testing.T) {
	scenario := mustParse(t, `
name: wrong_code
description: "Expectation names a different code"
steps:
  - op: getType
    name: Ghost
    expect:
      error: NOT_UNIQUE
`)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected error NOT_UNIQUE, got NOT_FOUND")
}

func TestRun_ReportsMissingError(t *testing.T) {
	scenario := mustParse(t, `
name: no_error
description: "Expected failure succeeds"
steps:
  - op: create
    data: { a: 1 }
    expect:
      error: VALIDATION_FAILED
`)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "got success")
}

func TestRun_ReportsResultMismatch(t *testing.T) {
	scenario := mustParse(t, `
name: mismatch
description: "Result differs from expectation"
steps:
  - op: create
    data: { a: 1 }
    expect:
      result: { a: 2 }
  - op: search
    expect:
      count: 3
`)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "result: expected")
	assert.Contains(t, result.Errors[1], "count: expected 3, got 1")
}

func TestRun_FailedStepDoesNotPoisonLaterSteps(t *testing.T) {
	scenario := mustParse(t, `
name: isolation
description: "Each step has its own session"
steps:
  - op: create
    data: {}
    expect:
      error: INVALID_ARGUMENT
  - op: create
    data: { a: 1 }
  - op: search
    expect:
      count: 1
assertions:
  - type: event_count
    event: "created:Document"
    count: 1
`)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FailedAssertions(t *testing.T) {
	scenario := mustParse(t, `
name: failing_assertions
description: "Every assertion type can fail"
steps:
  - op: create
    data: { a: 1 }
assertions:
  - type: event_contains
    event: "deleted:Document"
  - type: event_order
    events: ["deleted:Document", "created:Document"]
  - type: event_count
    event: "created:Document"
    count: 2
  - type: stored_count
    kind: Document
    count: 5
  - type: stored_contains
    kind: Document
    expect: { a: 2 }
`)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "event_contains")
	assert.Contains(t, result.Errors[1], "event_order")
	assert.Contains(t, result.Errors[2], "event_count")
	assert.Contains(t, result.Errors[3], "stored_count")
	assert.Contains(t, result.Errors[4], "stored_contains")
}

func TestRun_EventsAreDeliveredOnlyForCommittedSteps(t *testing.T) {
	scenario := mustParse(t, `
name: rolled_back
description: "A failed step delivers nothing"
steps:
  - op: declareType
    name: Strict
    data: { $validator: "n: int" }
  - op: create
    type: Strict
    data: { n: text }
    expect:
      error: VALIDATION_FAILED
`)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{"created:TypeDef"}, result.Events())
}

func TestRun_SaveNeedsAnEntity(t *testing.T) {
	scenario := mustParse(t, `
name: bad_save
description: "Scalars cannot be saved"
steps:
  - op: typeExists
    name: Any
    save: x
`)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "cannot save bool")
}

func TestRun_InvalidMatchMode(t *testing.T) {
	scenario := mustParse(t, `
name: bad_match
description: "Unknown match modes abort the run"
steps:
  - op: search
    match: some
`)
	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps[0] search")
}

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}
