package harness

import "fmt"

// Trace event types.
const (
	TraceStep  = "step"
	TraceEvent = "event"
)

// TraceEntry is one step outcome or one delivered lifecycle event.
type TraceEntry struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`

	// Step fields.
	Op    string `json:"op,omitempty"`
	Error string `json:"error,omitempty"` // error code, empty on success
	Value any    `json:"value,omitempty"`

	// Event fields.
	Event string `json:"event,omitempty"` // "<eventType>:<kind>"
	ID    string `json:"id,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace holds step outcomes and delivered events in order.
	Trace []TraceEntry `json:"trace"`

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	seq int64
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError adds a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddErrorf is AddError with formatting.
func (r *Result) AddErrorf(format string, args ...any) {
	r.AddError(fmt.Sprintf(format, args...))
}

// AddStepTrace records a step outcome.
func (r *Result) AddStepTrace(op, code string, value any) {
	r.seq++
	r.Trace = append(r.Trace, TraceEntry{
		Seq:   r.seq,
		Type:  TraceStep,
		Op:    op,
		Error: code,
		Value: value,
	})
}

// AddEventTrace records a delivered lifecycle event.
func (r *Result) AddEventTrace(event, id string) {
	r.seq++
	r.Trace = append(r.Trace, TraceEntry{
		Seq:   r.seq,
		Type:  TraceEvent,
		Event: event,
		ID:    id,
	})
}

// Events returns the delivered event names in order.
func (r *Result) Events() []string {
	var out []string
	for _, e := range r.Trace {
		if e.Type == TraceEvent {
			out = append(out, e.Event)
		}
	}
	return out
}
