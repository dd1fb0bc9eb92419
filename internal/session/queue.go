package session

// valueQueue is the FIFO of operation results.
//
// Not safe for concurrent use: it belongs to exactly one Session.
type valueQueue struct {
	values []any
}

func newValueQueue() *valueQueue {
	return &valueQueue{values: make([]any, 0, 8)}
}

// Push appends a result.
func (q *valueQueue) Push(v any) {
	q.values = append(q.values, v)
}

// Shift removes and returns the oldest result.
// Returns (nil, false) if the queue is empty.
func (q *valueQueue) Shift() (any, bool) {
	if len(q.values) == 0 {
		return nil, false
	}
	v := q.values[0]

	// CRITICAL: Nil out the slot so the backing array does not keep
	// fetched entities alive.
	q.values[0] = nil

	if len(q.values) == 1 {
		q.values = q.values[:0]
	} else {
		q.values = q.values[1:]
	}
	return v, true
}

// Last returns the newest result without removing it.
func (q *valueQueue) Last() (any, bool) {
	if len(q.values) == 0 {
		return nil, false
	}
	return q.values[len(q.values)-1], true
}

// Drain removes and returns every result in order.
func (q *valueQueue) Drain() []any {
	out := q.values
	q.values = make([]any, 0, 8)
	return out
}

// Len returns the number of unread results.
func (q *valueQueue) Len() int {
	return len(q.values)
}
