package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int               `json:"seq"`
	Action  string            `json:"action"`
	Owner   string            `json:"owner,omitempty"`
	Amount  uint64            `json:"amount,omitempty"`
	Outcome string            `json:"outcome,omitempty"`
	Reason  string            `json:"reason,omitempty"`  // Error code of a no-op or rejection
	Balance *uint64           `json:"balance,omitempty"` // Committed balance after the step
	Count   *int              `json:"count,omitempty"`   // History length or rows reset
	Units   map[string]string `json:"units,omitempty"`   // Migration unit -> status
	Error   string            `json:"error,omitempty"`   // Error code of a failed step
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event, assigning the next sequence number.
func (r *Result) AddTrace(event TraceEvent) TraceEvent {
	event.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, event)
	return event
}
