package harness

// TraceEvent is the observed outcome of one executed step.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Op      string `json:"op"`
	Session string `json:"session"`

	// Seek arguments.
	Offset int64  `json:"offset,omitempty"`
	Whence string `json:"whence,omitempty"`

	// Count is the requested byte count for read/write; N is what moved.
	Count int `json:"count,omitempty"`
	N     int `json:"n,omitempty"`

	// Pos is the cursor after the step. Nil once the session is gone.
	Pos *int64 `json:"pos,omitempty"`

	// Error is the error code, empty on success.
	Error string `json:"error,omitempty"`

	// Data holds the bytes a successful read returned.
	Data []byte `json:"data,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Buffer is the device contents after the last step.
	Buffer []byte `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Failed reports whether any event ended in an error code.
func (r *Result) Failed() bool {
	for _, ev := range r.Trace {
		if ev.Error != "" {
			return true
		}
	}
	return false
}
