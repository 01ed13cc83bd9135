package structure

// Status is the lifecycle state of a trial. Values are spaced so that
// custom statuses can slot between the predefined ones.
type Status struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

var (
	StatusNew         = Status{Name: "new", Value: 0}
	StatusRunning     = Status{Name: "running", Value: 100}
	StatusInterrupted = Status{Name: "interrupted", Value: 200}
	StatusBroken      = Status{Name: "broken", Value: 300}
	StatusCompleted   = Status{Name: "completed", Value: 400}
)

// NewStatus builds a custom status for callers that need states beyond the
// predefined lifecycle.
func NewStatus(name string, value int) Status {
	return Status{Name: name, Value: value}
}

// Finished reports whether the trial reached a terminal state.
func (s Status) Finished() bool {
	return s.Value >= StatusInterrupted.Value
}
