package grid

import "time"

// OutcomeKind classifies how a commit or delete resolved.
type OutcomeKind int

const (
	OutcomeCommitted OutcomeKind = iota
	OutcomeUnchanged
	OutcomeRejected
	OutcomeFailed
	OutcomeMalformed
	OutcomeDiscarded
	OutcomeDeleted
	OutcomeDeleteFailed
	OutcomeCreated
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCommitted:
		return "committed"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeDeleted:
		return "deleted"
	case OutcomeDeleteFailed:
		return "delete-failed"
	case OutcomeCreated:
		return "created"
	}
	return "unknown"
}

// Outcome reports one resolved operation to Config.OnOutcome.
type Outcome struct {
	Kind      OutcomeKind
	Op        string // "update", "delete" or "create"
	RequestID string
	Key       Key
	Field     string
	Old       string
	New       string
	Message   string
	At        time.Time
}

// Notice is a blocking alert for the user. It stays until dismissed.
type Notice struct {
	Text string
}

// DeletePrompt is the confirmation dialog state of a row deletion.
type DeletePrompt struct {
	Handle string
	Text   string
	// Busy is set while the delete request is in flight.
	Busy bool
	// Done is set once the request resolved; only dismissal remains.
	Done      bool
	RequestID string
}

// LoadedMsg carries the result of Controller.Load.
type LoadedMsg struct {
	Epoch int
	Rows  []map[string]any
	Err   error
}

// UpdatedMsg carries the result of a dispatched commit.
type UpdatedMsg struct {
	RequestID string
	Ref       CellRef
	Key       Key
	Row       map[string]any
	Err       error
}

// CreatedMsg carries the result of AddRow.
type CreatedMsg struct {
	RequestID string
	Key       Key
	Row       map[string]any
	Err       error
}

// DeletedMsg carries the result of a dispatched delete.
type DeletedMsg struct {
	RequestID string
	Handle    string
	Key       Key
	Data      map[string]any
	Err       error
}
