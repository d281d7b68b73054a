package provider

import "context"

// ResultKind classifies the outcome of advancing a login flow one step.
type ResultKind int

const (
	// ResultForm means the negotiation needs more input from the caller.
	ResultForm ResultKind = iota
	// ResultCompleted is terminal and carries a provider-specific payload.
	ResultCompleted
	// ResultAborted is terminal and yields no credentials.
	ResultAborted
)

// String returns a readable name for the result kind.
func (k ResultKind) String() string {
	switch k {
	case ResultForm:
		return "form"
	case ResultCompleted:
		return "completed"
	case ResultAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result is the outcome of one flow step.
type Result struct {
	Kind ResultKind

	// StepID names the pending form step when Kind is ResultForm.
	StepID string

	// Payload carries the provider-specific authentication result when
	// Kind is ResultCompleted.
	Payload map[string]any

	// Reason describes why the attempt ended when Kind is ResultAborted.
	Reason string
}

// Terminal reports whether the result ends the flow.
func (r Result) Terminal() bool {
	return r.Kind == ResultCompleted || r.Kind == ResultAborted
}

// Flow drives a single login attempt through a provider's negotiation. The
// negotiation is opaque to the core and may itself be multi-step.
//
// There is no cancellation primitive: discarding a flow before it reaches a
// terminal result leaves no trace in the entity graph.
type Flow interface {
	// Resume advances the negotiation with caller-supplied input and
	// returns the next result.
	Resume(ctx context.Context, input map[string]any) (Result, error)
}
