package agent

import (
	"context"

	"github.com/soyeahso/helix/internal/domain"
)

// ActionKind names an operation the model may choose for a turn.
type ActionKind string

const (
	ActionAskClarifyingQuestion  ActionKind = "ask_clarifying_question"
	ActionGenerateSequence       ActionKind = "generate_sequence"
	ActionEditSequenceStep       ActionKind = "edit_sequence_step"
	ActionModifySequence         ActionKind = "modify_sequence"
	ActionProvideFeedback        ActionKind = "provide_feedback"
	ActionGenerateJobDescription ActionKind = "generate_job_description"
	ActionLoadCSVCandidates      ActionKind = "load_csv_candidates"
	ActionSendPersonalizedEmail  ActionKind = "send_personalized_email"
	ActionPrepareLinkedInMessage ActionKind = "prepare_linkedin_message"
	ActionMergeCandidateData     ActionKind = "merge_candidate_data"
)

// actionAliases maps near-miss names models are known to produce.
var actionAliases = map[string]ActionKind{
	"modify_sequence_step": ActionEditSequenceStep,
	"update_sequence_step": ActionEditSequenceStep,
	"edit_step":            ActionEditSequenceStep,
	"create_sequence":      ActionGenerateSequence,
	"ask_question":         ActionAskClarifyingQuestion,
	"give_feedback":        ActionProvideFeedback,
}

// Canonical rewrites a known alias to its action name. Other names are
// returned unchanged.
func Canonical(name string) string {
	if kind, ok := actionAliases[name]; ok {
		return string(kind)
	}
	return name
}

// Call is the input to one action execution.
type Call struct {
	SessionID string
	Input     string                // action_input chosen by the model
	Message   string                // the user's message for this turn
	Sequence  []domain.SequenceStep // sequence as the caller sees it, may be nil

	// Direct asks generate_sequence to synthesize immediately instead of
	// opening the guided intake.
	Direct bool
}

// Result is what an action produced. Payload is the JSON text handed back
// as tool_result; input problems are reported in-band through its status
// field rather than as a Go error.
type Result struct {
	Payload string
	Reply   string

	Sequence *domain.Sequence // set when the action stored a sequence
	StepID   string           // set by single-step edits

	Flow        *domain.FlowState
	FlowChanged bool
}

// Action is one operation in the registry.
type Action interface {
	Kind() ActionKind

	// Description is shown to the model when it picks an action.
	Description() string

	// Execute runs the action. Errors are reserved for model and storage
	// failures; everything else belongs in the payload.
	Execute(ctx context.Context, call Call) (Result, error)
}

// ActionDef is the model-facing description of an action.
type ActionDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry holds the available actions in registration order.
type Registry struct {
	actions map[ActionKind]Action
	order   []ActionKind
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[ActionKind]Action)}
}

// Register adds an action, replacing any previous one of the same kind.
func (r *Registry) Register(a Action) {
	if _, exists := r.actions[a.Kind()]; !exists {
		r.order = append(r.order, a.Kind())
	}
	r.actions[a.Kind()] = a
}

// Get looks an action up by exact, case-sensitive name.
func (r *Registry) Get(name string) (Action, bool) {
	a, ok := r.actions[ActionKind(name)]
	return a, ok
}

// Kinds lists the registered actions.
func (r *Registry) Kinds() []ActionKind {
	out := make([]ActionKind, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns the model-facing descriptions in registration order.
func (r *Registry) Definitions() []ActionDef {
	defs := make([]ActionDef, 0, len(r.order))
	for _, k := range r.order {
		defs = append(defs, ActionDef{Name: string(k), Description: r.actions[k].Description()})
	}
	return defs
}
