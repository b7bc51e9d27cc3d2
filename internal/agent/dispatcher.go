package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/llm"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/sequence"
)

// maxSelectAttempts is the first action-selection call plus one corrective
// retry.
const maxSelectAttempts = 2

// Model completes chat requests. *llm.Gateway satisfies it.
type Model interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// RecordBuilder turns a completed intake record into a stored sequence.
type RecordBuilder interface {
	BuildFromRecord(ctx context.Context, sessionID string, rec domain.RequirementsRecord) (*domain.Sequence, error)
}

// Status is the outcome of a turn.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Route records which path handled a turn.
type Route string

const (
	RouteFastPath Route = "fast_path"
	RouteFlow     Route = "flow"
	RouteDispatch Route = "dispatch"
)

// Turn is one incoming message with the state it is answered against.
type Turn struct {
	SessionID       string
	Message         string
	History         []domain.ChatMessage
	CurrentSequence []domain.SequenceStep

	// Flow is the persisted pending intake question. When nil the most
	// recent agent message in History is checked for a question payload.
	Flow *domain.FlowState
}

// ProcessResult is the structured outcome of a turn. Every path returns
// one; failures are reported through Status and ErrorKind.
type ProcessResult struct {
	Status       Status    `json:"status"`
	Route        Route     `json:"route,omitempty"`
	LLMResponse  *Intent   `json:"llm_response,omitempty"`
	RawModelText string    `json:"raw_model_text,omitempty"`
	ToolResult   string    `json:"tool_result,omitempty"`
	ChatResponse string    `json:"chat_response"`
	Error        string    `json:"error,omitempty"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`

	Sequence *domain.Sequence `json:"sequence,omitempty"`
	StepID   string           `json:"step_id,omitempty"`

	// Flow is the intake state to persist when FlowChanged is set; nil
	// clears it.
	Flow        *domain.FlowState `json:"-"`
	FlowChanged bool              `json:"-"`
}

// Action returns the resolved action name, or "" when none was chosen.
func (r *ProcessResult) Action() string {
	if r.LLMResponse == nil {
		return ""
	}
	return r.LLMResponse.Action
}

func (r *ProcessResult) fail(kind ErrorKind, detail string) {
	r.Status = StatusError
	r.ErrorKind = kind
	r.Error = detail
	r.ChatResponse = kind.UserMessage()
}

func (r *ProcessResult) clearFlow() {
	r.Flow = nil
	r.FlowChanged = true
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	AgentName string
	FastPath  bool
}

// Dispatcher runs one turn: fast-path routing, guided-flow resumption,
// model action selection with a single corrective retry, and action
// execution.
type Dispatcher struct {
	cfg      DispatcherConfig
	model    Model
	registry *Registry
	records  RecordBuilder
	log      *logging.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig, model Model, registry *Registry, records RecordBuilder, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		model:    model,
		registry: registry,
		records:  records,
		log:      log.Sub("dispatcher"),
	}
}

// Process handles one turn.
func (d *Dispatcher) Process(ctx context.Context, turn Turn) *ProcessResult {
	start := time.Now()
	res := d.process(ctx, turn)

	ev := d.log.Info()
	if res.Status == StatusError {
		ev = d.log.Warn().Str("kind", string(res.ErrorKind)).Str("error", res.Error)
	}
	ev.Str("session", turn.SessionID).
		Str("route", string(res.Route)).
		Str("action", res.Action()).
		Dur("elapsed", time.Since(start)).
		Msg("turn processed")
	return res
}

func (d *Dispatcher) process(ctx context.Context, turn Turn) *ProcessResult {
	pending, hasPending := pendingFlow(turn)

	if d.cfg.FastPath {
		if title, ok := sequence.FastPath(turn.Message); ok {
			d.log.Debug().Str("title", title).Msg("fast path")
			res := &ProcessResult{Route: RouteFastPath}
			d.execute(ctx, turn, Intent{Action: string(ActionGenerateSequence), ActionInput: turn.Message}, true, res)
			if hasPending && res.Status == StatusSuccess {
				res.clearFlow()
			}
			return res
		}
	}

	staleFlow := false
	if hasPending {
		res, ok := d.resumeFlow(ctx, turn, pending)
		if ok {
			return res
		}
		staleFlow = turn.Flow != nil
	}

	res := &ProcessResult{Route: RouteDispatch}
	if staleFlow {
		res.clearFlow()
	}

	intent, raw, err := d.selectAction(ctx, turn)
	res.RawModelText = raw
	if err != nil {
		res.fail(Classify(err), err.Error())
		return res
	}
	d.execute(ctx, turn, intent, false, res)
	return res
}

// pendingFlow returns the intake question awaiting an answer. The explicit
// state wins; otherwise only the most recent agent message is considered.
func pendingFlow(turn Turn) (domain.FlowState, bool) {
	if turn.Flow != nil {
		return *turn.Flow, true
	}
	last, ok := domain.LastAgentMessage(turn.History)
	if !ok {
		return domain.FlowState{}, false
	}
	return sequence.ParseQuestion(last.Text)
}

// resumeFlow feeds the message to the intake dialogue. It reports false
// when the state cannot be advanced, so the turn falls through to normal
// dispatch.
func (d *Dispatcher) resumeFlow(ctx context.Context, turn Turn, state domain.FlowState) (*ProcessResult, bool) {
	out, err := sequence.AdvanceFlow(state, turn.Message)
	if err != nil {
		d.log.Warn().Err(err).Str("session", turn.SessionID).Msg("discarding unusable flow state")
		return nil, false
	}

	res := &ProcessResult{Route: RouteFlow, Status: StatusSuccess}
	switch {
	case out.Cancelled:
		res.ToolResult = jsonPayload(map[string]any{"status": "cancelled"})
		res.ChatResponse = "No problem, I've stopped the sequence builder. Let me know whenever you'd like to start again."
		res.clearFlow()

	case out.Question != nil:
		res.ToolResult = out.Question.JSON()
		res.ChatResponse = out.Question.Question
		next := out.Question.SequenceInfo
		res.Flow = &next
		res.FlowChanged = true

	case out.Record != nil:
		seq, err := d.records.BuildFromRecord(ctx, turn.SessionID, *out.Record)
		if err != nil {
			// The flow stays on the last step so the answer can be resent.
			d.failWith(res, err)
			return res, true
		}
		res.Sequence = seq
		res.ToolResult = sequencePayload(seq)
		res.ChatResponse = describeSequence(seq)
		res.clearFlow()
	}
	return res, true
}

// selectAction asks the model which action to run, retrying once with a
// corrective instruction when the reply cannot be read.
func (d *Dispatcher) selectAction(ctx context.Context, turn Turn) (Intent, string, error) {
	req := llm.CompletionRequest{
		System: BuildSystemPrompt(d.cfg.AgentName, d.registry.Definitions()),
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: BuildHumanPrompt(d.cfg.AgentName, turn.History, turn.CurrentSequence, turn.Message)},
		},
		JSONMode: true,
	}

	var raw string
	for attempt := 1; attempt <= maxSelectAttempts; attempt++ {
		resp, err := d.model.Complete(ctx, req)
		if err != nil {
			return Intent{}, raw, err
		}
		raw = resp.Content

		intent, err := Interpret(raw)
		if err == nil {
			return intent, raw, nil
		}
		d.log.Warn().Int("attempt", attempt).Str("session", turn.SessionID).Msg("unreadable model reply")

		req.Messages = append(req.Messages,
			llm.Message{Role: llm.RoleAssistant, Content: raw},
			llm.Message{Role: llm.RoleUser, Content: correctiveInstruction},
		)
	}
	return Intent{}, raw, ErrMalformedResponse
}

func (d *Dispatcher) execute(ctx context.Context, turn Turn, intent Intent, direct bool, res *ProcessResult) {
	res.LLMResponse = &intent

	action, ok := d.registry.Get(intent.Action)
	if !ok {
		res.fail(KindToolNotFound, fmt.Sprintf("Unknown action: %s", intent.Action))
		res.ChatResponse = fmt.Sprintf("Sorry, I tried to use an action I don't have (%s). Could you rephrase your request?", intent.Action)
		return
	}

	out, err := action.Execute(ctx, Call{
		SessionID: turn.SessionID,
		Input:     intent.ActionInput,
		Message:   turn.Message,
		Sequence:  turn.CurrentSequence,
		Direct:    direct,
	})
	if err != nil {
		d.failWith(res, err)
		return
	}

	res.Status = StatusSuccess
	res.ToolResult = out.Payload
	res.ChatResponse = out.Reply
	if res.ChatResponse == "" {
		res.ChatResponse = replyFromPayload(out.Payload)
	}
	res.Sequence = out.Sequence
	res.StepID = out.StepID
	if out.FlowChanged {
		res.Flow = out.Flow
		res.FlowChanged = true
	}
}

func (d *Dispatcher) failWith(res *ProcessResult, err error) {
	res.fail(Classify(err), err.Error())
	var synthErr *sequence.SynthesisError
	if errors.As(err, &synthErr) {
		res.RawModelText = synthErr.Raw
	}
}
