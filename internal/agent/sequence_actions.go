package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/sequence"
)

// ClarifyingQuestion echoes a question back to the user.
type ClarifyingQuestion struct{}

func (ClarifyingQuestion) Kind() ActionKind { return ActionAskClarifyingQuestion }

func (ClarifyingQuestion) Description() string {
	return "Ask the user a clarifying question when the request is missing details. Input: the question to ask."
}

func (ClarifyingQuestion) Execute(_ context.Context, call Call) (Result, error) {
	q := strings.TrimSpace(call.Input)
	if q == "" {
		q = "Could you tell me a bit more about the role you're hiring for?"
	}
	return Result{
		Payload: jsonPayload(map[string]any{"status": "success", "question": q}),
		Reply:   q,
	}, nil
}

// GenerateSequence creates a sequence from requirements, either directly
// or by opening the guided intake when the request reads like a new
// campaign.
type GenerateSequence struct {
	synth  *sequence.Synthesizer
	book   *sequence.Book
	guided bool
	log    *logging.Logger
}

// NewGenerateSequence creates the generate_sequence action. guided enables
// the ten-question intake.
func NewGenerateSequence(synth *sequence.Synthesizer, book *sequence.Book, guided bool, log *logging.Logger) *GenerateSequence {
	return &GenerateSequence{synth: synth, book: book, guided: guided, log: log.Sub("action.generate")}
}

func (g *GenerateSequence) Kind() ActionKind { return ActionGenerateSequence }

func (g *GenerateSequence) Description() string {
	return "Create a new recruiting outreach sequence. Input: the role and hiring requirements in plain text."
}

func (g *GenerateSequence) Execute(ctx context.Context, call Call) (Result, error) {
	req := strings.TrimSpace(call.Input)
	if req == "" {
		req = strings.TrimSpace(call.Message)
	}

	if g.guided && !call.Direct && (sequence.HasIntent(req) || sequence.HasIntent(call.Message)) {
		q := sequence.StartFlow(req + "\n" + call.Message)
		g.log.Info().Str("session", call.SessionID).Str("role", q.SequenceInfo.Collected.RoleTitle).Msg("guided flow started")
		state := q.SequenceInfo
		return Result{
			Payload:     q.JSON(),
			Reply:       q.Question,
			Flow:        &state,
			FlowChanged: true,
		}, nil
	}

	if req == "" {
		return inBand("No requirements given", "Tell me about the role you're hiring for and I'll draft a sequence."), nil
	}

	draft, err := g.synth.FromText(ctx, req)
	if err != nil {
		return Result{}, err
	}
	seq, err := g.book.Create(ctx, call.SessionID, draft)
	if err != nil {
		return Result{}, persistence("storing sequence", err)
	}
	return Result{Payload: sequencePayload(seq), Reply: describeSequence(seq), Sequence: seq}, nil
}

// BuildFromRecord synthesizes and stores a sequence from a completed
// intake record.
func (g *GenerateSequence) BuildFromRecord(ctx context.Context, sessionID string, rec domain.RequirementsRecord) (*domain.Sequence, error) {
	draft, err := g.synth.FromRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	seq, err := g.book.Create(ctx, sessionID, draft)
	if err != nil {
		return nil, persistence("storing sequence", err)
	}
	g.log.Info().Str("session", sessionID).Int64("sequence", seq.ID).Int("steps", len(seq.Steps)).Msg("guided flow completed")
	return seq, nil
}

// EditSequenceStep replaces one step's content.
type EditSequenceStep struct {
	book *sequence.Book
}

// NewEditSequenceStep creates the edit_sequence_step action.
func NewEditSequenceStep(book *sequence.Book) *EditSequenceStep {
	return &EditSequenceStep{book: book}
}

func (e *EditSequenceStep) Kind() ActionKind { return ActionEditSequenceStep }

func (e *EditSequenceStep) Description() string {
	return `Change the content of one step of the current sequence. Input: a JSON string {"step_id": "1", "new_content": "..."}.`
}

// EditInput is the action_input of edit_sequence_step.
type EditInput struct {
	StepID     string
	NewContent string
}

// ParseEditInput reads {"step_id", "new_content"}; a numeric step_id is
// accepted.
func ParseEditInput(s string) (EditInput, error) {
	var raw struct {
		StepID     json.RawMessage `json:"step_id"`
		NewContent string          `json:"new_content"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &raw); err != nil {
		return EditInput{}, errors.New("input must be a JSON object with step_id and new_content")
	}

	var id string
	if err := json.Unmarshal(raw.StepID, &id); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw.StepID, &n); err != nil {
			return EditInput{}, errors.New("missing step_id or new_content")
		}
		id = n.String()
	}
	in := EditInput{StepID: strings.TrimSpace(id), NewContent: strings.TrimSpace(raw.NewContent)}
	if in.StepID == "" || in.NewContent == "" {
		return EditInput{}, errors.New("missing step_id or new_content")
	}
	return in, nil
}

func (e *EditSequenceStep) Execute(ctx context.Context, call Call) (Result, error) {
	in, err := ParseEditInput(call.Input)
	if err != nil {
		return inBand(err.Error(), "I couldn't tell which step to change. Which step should I update, and what should it say?"), nil
	}

	seq, err := e.book.EditStep(ctx, call.SessionID, in.StepID, in.NewContent)
	if err != nil {
		return Result{}, persistence("editing step", err)
	}
	return Result{
		Payload: jsonPayload(map[string]any{
			"status":   "success",
			"message":  fmt.Sprintf("Step %s updated", in.StepID),
			"sequence": seq.Steps,
		}),
		Reply:    fmt.Sprintf("I've updated step %s of your sequence.", in.StepID),
		Sequence: seq,
		StepID:   in.StepID,
	}, nil
}

// ModifySequence rewrites the whole sequence from free-text instructions.
type ModifySequence struct {
	synth *sequence.Synthesizer
	book  *sequence.Book
}

// NewModifySequence creates the modify_sequence action.
func NewModifySequence(synth *sequence.Synthesizer, book *sequence.Book) *ModifySequence {
	return &ModifySequence{synth: synth, book: book}
}

func (m *ModifySequence) Kind() ActionKind { return ActionModifySequence }

func (m *ModifySequence) Description() string {
	return "Rework the current sequence as a whole (tone, number of steps, timing). Input: the requested changes."
}

func (m *ModifySequence) Execute(ctx context.Context, call Call) (Result, error) {
	instructions := strings.TrimSpace(call.Input)
	if instructions == "" {
		return inBand("No modification instructions given", "How would you like me to change the sequence?"), nil
	}

	var modelErr error
	seq, err := m.book.Rewrite(ctx, call.SessionID, func(cur *domain.Sequence) ([]domain.SequenceStep, error) {
		steps, err := m.synth.Modify(ctx, cur.Steps, instructions)
		modelErr = err
		return steps, err
	})
	switch {
	case modelErr != nil:
		return Result{}, modelErr
	case errors.Is(err, sequence.ErrNoSequence):
		return inBand("No sequence found to modify", "There's no sequence to modify yet. Would you like me to create one?"), nil
	case errors.Is(err, sequence.ErrConflict):
		return inBand("Sequence changed during modification", "The sequence was edited while I was reworking it. Please ask again and I'll start from the latest version."), nil
	case err != nil:
		return Result{}, persistence("modifying sequence", err)
	}

	return Result{
		Payload:  jsonPayload(map[string]any{"status": "success", "sequence": seq.Steps}),
		Reply:    fmt.Sprintf("I've modified the sequence according to your requirements. It now has %d steps.", len(seq.Steps)),
		Sequence: seq,
	}, nil
}
