package agent

import (
	"context"
	"time"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/hooks"
	"github.com/soyeahso/helix/internal/lock"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/outreach"
	"github.com/soyeahso/helix/internal/sequence"
	"github.com/soyeahso/helix/internal/store"
)

// Oracle is the model surface the service needs. *llm.Gateway satisfies it.
type Oracle interface {
	Model
	sequence.Oracle
}

// ServiceDeps wires a Service.
type ServiceDeps struct {
	Agent   config.AgentConfig
	Session config.SessionConfig
	Oracle  Oracle
	Store   store.Store
	Locker  lock.Locker     // defaults to an in-process lock
	Mailer  outreach.Mailer // nil disables send_personalized_email
	Hooks   *hooks.Manager  // defaults to a manager with no handlers
	Log     *logging.Logger
}

// Service is the conversational entry point used by the gateway, the IRC
// channel and the CLI. Turns of one session are serialized through the
// locker; different sessions run concurrently.
type Service struct {
	dispatcher *Dispatcher
	registry   *Registry
	book       *sequence.Book
	store      store.Store
	locker     lock.Locker
	hooks      *hooks.Manager
	log        *logging.Logger
	now        func() time.Time
}

// NewService builds the registry, dispatcher and sequence book.
func NewService(d ServiceDeps) *Service {
	if d.Locker == nil {
		d.Locker = lock.NewLocal()
	}
	if d.Hooks == nil {
		d.Hooks = hooks.NewManager(d.Log)
	}

	book := sequence.NewBook(d.Store, d.Session.SequenceScope, d.Log)
	registry := NewRegistry()
	gen := RegisterBuiltins(registry, Builtins{
		Oracle:      d.Oracle,
		Synthesizer: sequence.NewSynthesizer(d.Oracle, d.Log),
		Book:        book,
		Roster:      outreach.NewRoster(),
		Mailer:      d.Mailer,
		GuidedFlow:  d.Agent.GuidedFlowEnabled(),
		Log:         d.Log,
	})

	return &Service{
		dispatcher: NewDispatcher(DispatcherConfig{
			AgentName: d.Agent.Name,
			FastPath:  d.Agent.FastPathEnabled(),
		}, d.Oracle, registry, gen, d.Log),
		registry: registry,
		book:     book,
		store:    d.Store,
		locker:   d.Locker,
		hooks:    d.Hooks,
		log:      d.Log.Sub("agent"),
		now:      time.Now,
	}
}

// Actions lists the registered actions.
func (s *Service) Actions() []ActionDef { return s.registry.Definitions() }

// HandleMessage answers one user message. current is the sequence as the
// caller sees it; nil means the stored sequence is used. The user message
// and the reply are appended to the transcript together.
func (s *Service) HandleMessage(ctx context.Context, sessionID, message string, current []domain.SequenceStep) *ProcessResult {
	unlock, err := s.locker.Lock(ctx, "session:"+sessionID)
	if err != nil {
		return failed(KindInternal, "acquiring session lock: "+err.Error())
	}
	defer unlock()

	conv, err := s.store.GetOrCreateConversation(ctx, sessionID)
	if err != nil {
		return failed(KindPersistenceFailure, persistence("loading conversation", err).Error())
	}
	if current == nil {
		seq, err := s.book.Current(ctx, sessionID)
		if err != nil {
			s.log.Warn().Err(err).Str("session", sessionID).Msg("loading current sequence")
		} else if seq != nil {
			current = seq.Steps
		}
	}

	bg := context.WithoutCancel(ctx)
	s.hooks.EmitAsync(bg, hooks.EventMessageReceived, map[string]any{
		hooks.KeySession: sessionID,
		"message":        message,
	})

	received := s.now()
	res := s.dispatcher.Process(ctx, Turn{
		SessionID:       sessionID,
		Message:         message,
		History:         conv.Messages,
		CurrentSequence: current,
		Flow:            conv.Flow,
	})

	err = s.store.RecordTurn(ctx, sessionID, store.TurnWrite{
		Messages: []domain.ChatMessage{
			{Sender: domain.SenderUser, Text: message, Timestamp: received},
			{Sender: domain.SenderAgent, Text: res.ChatResponse, Timestamp: s.now()},
		},
		UpdateFlow: res.FlowChanged,
		Flow:       res.Flow,
	})
	if err != nil {
		s.log.Error().Err(err).Str("session", sessionID).Msg("saving turn")
		res.fail(KindPersistenceFailure, persistence("saving turn", err).Error())
		return res
	}

	s.emitTurn(bg, sessionID, conv.Flow != nil, res)
	return res
}

func (s *Service) emitTurn(ctx context.Context, sessionID string, hadFlow bool, res *ProcessResult) {
	if res.FlowChanged && res.Flow != nil && !hadFlow {
		s.hooks.EmitAsync(ctx, hooks.EventFlowStarted, map[string]any{hooks.KeySession: sessionID})
	}
	if res.Route == RouteFlow && res.Sequence != nil {
		s.hooks.EmitAsync(ctx, hooks.EventFlowCompleted, map[string]any{hooks.KeySession: sessionID, hooks.KeySequenceID: res.Sequence.ID})
	}
	if res.Sequence != nil {
		s.emitSequence(ctx, sessionID, res.Sequence, res.StepID)
	}

	if res.Status == StatusError {
		s.hooks.EmitAsync(ctx, hooks.EventTurnFailed, map[string]any{
			hooks.KeySession: sessionID,
			"kind":           string(res.ErrorKind),
			"error":          res.Error,
		})
		return
	}
	s.hooks.EmitAsync(ctx, hooks.EventTurnCompleted, map[string]any{
		hooks.KeySession: sessionID,
		"action":         res.Action(),
		"route":          string(res.Route),
	})
}

func (s *Service) emitSequence(ctx context.Context, sessionID string, seq *domain.Sequence, stepID string) {
	if stepID != "" {
		s.hooks.EmitAsync(ctx, hooks.EventStepEdited, map[string]any{
			hooks.KeySession:  sessionID,
			hooks.KeyStepID:   stepID,
			hooks.KeySequence: seq,
		})
	}
	s.hooks.EmitAsync(ctx, hooks.EventSequenceChanged, map[string]any{
		hooks.KeySession:  sessionID,
		hooks.KeySequence: seq,
	})
}

// History returns the session's transcript.
func (s *Service) History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	conv, err := s.store.GetOrCreateConversation(ctx, sessionID)
	if err != nil {
		return nil, persistence("loading conversation", err)
	}
	return conv.Messages, nil
}

// Sequence returns the session's sequence, creating the default one when
// none exists yet.
func (s *Service) Sequence(ctx context.Context, sessionID string) (*domain.Sequence, error) {
	seq, created, err := s.book.Ensure(ctx, sessionID)
	if err != nil {
		return nil, persistence("loading sequence", err)
	}
	if created {
		s.emitSequence(context.WithoutCancel(ctx), sessionID, seq, "")
	}
	return seq, nil
}

// SaveSequence replaces the session's steps with user-authored ones.
func (s *Service) SaveSequence(ctx context.Context, sessionID string, steps []domain.SequenceStep) (*domain.Sequence, error) {
	steps, err := sequence.ValidateSteps(steps)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, "session:"+sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	seq, err := s.book.ReplaceSteps(ctx, sessionID, steps)
	if err != nil {
		return nil, persistence("saving sequence", err)
	}
	s.log.Info().Str("session", sessionID).Int("steps", len(seq.Steps)).Msg("sequence saved")
	s.emitSequence(context.WithoutCancel(ctx), sessionID, seq, "")
	return seq, nil
}

// EditStep sets the content of one step.
func (s *Service) EditStep(ctx context.Context, sessionID, stepID, content string) (*domain.Sequence, error) {
	unlock, err := s.locker.Lock(ctx, "session:"+sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	seq, err := s.book.EditStep(ctx, sessionID, stepID, content)
	if err != nil {
		return nil, persistence("editing step", err)
	}
	s.emitSequence(context.WithoutCancel(ctx), sessionID, seq, stepID)
	return seq, nil
}

// WaitHooks blocks until asynchronous hook handlers have finished.
func (s *Service) WaitHooks() { s.hooks.Wait() }

func failed(kind ErrorKind, detail string) *ProcessResult {
	res := &ProcessResult{}
	res.fail(kind, detail)
	return res
}
