// Package hooks delivers Helix lifecycle events, such as a changed
// sequence, to interested subscribers.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/soyeahso/helix/internal/logging"
)

// Event names for the hook system.
const (
	EventMessageReceived = "message_received"
	EventTurnCompleted   = "turn_completed"
	EventTurnFailed      = "turn_failed"
	EventSequenceChanged = "sequence_changed"
	EventStepEdited      = "step_edited"
	EventFlowStarted     = "flow_started"
	EventFlowCompleted   = "flow_completed"
	EventGatewayStart    = "gateway_start"
	EventGatewayStop     = "gateway_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventMessageReceived,
	EventTurnCompleted,
	EventTurnFailed,
	EventSequenceChanged,
	EventStepEdited,
	EventFlowStarted,
	EventFlowCompleted,
	EventGatewayStart,
	EventGatewayStop,
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Data keys shared by emitters and subscribers.
const (
	KeySession    = "sessionId"
	KeySequence   = "sequence"
	KeySequenceID = "sequenceId"
	KeyStepID     = "stepId"
)

// SessionID returns the session the event belongs to, or "".
func (p Payload) SessionID() string {
	id, _ := p.Data[KeySession].(string)
	return id
}

// Handler is a function that handles a hook event.
// Returning an error logs the failure but does not stop processing.
type Handler func(ctx context.Context, p Payload) error

// Manager manages hook registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	inflight sync.WaitGroup
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for the given event.
// The name identifies the handler for logging and debugging.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handlers := m.handlers[event]
	filtered := make([]namedHandler, 0, len(handlers))
	for _, h := range handlers {
		if h.name != name {
			filtered = append(filtered, h)
		}
	}
	m.handlers[event] = filtered
}

// Emit dispatches an event to all registered handlers synchronously.
// Handlers are called in registration order. Errors and panics are logged
// and do not prevent subsequent handlers from running.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}

	payload := Payload{Event: event, Data: data}
	for _, h := range handlers {
		m.run(ctx, h, payload)
	}
}

// EmitAsync dispatches an event to all registered handlers concurrently and
// returns immediately. Handlers keep running after ctx is cancelled, since
// the caller's request usually ends first.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	payload := Payload{Event: event, Data: data}
	for _, h := range handlers {
		m.inflight.Add(1)
		go func(h namedHandler) {
			defer m.inflight.Done()
			m.run(ctx, h, payload)
		}(h)
	}
}

// Wait blocks until every handler started by EmitAsync has returned.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

func (m *Manager) snapshot(event string) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	handlers := make([]namedHandler, len(m.handlers[event]))
	copy(handlers, m.handlers[event])
	return handlers
}

func (m *Manager) run(ctx context.Context, h namedHandler, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().
				Str("event", p.Event).
				Str("handler", h.name).
				Str("panic", fmt.Sprint(r)).
				Msg("hook handler panicked")
		}
	}()
	if err := h.handler(ctx, p); err != nil {
		m.log.Warn().
			Err(err).
			Str("event", p.Event).
			Str("handler", h.name).
			Msg("hook handler error")
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the sorted list of events that have at least one handler.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.handlers))
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	sort.Strings(events)
	return events
}
