package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/helix/internal/domain"
)

// MemoryStore is an in-process Store. Nothing survives a restart.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
	sequences     map[int64]*domain.Sequence
	nextID        int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*domain.Conversation),
		sequences:     make(map[int64]*domain.Sequence),
	}
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) GetOrCreateConversation(_ context.Context, sessionID string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[sessionID]
	if !ok {
		now := time.Now().UTC()
		conv = &domain.Conversation{SessionID: sessionID, CreatedAt: now, UpdatedAt: now}
		m.conversations[sessionID] = conv
	}
	return cloneConversation(conv), nil
}

func (m *MemoryStore) AppendMessages(ctx context.Context, sessionID string, msgs ...domain.ChatMessage) error {
	return m.RecordTurn(ctx, sessionID, TurnWrite{Messages: msgs})
}

func (m *MemoryStore) RecordTurn(_ context.Context, sessionID string, w TurnWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[sessionID]
	if !ok {
		return fmt.Errorf("conversation %q: %w", sessionID, ErrNotFound)
	}
	for _, msg := range w.Messages {
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now().UTC()
		}
		conv.Messages = append(conv.Messages, msg)
	}
	if w.UpdateFlow {
		if w.Flow == nil {
			conv.Flow = nil
		} else {
			fs := *w.Flow
			conv.Flow = &fs
		}
	}
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) SaveFlowState(ctx context.Context, sessionID string, flow *domain.FlowState) error {
	return m.RecordTurn(ctx, sessionID, TurnWrite{UpdateFlow: true, Flow: flow})
}

func (m *MemoryStore) LinkSequence(_ context.Context, sessionID string, sequenceID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[sessionID]
	if !ok {
		return fmt.Errorf("conversation %q: %w", sessionID, ErrNotFound)
	}
	conv.SequenceID = sequenceID
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) LatestSequence(_ context.Context) (*domain.Sequence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if seq, ok := m.sequences[m.nextID]; ok {
		return cloneSequence(seq), nil
	}
	return nil, nil
}

func (m *MemoryStore) GetSequence(_ context.Context, id int64) (*domain.Sequence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seq, ok := m.sequences[id]
	if !ok {
		return nil, fmt.Errorf("sequence %d: %w", id, ErrNotFound)
	}
	return cloneSequence(seq), nil
}

func (m *MemoryStore) CreateSequence(_ context.Context, seq *domain.Sequence) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	now := time.Now().UTC()
	seq.ID = m.nextID
	seq.CreatedAt = now
	seq.UpdatedAt = now
	m.sequences[seq.ID] = cloneSequence(seq)
	return nil
}

func (m *MemoryStore) UpdateSequenceSteps(_ context.Context, id int64, steps []domain.SequenceStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq, ok := m.sequences[id]
	if !ok {
		return fmt.Errorf("sequence %d: %w", id, ErrNotFound)
	}
	seq.Steps = domain.CloneSteps(steps)
	seq.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneConversation(c *domain.Conversation) *domain.Conversation {
	out := *c
	out.Messages = append([]domain.ChatMessage(nil), c.Messages...)
	if c.Flow != nil {
		fs := *c.Flow
		out.Flow = &fs
	}
	return &out
}

func cloneSequence(s *domain.Sequence) *domain.Sequence {
	out := *s
	out.Steps = domain.CloneSteps(s.Steps)
	out.Metadata.KeySkills = append([]string(nil), s.Metadata.KeySkills...)
	return &out
}
