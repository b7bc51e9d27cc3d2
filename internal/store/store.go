package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/logging"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store persists conversations and sequences.
//
// Conversations are get-or-create by session id. LatestSequence returns
// (nil, nil) when no sequence has been created yet.
type Store interface {
	GetOrCreateConversation(ctx context.Context, sessionID string) (*domain.Conversation, error)
	// AppendMessages appends all messages or none.
	AppendMessages(ctx context.Context, sessionID string, msgs ...domain.ChatMessage) error
	// SaveFlowState records the pending guided-flow position; nil clears it.
	SaveFlowState(ctx context.Context, sessionID string, flow *domain.FlowState) error
	// RecordTurn stores everything one turn wrote, all or nothing.
	RecordTurn(ctx context.Context, sessionID string, w TurnWrite) error
	LinkSequence(ctx context.Context, sessionID string, sequenceID int64) error

	LatestSequence(ctx context.Context) (*domain.Sequence, error)
	GetSequence(ctx context.Context, id int64) (*domain.Sequence, error)
	// CreateSequence assigns the id and timestamps of seq.
	CreateSequence(ctx context.Context, seq *domain.Sequence) error
	UpdateSequenceSteps(ctx context.Context, id int64, steps []domain.SequenceStep) error

	Close() error
}

// TurnWrite is the conversation state one turn commits.
type TurnWrite struct {
	Messages []domain.ChatMessage
	// UpdateFlow replaces the stored flow state with Flow; a nil Flow
	// clears it.
	UpdateFlow bool
	Flow       *domain.FlowState
}

// Open builds the store selected by cfg. dataPath is used for sqlite when
// cfg.Path is empty.
func Open(cfg config.StoreConfig, dataPath string, log *logging.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = dataPath
		}
		db, err := OpenDB(path, log)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(db), nil
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		pg, err := OpenPostgres(cfg.DSN, log)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
