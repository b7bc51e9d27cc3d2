package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/soyeahso/helix/internal/domain"
)

const timeLayout = time.RFC3339Nano

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db *DB
}

// NewSQLiteStore creates a store using the given database.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// GetOrCreateConversation finds a conversation by session id or creates an
// empty one.
func (s *SQLiteStore) GetOrCreateConversation(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	now := time.Now().UTC().Format(timeLayout)
	if _, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO conversations (session_id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		sessionID, now, now,
	); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	conv := &domain.Conversation{SessionID: sessionID}
	var flow sql.NullString
	var seqID sql.NullInt64
	var createdAt, updatedAt string
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT flow, sequence_id, created_at, updated_at FROM conversations WHERE session_id = ?`, sessionID,
	).Scan(&flow, &seqID, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	conv.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	conv.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	conv.SequenceID = seqID.Int64

	if flow.Valid && flow.String != "" {
		var fs domain.FlowState
		if err := json.Unmarshal([]byte(flow.String), &fs); err != nil {
			s.db.log.Warn().Err(err).Str("session", sessionID).Msg("discarding unreadable flow state")
		} else {
			conv.Flow = &fs
		}
	}

	msgs, err := s.loadMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	conv.Messages = msgs
	return conv, nil
}

// AppendMessages adds messages to a conversation in one transaction.
func (s *SQLiteStore) AppendMessages(ctx context.Context, sessionID string, msgs ...domain.ChatMessage) error {
	return s.RecordTurn(ctx, sessionID, TurnWrite{Messages: msgs})
}

// RecordTurn inserts the turn's messages and updates the flow state in one
// transaction.
func (s *SQLiteStore) RecordTurn(ctx context.Context, sessionID string, w TurnWrite) error {
	if len(w.Messages) == 0 && !w.UpdateFlow {
		return nil
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin turn: %w", err)
	}
	defer tx.Rollback()

	for _, m := range w.Messages {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, sender, text, timestamp) VALUES (?, ?, ?, ?)`,
			sessionID, string(m.Sender), m.Text, ts.UTC().Format(timeLayout),
		); err != nil {
			return fmt.Errorf("appending message: %w", err)
		}
	}

	if w.UpdateFlow {
		value, err := encodeFlow(w.Flow)
		if err != nil {
			return err
		}
		if err := execConversation(ctx, tx, sessionID, "flow", value); err != nil {
			return err
		}
	} else if err := touchConversation(ctx, tx, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveFlowState stores the pending guided-flow state for a session.
func (s *SQLiteStore) SaveFlowState(ctx context.Context, sessionID string, flow *domain.FlowState) error {
	return s.RecordTurn(ctx, sessionID, TurnWrite{UpdateFlow: true, Flow: flow})
}

func encodeFlow(flow *domain.FlowState) (sql.NullString, error) {
	if flow == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(flow)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding flow state: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// LinkSequence points a conversation at its sequence.
func (s *SQLiteStore) LinkSequence(ctx context.Context, sessionID string, sequenceID int64) error {
	return s.updateConversation(ctx, sessionID, "sequence_id", sequenceID)
}

func (s *SQLiteStore) updateConversation(ctx context.Context, sessionID, column string, value any) error {
	return execConversation(ctx, s.db.sql, sessionID, column, value)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execConversation(ctx context.Context, db execer, sessionID, column string, value any) error {
	res, err := db.ExecContext(ctx,
		`UPDATE conversations SET `+column+` = ?, updated_at = ? WHERE session_id = ?`,
		value, time.Now().UTC().Format(timeLayout), sessionID,
	)
	if err != nil {
		return fmt.Errorf("updating conversation %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %q: %w", sessionID, ErrNotFound)
	}
	return nil
}

func touchConversation(ctx context.Context, tx *sql.Tx, sessionID string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE session_id = ?`,
		time.Now().UTC().Format(timeLayout), sessionID,
	)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %q: %w", sessionID, ErrNotFound)
	}
	return nil
}

func encodeSteps(steps []domain.SequenceStep) (string, error) {
	if steps == nil {
		steps = []domain.SequenceStep{}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("encoding steps: %w", err)
	}
	return string(data), nil
}
