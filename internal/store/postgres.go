package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/logging"
)

type conversationRow struct {
	SessionID  string         `gorm:"primaryKey;type:varchar(255)"`
	Flow       datatypes.JSON `gorm:"type:jsonb"`
	SequenceID *int64         `gorm:"index"`
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

func (conversationRow) TableName() string { return "conversations" }

type messageRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"type:varchar(255);not null;index:idx_messages_session"`
	Sender    string    `gorm:"type:varchar(16);not null"`
	Text      string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null"`
}

func (messageRow) TableName() string { return "messages" }

type sequenceRow struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	Title     string         `gorm:"type:varchar(255);not null"`
	Steps     datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (sequenceRow) TableName() string { return "sequences" }

// PostgresStore implements Store on Postgres through gorm.
type PostgresStore struct {
	db  *gorm.DB
	log *logging.Logger
}

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(dsn string, log *logging.Logger) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(config.NormalizePostgresDSN(dsn)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := db.AutoMigrate(&conversationRow{}, &messageRow{}, &sequenceRow{}); err != nil {
		return nil, fmt.Errorf("migrating postgres schema: %w", err)
	}

	s := &PostgresStore{db: db, log: log.Sub("store.postgres")}
	s.log.Info().Msg("database connected and migrated")
	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) GetOrCreateConversation(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	var row conversationRow
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).
		Where(conversationRow{SessionID: sessionID}).
		Attrs(conversationRow{CreatedAt: now, UpdatedAt: now}).
		FirstOrCreate(&row).Error
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	conv := &domain.Conversation{
		SessionID: row.SessionID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.SequenceID != nil {
		conv.SequenceID = *row.SequenceID
	}
	if len(row.Flow) > 0 && string(row.Flow) != "null" {
		var fs domain.FlowState
		if err := json.Unmarshal(row.Flow, &fs); err != nil {
			s.log.Warn().Err(err).Str("session", sessionID).Msg("discarding unreadable flow state")
		} else {
			conv.Flow = &fs
		}
	}

	var rows []messageRow
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	for _, r := range rows {
		conv.Messages = append(conv.Messages, domain.ChatMessage{
			Sender:    domain.Sender(r.Sender),
			Text:      r.Text,
			Timestamp: r.Timestamp,
		})
	}
	return conv, nil
}

func (s *PostgresStore) AppendMessages(ctx context.Context, sessionID string, msgs ...domain.ChatMessage) error {
	return s.RecordTurn(ctx, sessionID, TurnWrite{Messages: msgs})
}

// RecordTurn creates the turn's message rows and updates the conversation
// inside one gorm transaction.
func (s *PostgresStore) RecordTurn(ctx context.Context, sessionID string, w TurnWrite) error {
	if len(w.Messages) == 0 && !w.UpdateFlow {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(w.Messages) > 0 {
			rows := make([]messageRow, 0, len(w.Messages))
			for _, m := range w.Messages {
				ts := m.Timestamp
				if ts.IsZero() {
					ts = time.Now()
				}
				rows = append(rows, messageRow{SessionID: sessionID, Sender: string(m.Sender), Text: m.Text, Timestamp: ts.UTC()})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("appending messages: %w", err)
			}
		}

		fields := map[string]any{"updated_at": time.Now().UTC()}
		if w.UpdateFlow {
			var value any
			if w.Flow != nil {
				data, err := json.Marshal(w.Flow)
				if err != nil {
					return fmt.Errorf("encoding flow state: %w", err)
				}
				value = datatypes.JSON(data)
			}
			fields["flow"] = value
		}
		return updateConversation(tx, sessionID, fields)
	})
}

func (s *PostgresStore) SaveFlowState(ctx context.Context, sessionID string, flow *domain.FlowState) error {
	return s.RecordTurn(ctx, sessionID, TurnWrite{UpdateFlow: true, Flow: flow})
}

func (s *PostgresStore) LinkSequence(ctx context.Context, sessionID string, sequenceID int64) error {
	return updateConversation(s.db.WithContext(ctx), sessionID, map[string]any{
		"sequence_id": sequenceID,
		"updated_at":  time.Now().UTC(),
	})
}

func (s *PostgresStore) LatestSequence(ctx context.Context) (*domain.Sequence, error) {
	var row sequenceRow
	err := s.db.WithContext(ctx).Order("id DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest sequence: %w", err)
	}
	return row.toDomain()
}

func (s *PostgresStore) GetSequence(ctx context.Context, id int64) (*domain.Sequence, error) {
	var row sequenceRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("sequence %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading sequence: %w", err)
	}
	return row.toDomain()
}

func (s *PostgresStore) CreateSequence(ctx context.Context, seq *domain.Sequence) error {
	steps, err := encodeSteps(seq.Steps)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(seq.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	now := time.Now().UTC()
	row := sequenceRow{
		Title:     seq.Title,
		Steps:     datatypes.JSON(steps),
		Metadata:  datatypes.JSON(meta),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("creating sequence: %w", err)
	}
	seq.ID = row.ID
	seq.CreatedAt = now
	seq.UpdatedAt = now
	return nil
}

func (s *PostgresStore) UpdateSequenceSteps(ctx context.Context, id int64, steps []domain.SequenceStep) error {
	data, err := encodeSteps(steps)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&sequenceRow{}).Where("id = ?", id).Updates(map[string]any{
		"steps":      datatypes.JSON(data),
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("updating sequence steps: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("sequence %d: %w", id, ErrNotFound)
	}
	return nil
}

func updateConversation(db *gorm.DB, sessionID string, fields map[string]any) error {
	res := db.Model(&conversationRow{}).Where("session_id = ?", sessionID).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("updating conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("conversation %q: %w", sessionID, ErrNotFound)
	}
	return nil
}

func (r sequenceRow) toDomain() (*domain.Sequence, error) {
	seq := &domain.Sequence{
		ID:        r.ID,
		Title:     r.Title,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Steps, &seq.Steps); err != nil {
		return nil, fmt.Errorf("decoding steps of sequence %d: %w", r.ID, err)
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &seq.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of sequence %d: %w", r.ID, err)
		}
	}
	return seq, nil
}
