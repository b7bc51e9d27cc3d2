package sequence

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/lock"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/store"
)

// Scope selects which sequence a session works on.
type Scope string

const (
	// ScopeSession follows the conversation's own sequence link.
	ScopeSession Scope = "session"
	// ScopeLatest treats the most recently created sequence as current
	// for everyone.
	ScopeLatest Scope = "latest"
)

// ErrNoSequence is returned when an operation needs an existing sequence.
var ErrNoSequence = errors.New("no sequence found")

// ErrConflict is returned by Rewrite when the sequence kept changing while
// the new steps were being produced.
var ErrConflict = errors.New("sequence changed concurrently")

// rewriteAttempts bounds how often Rewrite re-runs fn after a conflict.
const rewriteAttempts = 3

// latestKey is the lock key shared by every session in ScopeLatest.
const latestKey = "sequence:latest"

// Book resolves and mutates the current sequence of a session.
// Read-modify-write cycles are serialized per lock key: the session id in
// ScopeSession, one shared key in ScopeLatest.
type Book struct {
	store store.Store
	scope Scope
	locks *lock.Local
	log   *logging.Logger
}

// NewBook creates a Book. Unknown scopes fall back to ScopeSession.
func NewBook(st store.Store, scope string, log *logging.Logger) *Book {
	s := Scope(scope)
	if s != ScopeLatest {
		s = ScopeSession
	}
	return &Book{store: st, scope: s, locks: lock.NewLocal(), log: log.Sub("sequence.book")}
}

// Scope returns the configured scope.
func (b *Book) Scope() Scope { return b.scope }

func (b *Book) lock(ctx context.Context, sessionID string) (func(), error) {
	key := "sequence:" + sessionID
	if b.scope == ScopeLatest {
		key = latestKey
	}
	return b.locks.Lock(ctx, key)
}

// Current returns the session's sequence, or nil when there is none.
func (b *Book) Current(ctx context.Context, sessionID string) (*domain.Sequence, error) {
	if b.scope == ScopeLatest {
		return b.store.LatestSequence(ctx)
	}

	conv, err := b.store.GetOrCreateConversation(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if conv.SequenceID == 0 {
		return nil, nil
	}
	seq, err := b.store.GetSequence(ctx, conv.SequenceID)
	if errors.Is(err, store.ErrNotFound) {
		b.log.Warn().Str("session", sessionID).Int64("sequence", conv.SequenceID).Msg("linked sequence missing")
		return nil, nil
	}
	return seq, err
}

// Create stores a draft and links it to the session.
func (b *Book) Create(ctx context.Context, sessionID string, d *Draft) (*domain.Sequence, error) {
	unlock, err := b.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return b.create(ctx, sessionID, d)
}

// Ensure returns the current sequence, creating the default one when none
// exists. created reports whether it did so.
func (b *Book) Ensure(ctx context.Context, sessionID string) (seq *domain.Sequence, created bool, err error) {
	unlock, err := b.lock(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()
	return b.ensure(ctx, sessionID)
}

// EditStep sets one step's content, creating the default sequence first
// when the session has none.
func (b *Book) EditStep(ctx context.Context, sessionID, stepID, content string) (*domain.Sequence, error) {
	return b.Update(ctx, sessionID, true, func(seq *domain.Sequence) ([]domain.SequenceStep, error) {
		return ApplyEdit(seq.Steps, stepID, content), nil
	})
}

// ReplaceSteps stores steps as the session's sequence.
func (b *Book) ReplaceSteps(ctx context.Context, sessionID string, steps []domain.SequenceStep) (*domain.Sequence, error) {
	return b.Update(ctx, sessionID, true, func(*domain.Sequence) ([]domain.SequenceStep, error) {
		return steps, nil
	})
}

// Update runs fn on the current sequence and stores the steps it returns.
// fn runs while the sequence is locked, so it must not wait on a model;
// use Rewrite for that. Without createDefault a session with no sequence
// gets ErrNoSequence.
func (b *Book) Update(ctx context.Context, sessionID string, createDefault bool, fn func(*domain.Sequence) ([]domain.SequenceStep, error)) (*domain.Sequence, error) {
	unlock, err := b.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	seq, err := b.load(ctx, sessionID, createDefault)
	if err != nil {
		return nil, err
	}
	steps, err := fn(seq)
	if err != nil {
		return nil, err
	}
	return b.save(ctx, seq, steps)
}

// Rewrite is Update for slow fns such as model calls. fn gets a snapshot
// and runs unlocked; its steps are stored only if the sequence is still
// the one fn saw. After rewriteAttempts conflicts it gives up with
// ErrConflict.
func (b *Book) Rewrite(ctx context.Context, sessionID string, fn func(*domain.Sequence) ([]domain.SequenceStep, error)) (*domain.Sequence, error) {
	for attempt := 1; ; attempt++ {
		snap, err := b.snapshot(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		steps, err := fn(snap)
		if err != nil {
			return nil, err
		}

		seq, stale, err := b.commitIfUnchanged(ctx, sessionID, snap, steps)
		if err != nil || !stale {
			return seq, err
		}
		b.log.Debug().Str("session", sessionID).Int64("sequence", snap.ID).Int("attempt", attempt).Msg("sequence changed during rewrite")
		if attempt == rewriteAttempts {
			return nil, ErrConflict
		}
	}
}

func (b *Book) snapshot(ctx context.Context, sessionID string) (*domain.Sequence, error) {
	unlock, err := b.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return b.load(ctx, sessionID, false)
}

func (b *Book) commitIfUnchanged(ctx context.Context, sessionID string, snap *domain.Sequence, steps []domain.SequenceStep) (*domain.Sequence, bool, error) {
	unlock, err := b.lock(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	cur, err := b.load(ctx, sessionID, false)
	if err != nil {
		return nil, false, err
	}
	if cur.ID != snap.ID || !slices.Equal(cur.Steps, snap.Steps) {
		return nil, true, nil
	}
	seq, err := b.save(ctx, cur, steps)
	return seq, false, err
}

// load returns the current sequence; the caller holds the lock.
func (b *Book) load(ctx context.Context, sessionID string, createDefault bool) (*domain.Sequence, error) {
	if createDefault {
		seq, _, err := b.ensure(ctx, sessionID)
		return seq, err
	}
	seq, err := b.Current(ctx, sessionID)
	if err == nil && seq == nil {
		err = ErrNoSequence
	}
	return seq, err
}

func (b *Book) save(ctx context.Context, seq *domain.Sequence, steps []domain.SequenceStep) (*domain.Sequence, error) {
	if err := b.store.UpdateSequenceSteps(ctx, seq.ID, steps); err != nil {
		return nil, fmt.Errorf("saving sequence %d: %w", seq.ID, err)
	}
	seq.Steps = domain.CloneSteps(steps)
	return seq, nil
}

func (b *Book) ensure(ctx context.Context, sessionID string) (*domain.Sequence, bool, error) {
	seq, err := b.Current(ctx, sessionID)
	if err != nil || seq != nil {
		return seq, false, err
	}
	seq, err = b.create(ctx, sessionID, &Draft{
		Title: domain.DefaultSequenceTitle,
		Steps: domain.DefaultSteps(),
	})
	if err != nil {
		return nil, false, err
	}
	b.log.Info().Str("session", sessionID).Int64("sequence", seq.ID).Msg("created default sequence")
	return seq, true, nil
}

func (b *Book) create(ctx context.Context, sessionID string, d *Draft) (*domain.Sequence, error) {
	seq := &domain.Sequence{
		Title:    d.Title,
		Steps:    domain.CloneSteps(d.Steps),
		Metadata: d.Metadata,
	}
	if seq.Title == "" {
		seq.Title = domain.DefaultSequenceTitle
	}
	if err := b.store.CreateSequence(ctx, seq); err != nil {
		return nil, fmt.Errorf("creating sequence: %w", err)
	}
	if _, err := b.store.GetOrCreateConversation(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := b.store.LinkSequence(ctx, sessionID, seq.ID); err != nil {
		return nil, fmt.Errorf("linking sequence: %w", err)
	}
	return seq, nil
}
