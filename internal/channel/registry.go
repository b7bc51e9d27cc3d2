// Package channel manages the chat transports that feed the assistant.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/logging"
)

// Registry holds the configured chat channels.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]domain.Channel
	log      *logging.Logger
}

// NewRegistry creates a channel registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		channels: make(map[string]domain.Channel),
		log:      log.Sub("channels"),
	}
}

// Register adds a channel, replacing any channel with the same ID.
func (r *Registry) Register(ch domain.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ID()] = ch
	r.log.Info().Str("channel", ch.ID()).Msg("channel registered")
}

// Get returns a channel by ID.
func (r *Registry) Get(id string) (domain.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// List returns the sorted channel IDs.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Status returns the status of every channel, ordered by ID. Channels that
// do not report a status are listed as running.
func (r *Registry) Status() []domain.ChannelStatus {
	statuses := make([]domain.ChannelStatus, 0, r.Count())
	for _, id := range r.List() {
		ch, ok := r.Get(id)
		if !ok {
			continue
		}
		if sc, ok := ch.(interface{ Status() domain.ChannelStatus }); ok {
			statuses = append(statuses, sc.Status())
			continue
		}
		statuses = append(statuses, domain.ChannelStatus{ChannelID: id, Running: true})
	}
	return statuses
}

// Run starts every channel and blocks until all of them have returned.
// A failing channel does not stop the others; failures are logged and
// returned together once ctx is done or every channel has exited.
func (r *Registry) Run(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, id := range r.List() {
		ch, ok := r.Get(id)
		if !ok {
			continue
		}
		r.log.Info().Str("channel", id).Msg("starting channel")
		g.Go(func() error {
			err := ch.Start(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			r.log.Error().Err(err).Str("channel", id).Msg("channel exited with error")
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

// StopAll stops all registered channels.
func (r *Registry) StopAll(ctx context.Context) {
	for _, id := range r.List() {
		ch, ok := r.Get(id)
		if !ok {
			continue
		}
		r.log.Info().Str("channel", id).Msg("stopping channel")
		if err := ch.Stop(ctx); err != nil {
			r.log.Error().Err(err).Str("channel", id).Msg("failed to stop channel")
		}
	}
}

// Count returns the number of registered channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
