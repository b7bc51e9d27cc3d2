package channel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

// mockChannel blocks in Start until its context ends, unless startErr is set.
type mockChannel struct {
	id       string
	started  atomic.Bool
	stopped  bool
	startErr error
	stopErr  error
}

func (m *mockChannel) ID() string { return m.id }
func (m *mockChannel) Start(ctx context.Context) error {
	m.started.Store(true)
	if m.startErr != nil {
		return m.startErr
	}
	<-ctx.Done()
	return ctx.Err()
}
func (m *mockChannel) Stop(_ context.Context) error {
	m.stopped = true
	return m.stopErr
}
func (m *mockChannel) Send(context.Context, domain.OutboundMessage) error { return nil }
func (m *mockChannel) OnMessage(func(domain.InboundMessage))             {}
func (m *mockChannel) Status() domain.ChannelStatus {
	return domain.ChannelStatus{ChannelID: m.id, Running: m.started.Load() && !m.stopped}
}

// bareChannel does not report a status.
type bareChannel struct{ mockChannel }

func (b *bareChannel) Status() {}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&mockChannel{id: "irc"})

	got, ok := reg.Get("irc")
	require.True(t, ok)
	assert.Equal(t, "irc", got.ID())

	_, ok = reg.Get("nonexistent")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_ListIsSorted(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&mockChannel{id: "slack"})
	reg.Register(&mockChannel{id: "irc"})

	assert.Equal(t, []string{"irc", "slack"}, reg.List())
}

func TestRegistry_Status(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&mockChannel{id: "irc"})
	reg.Register(&bareChannel{mockChannel{id: "web"}})

	statuses := reg.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, domain.ChannelStatus{ChannelID: "irc"}, statuses[0])
	assert.Equal(t, domain.ChannelStatus{ChannelID: "web", Running: true}, statuses[1])
}

func TestRegistry_Run(t *testing.T) {
	reg := NewRegistry(testLogger())
	ok := &mockChannel{id: "irc"}
	broken := &mockChannel{id: "broken", startErr: assert.AnError}
	reg.Register(ok)
	reg.Register(broken)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx) }()

	assert.Eventually(t, ok.started.Load, time.Second, 10*time.Millisecond)
	assert.Eventually(t, broken.started.Load, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "broken")
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRegistry_RunEmpty(t *testing.T) {
	assert.NoError(t, NewRegistry(testLogger()).Run(context.Background()))
}

func TestRegistry_StopAll(t *testing.T) {
	reg := NewRegistry(testLogger())
	ch1 := &mockChannel{id: "irc"}
	ch2 := &mockChannel{id: "slack", stopErr: assert.AnError}
	reg.Register(ch1)
	reg.Register(ch2)

	reg.StopAll(context.Background())
	assert.True(t, ch1.stopped)
	assert.True(t, ch2.stopped)
}
