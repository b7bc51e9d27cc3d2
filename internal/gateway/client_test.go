package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/logging"
)

func testLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestNewClient_DefaultsSessionToConnID(t *testing.T) {
	c := NewClient(nil, ClientInfo{ID: "cli"}, "", testLog())
	assert.NotEmpty(t, c.ConnID)
	assert.Equal(t, c.ConnID, c.SessionID)

	c = NewClient(nil, ClientInfo{ID: "cli"}, "web-42", testLog())
	assert.Equal(t, "web-42", c.SessionID)
}

func TestClientSend_AfterClose(t *testing.T) {
	c := &Client{ConnID: "conn-1", closed: true}
	assert.ErrorIs(t, c.SendEvent(EventSequenceUpdated, nil, 1), ErrClientClosed)
	assert.NoError(t, c.Close())
}

func TestClientRegistry(t *testing.T) {
	reg := NewClientRegistry(testLog())
	require.Equal(t, 0, reg.Count())

	reg.Add(&Client{ConnID: "conn-1", Info: ClientInfo{ID: "client-1"}})
	reg.Add(&Client{ConnID: "conn-2"})
	assert.Equal(t, 2, reg.Count())

	got, ok := reg.Get("conn-1")
	require.True(t, ok)
	assert.Equal(t, "client-1", got.Info.ID)

	reg.Remove("conn-1")
	reg.Remove("nonexistent")
	assert.Equal(t, 1, reg.Count())
	_, ok = reg.Get("conn-1")
	assert.False(t, ok)
}

func TestClientRegistry_SessionIndex(t *testing.T) {
	reg := NewClientRegistry(testLog())
	reg.Add(&Client{ConnID: "a", SessionID: "s1"})
	reg.Add(&Client{ConnID: "b", SessionID: "s1"})
	reg.Add(&Client{ConnID: "c", SessionID: "s2"})
	assert.Equal(t, 3, reg.Count())
	assert.Equal(t, 2, reg.SessionCount())

	reg.Remove("a")
	assert.Equal(t, 2, reg.SessionCount())
	reg.Remove("b")
	assert.Equal(t, 1, reg.SessionCount())

	reg.CloseAll()
	assert.Equal(t, 0, reg.Count())
	assert.Equal(t, 0, reg.SessionCount())
}

func TestClientRegistry_SendSkipsClosedClients(t *testing.T) {
	reg := NewClientRegistry(testLog())
	reg.Add(&Client{ConnID: "conn-1", SessionID: "s1", closed: true})

	// Closed clients report ErrClientClosed, which is logged and skipped.
	reg.Broadcast(EventSequenceUpdated, map[string]any{"sessionId": "s1"}, 1)
	reg.SendToSession("s1", EventStepEdited, nil, 2)
	assert.Equal(t, 1, reg.Count())
}

func TestClientRegistryCloseAll(t *testing.T) {
	reg := NewClientRegistry(testLog())
	reg.Add(&Client{ConnID: "conn-1", closed: true})
	reg.Add(&Client{ConnID: "conn-2", closed: true})

	reg.CloseAll()
	assert.Equal(t, 0, reg.Count())
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		name string
		bind string
		port int
		host string
		want string
	}{
		{"loopback", "loopback", 18789, "", "127.0.0.1:18789"},
		{"lan", "lan", 9999, "", "0.0.0.0:9999"},
		{"custom_default", "custom", 3000, "", "0.0.0.0:3000"},
		{"custom_host", "custom", 3000, "10.0.0.1", "10.0.0.1:3000"},
		{"unknown_fallback", "whatever", 5000, "", "127.0.0.1:5000"},
		{"empty_fallback", "", 5000, "", "127.0.0.1:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.GatewayConfig{Bind: tt.bind, Port: tt.port, CustomBindHost: tt.host}
			assert.Equal(t, tt.want, resolveBindAddr(cfg))
		})
	}
}
