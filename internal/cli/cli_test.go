package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/gateway"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"5000", 5000},
		{"0.7", 0.7},
		{"loopback", "loopback"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "chat", "sequence", "config", "status", "version", "auth"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--log-level", "silent"})
	t.Setenv("HELIX_HOME", t.TempDir())

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "helix")
}

func TestRenderSequence(t *testing.T) {
	assert.Contains(t, renderSequence(nil), "no sequence")

	seq := &domain.Sequence{
		ID:    3,
		Title: "Nurse outreach",
		Steps: []domain.SequenceStep{
			{ID: "1", Type: domain.StepEmail, Content: "Hi {{first_name}}", Delay: 0},
			{ID: "2", Type: domain.StepCall, Content: "Quick call", Delay: 4, PersonalizationTips: "mention the unit"},
		},
	}
	out := renderSequence(seq)
	assert.Contains(t, out, "Nurse outreach (#3)")
	assert.Contains(t, out, "Hi {{first_name}}")
	assert.Contains(t, out, "+4 days")
	assert.Contains(t, out, "mention the unit")
}

func TestTurnTimeout(t *testing.T) {
	cfg := config.Defaults()
	assert.Equal(t, 5*time.Duration(cfg.Agent.CallTimeoutSeconds)*time.Second, turnTimeout(cfg))

	cfg.Agent.CallTimeoutSeconds = 0
	assert.Equal(t, 5*time.Minute, turnTimeout(cfg))
}

func TestFetchHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gateway.HealthResponse{
			Status:  "ok",
			Version: "1.2.3",
			Actions: 10,
			Channels: []domain.ChannelStatus{
				{ChannelID: "irc", Running: true, Connected: true},
			},
		})
	}))
	defer srv.Close()

	health, err := fetchHealth(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 10, health.Actions)
	require.Len(t, health.Channels, 1)
	assert.True(t, health.Channels[0].Connected)
}

func TestFetchHealth_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fetchHealth(srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "********", redact("apiKey", "sk-123"))
	assert.Equal(t, "", redact("password", ""))
	assert.Equal(t, "gpt-4o", redact("model", "gpt-4o"))

	got := redact("openai", map[string]any{"apiKey": "sk-123", "model": "gpt-4o"})
	assert.Equal(t, map[string]any{"apiKey": "********", "model": "gpt-4o"}, got)
}

func TestPrintValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printValue(&buf, 5000))
	assert.Equal(t, "5000\n", buf.String())

	buf.Reset()
	require.NoError(t, printValue(&buf, map[string]any{"port": 5000}))
	assert.Equal(t, "port: 5000\n", buf.String())
}

func TestConfigSetRejectsInvalid(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HELIX_HOME", home)

	run := func(args ...string) error {
		root := newRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetArgs(append(args, "--log-level", "silent"))
		return root.Execute()
	}

	require.NoError(t, run("config", "set", "gateway.port", "7000"))
	err := run("config", "set", "gateway.bind", "everywhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway.bind")

	raw, err := config.LoadRaw(paths.Config)
	require.NoError(t, err)
	v, ok := config.GetValueAtPath(raw, []string{"gateway", "port"})
	require.True(t, ok)
	assert.Equal(t, 7000, v)
	_, ok = config.GetValueAtPath(raw, []string{"gateway", "bind"})
	assert.False(t, ok)
}
