package outreach

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedOracle struct {
	reply  string
	err    error
	prompt string
}

func (o *fixedOracle) Ask(_ context.Context, _, prompt string) (string, error) {
	o.prompt = prompt
	return o.reply, o.err
}

func TestMessageWriter_Write(t *testing.T) {
	o := &fixedOracle{reply: "Hi Jane, your work on distributed caches caught my eye."}
	w := NewMessageWriter(o)

	msg, err := w.Write(context.Background(), map[string]any{"name": "Jane", "headline": "Go engineer"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Jane, your work on distributed caches caught my eye.", msg)
	assert.Contains(t, o.prompt, `"headline": "Go engineer"`)
	assert.Contains(t, o.prompt, "max 2000 characters")
}

func TestMessageWriter_CapsLength(t *testing.T) {
	o := &fixedOracle{reply: strings.Repeat("word ", 1000)}
	msg, err := NewMessageWriter(o).Write(context.Background(), map[string]any{"name": "Jane"})
	require.NoError(t, err)
	assert.LessOrEqual(t, utf8.RuneCountInString(msg), LinkedInLimit)
	assert.False(t, strings.HasSuffix(msg, " "))
}

func TestMessageWriter_Errors(t *testing.T) {
	_, err := NewMessageWriter(&fixedOracle{reply: "x"}).Write(context.Background(), nil)
	assert.Error(t, err)

	_, err = NewMessageWriter(&fixedOracle{reply: "  "}).Write(context.Background(), map[string]any{"a": 1})
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = NewMessageWriter(&fixedOracle{err: boom}).Write(context.Background(), map[string]any{"a": 1})
	assert.ErrorIs(t, err, boom)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "hello", Truncate("hello world", 8))
	assert.Equal(t, "ééé", Truncate("éééééé", 3))
}
