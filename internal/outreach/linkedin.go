package outreach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/soyeahso/helix/internal/llm"
)

// LinkedInLimit is the longest message LinkedIn accepts.
const LinkedInLimit = 2000

// Oracle answers a single prompt.
type Oracle interface {
	Ask(ctx context.Context, system, prompt string) (string, error)
}

// MessageWriter drafts LinkedIn outreach from a candidate profile.
type MessageWriter struct {
	oracle Oracle
}

// NewMessageWriter creates a MessageWriter.
func NewMessageWriter(oracle Oracle) *MessageWriter {
	return &MessageWriter{oracle: oracle}
}

const linkedInSystem = "You are an experienced technical recruiter writing LinkedIn outreach. Reply with the message text only."

// Write asks the model for a message tailored to profile and trims it to
// LinkedInLimit characters.
func (w *MessageWriter) Write(ctx context.Context, profile map[string]any) (string, error) {
	if len(profile) == 0 {
		return "", errors.New("candidate profile is empty")
	}
	pretty, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding profile: %w", err)
	}

	prompt := fmt.Sprintf(`Create a personalized LinkedIn message for this candidate:
Profile: %s

The message should:
1. Be professional and friendly
2. Reference specific points from their profile
3. Explain why they would be a good fit
4. Include a clear call to action

Keep it concise (max %d characters for LinkedIn).`, pretty, LinkedInLimit)

	out, err := w.oracle.Ask(ctx, linkedInSystem, prompt)
	if err != nil {
		return "", err
	}
	msg := strings.TrimSpace(llm.StripCodeFence(out))
	if msg == "" {
		return "", errors.New("model returned an empty message")
	}
	return Truncate(msg, LinkedInLimit), nil
}

// Truncate shortens s to at most n runes, preferring a word boundary.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:n])
	if i := strings.LastIndexAny(cut, " \n"); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
