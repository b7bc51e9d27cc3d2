package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/helix/internal/domain"
)

func jsonPayload(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"status":"error","message":%q}`, err.Error())
	}
	return string(b)
}

// inBand reports an input problem as a successful turn whose payload
// carries status "error".
func inBand(message, reply string) Result {
	if reply == "" {
		reply = message
	}
	return Result{
		Payload: jsonPayload(map[string]any{"status": "error", "message": message}),
		Reply:   reply,
	}
}

func sequencePayload(seq *domain.Sequence) string {
	return jsonPayload(map[string]any{
		"status":   "success",
		"id":       seq.ID,
		"title":    seq.Title,
		"metadata": seq.Metadata,
		"steps":    seq.Steps,
	})
}

// describeSequence summarizes a freshly generated sequence.
func describeSequence(seq *domain.Sequence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I've created a %d-step recruiting sequence", len(seq.Steps))

	md := seq.Metadata
	if md.Role != "" {
		fmt.Fprintf(&b, " for %s %s role", article(md.Role), md.Role)
	}
	if md.Industry != "" {
		fmt.Fprintf(&b, " in %s", md.Industry)
	}
	if md.Seniority != "" {
		fmt.Fprintf(&b, " (%s level)", strings.ToLower(md.Seniority))
	}

	if counts := countSummary(seq.Steps); counts != "" {
		b.WriteString(": ")
		b.WriteString(counts)
	}
	b.WriteString(".")
	if md.IncludesInterviewSteps {
		b.WriteString(" Interview steps are included.")
	}
	b.WriteString(" You can review and edit each step in the sequence panel.")
	return b.String()
}

func countSummary(steps []domain.SequenceStep) string {
	counts := domain.CountByType(steps)
	var parts []string
	for _, t := range []struct {
		typ        domain.StepType
		one, other string
	}{
		{domain.StepEmail, "email", "emails"},
		{domain.StepLinkedIn, "LinkedIn message", "LinkedIn messages"},
		{domain.StepCall, "call", "calls"},
		{domain.StepOther, "other step", "other steps"},
	} {
		n := counts[t.typ]
		if n == 0 {
			continue
		}
		word := t.other
		if n == 1 {
			word = t.one
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, word))
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

func article(word string) string {
	if word == "" {
		return "a"
	}
	switch strings.ToLower(word[:1]) {
	case "a", "e", "i", "o", "u":
		return "an"
	}
	return "a"
}

// replyFromPayload is the fallback reply for actions that set none.
func replyFromPayload(payload string) string {
	var p struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(payload), &p) == nil && p.Message != "" {
		return p.Message
	}
	if strings.TrimSpace(payload) == "" {
		return "Done."
	}
	return payload
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, it := range items {
		if strings.TrimSpace(it) == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(it))
	}
	return b.String()
}
