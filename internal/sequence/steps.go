package sequence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/llm"
)

// ErrNoSteps is returned when model output holds no usable step list.
var ErrNoSteps = errors.New("no sequence steps found")

// ParseSteps reads a step list out of model text and repairs it into valid
// SequenceSteps. It accepts a bare array, an array wrapped in prose or a
// code fence, or an object carrying a "steps" or "sequence" array.
//
// Repairs: unknown types become "other", missing ids take the step's
// position, delays are coerced from strings or floats and clamped at zero.
// A step without content is an error.
func ParseSteps(text string) ([]domain.SequenceStep, error) {
	raw, err := locateSteps(text)
	if err != nil {
		return nil, err
	}

	steps := make([]domain.SequenceStep, 0, len(raw))
	for i, r := range raw {
		step, err := repairStep(r, i+1)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// ValidateSteps applies the same repairs to steps supplied directly, such as
// a user-authored sequence.
func ValidateSteps(steps []domain.SequenceStep) ([]domain.SequenceStep, error) {
	out := make([]domain.SequenceStep, 0, len(steps))
	for i, s := range steps {
		s.Content = strings.TrimSpace(s.Content)
		if s.Content == "" {
			return nil, fmt.Errorf("step %d: missing content", i+1)
		}
		if strings.TrimSpace(s.ID) == "" {
			s.ID = strconv.Itoa(i + 1)
		}
		s.Type = normalizeType(string(s.Type))
		if s.Delay < 0 {
			s.Delay = 0
		}
		out = append(out, s)
	}
	return out, nil
}

func locateSteps(text string) ([]map[string]json.RawMessage, error) {
	text = llm.StripCodeFence(text)

	candidates := []string{text}
	if arr, ok := llm.ExtractArray(text); ok && arr != text {
		candidates = append(candidates, arr)
	}
	if obj, ok := llm.ExtractObject(text); ok {
		candidates = append(candidates, obj)
	}

	for _, c := range candidates {
		c = strings.TrimSpace(c)
		switch {
		case strings.HasPrefix(c, "["):
			var arr []map[string]json.RawMessage
			if json.Unmarshal([]byte(c), &arr) == nil && len(arr) > 0 {
				return arr, nil
			}
		case strings.HasPrefix(c, "{"):
			var wrapper map[string]json.RawMessage
			if json.Unmarshal([]byte(c), &wrapper) != nil {
				continue
			}
			for _, key := range []string{"steps", "sequence"} {
				var arr []map[string]json.RawMessage
				if v, ok := wrapper[key]; ok && json.Unmarshal(v, &arr) == nil && len(arr) > 0 {
					return arr, nil
				}
			}
		}
	}
	return nil, ErrNoSteps
}

func repairStep(r map[string]json.RawMessage, pos int) (domain.SequenceStep, error) {
	step := domain.SequenceStep{
		ID:                  scalarString(r["id"]),
		Type:                normalizeType(scalarString(r["type"])),
		Content:             strings.TrimSpace(scalarString(r["content"])),
		PersonalizationTips: strings.TrimSpace(scalarString(r["personalization_tips"])),
	}
	if step.Content == "" {
		return step, errors.New("missing content")
	}
	if step.ID == "" {
		step.ID = strconv.Itoa(pos)
	}

	delay, err := scalarInt(r["delay"])
	if err != nil {
		return step, fmt.Errorf("delay: %w", err)
	}
	step.Delay = max(delay, 0)
	return step, nil
}

func normalizeType(t string) domain.StepType {
	t = strings.ToLower(strings.TrimSpace(t))
	switch {
	case domain.StepType(t).Valid():
		return domain.StepType(t)
	case strings.Contains(t, "linkedin") || strings.Contains(t, "inmail"):
		return domain.StepLinkedIn
	case strings.Contains(t, "mail"):
		return domain.StepEmail
	case strings.Contains(t, "call") || strings.Contains(t, "phone"):
		return domain.StepCall
	}
	return domain.StepOther
}

// scalarString renders a JSON string, number or bool as text.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

// scalarInt reads a whole number of days from a number or numeric string.
// "3 days" reads as 3. Absent means zero.
func scalarInt(raw json.RawMessage) (int, error) {
	s := scalarString(raw)
	if s == "" {
		return 0, nil
	}
	if f := strings.Fields(s); len(f) > 1 {
		s = f[0]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return int(math.Round(f)), nil
}

// ApplyEdit sets the content of the first step whose id matches. When no
// step matches, a new email step with a three day delay is appended. The
// input slice is not modified.
func ApplyEdit(steps []domain.SequenceStep, stepID, content string) []domain.SequenceStep {
	out := domain.CloneSteps(steps)
	for i := range out {
		if out[i].ID == stepID {
			out[i].Content = content
			return out
		}
	}
	return append(out, domain.SequenceStep{
		ID:      stepID,
		Type:    domain.StepEmail,
		Content: content,
		Delay:   3,
	})
}

// FormatSteps renders steps as numbered plain text for prompts.
func FormatSteps(steps []domain.SequenceStep) string {
	if len(steps) == 0 {
		return "No sequence created yet."
	}
	var b strings.Builder
	for i, s := range steps {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Step %d: %s - %s (Delay: %d days)", i+1, s.Type, s.Content, s.Delay)
	}
	return b.String()
}
