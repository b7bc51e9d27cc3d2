package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/soyeahso/helix/internal/llm"
)

// ErrMalformedResponse means the model text could not be read as an
// {action, action_input} object.
var ErrMalformedResponse = errors.New("model response is not a valid action")

// Intent is the action the model chose.
type Intent struct {
	Action      string `json:"action"`
	ActionInput string `json:"action_input"`
}

// Interpret reads raw model text as an Intent. A strict parse is tried
// first, then the first balanced object found in the text, so replies
// wrapped in prose or code fences still work. Known aliases are rewritten
// to canonical action names.
func Interpret(raw string) (Intent, error) {
	text := strings.TrimSpace(raw)

	intent, ok := decodeIntent(text)
	if !ok {
		if obj, found := llm.ExtractObject(llm.StripCodeFence(text)); found {
			intent, ok = decodeIntent(obj)
		}
	}
	if !ok {
		return Intent{}, ErrMalformedResponse
	}

	intent.Action = Canonical(intent.Action)
	return intent, nil
}

func decodeIntent(s string) (Intent, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return Intent{}, false
	}

	var in Intent
	if !decodeString(fields["action"], &in.Action) || strings.TrimSpace(in.Action) == "" {
		return Intent{}, false
	}
	if !decodeString(fields["action_input"], &in.ActionInput) {
		return Intent{}, false
	}
	in.Action = strings.TrimSpace(in.Action)
	return in, true
}

// decodeString accepts only a JSON string; null, numbers and objects fail.
func decodeString(raw json.RawMessage, dst *string) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
