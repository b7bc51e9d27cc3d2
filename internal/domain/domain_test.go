package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- SessionKey tests ---

func TestSessionKeyString(t *testing.T) {
	tests := []struct {
		name string
		key  SessionKey
		want string
	}{
		{
			name: "with sender",
			key:  SessionKey{ChannelID: "irc", ChatID: "#general", SenderID: "alice"},
			want: "irc:#general:alice",
		},
		{
			name: "without sender",
			key:  SessionKey{ChannelID: "irc", ChatID: "#general"},
			want: "irc:#general",
		},
		{
			name: "empty fields",
			key:  SessionKey{},
			want: ":",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.String())
		})
	}
}

// --- Sequence tests ---

func TestStepTypeValid(t *testing.T) {
	for _, st := range []StepType{StepEmail, StepLinkedIn, StepCall, StepOther} {
		assert.True(t, st.Valid(), st)
	}
	assert.False(t, StepType("fax").Valid())
	assert.False(t, StepType("").Valid())
}

func TestDefaultSteps(t *testing.T) {
	steps := DefaultSteps()
	require.Len(t, steps, 3)

	assert.Equal(t, "1", steps[0].ID)
	assert.Equal(t, StepEmail, steps[0].Type)
	assert.Equal(t, 0, steps[0].Delay)
	assert.Equal(t, StepLinkedIn, steps[1].Type)
	assert.Equal(t, 2, steps[1].Delay)
	assert.Equal(t, StepCall, steps[2].Type)
	assert.Equal(t, 3, steps[2].Delay)

	// Every call returns a fresh slice.
	steps[0].Content = "changed"
	assert.NotEqual(t, "changed", DefaultSteps()[0].Content)
}

func TestCloneSteps(t *testing.T) {
	assert.Nil(t, CloneSteps(nil))

	orig := DefaultSteps()
	clone := CloneSteps(orig)
	clone[1].Content = "edited"
	assert.NotEqual(t, "edited", orig[1].Content)
}

func TestCountByType(t *testing.T) {
	steps := []SequenceStep{
		{ID: "1", Type: StepEmail},
		{ID: "2", Type: StepEmail},
		{ID: "3", Type: StepCall},
	}
	counts := CountByType(steps)
	assert.Equal(t, 2, counts[StepEmail])
	assert.Equal(t, 1, counts[StepCall])
	assert.Equal(t, 0, counts[StepLinkedIn])
}

func TestSequenceStepJSON_OmitsEmptyTips(t *testing.T) {
	data, err := json.Marshal(SequenceStep{ID: "1", Type: StepEmail, Content: "hi"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "personalization_tips")
	assert.Contains(t, string(data), `"delay":0`)
}

func TestSequenceMetadataJSON_OmitsZeroTime(t *testing.T) {
	data, err := json.Marshal(SequenceMetadata{Role: "Engineer"})
	require.NoError(t, err)

	raw := string(data)
	assert.NotContains(t, raw, "generated_at")
	assert.Contains(t, raw, `"includes_interview_steps":false`)
}

// --- Conversation tests ---

func TestLastAgentMessage(t *testing.T) {
	now := time.Now().UTC()
	history := []ChatMessage{
		{Sender: SenderUser, Text: "hi", Timestamp: now},
		{Sender: SenderAgent, Text: "first", Timestamp: now},
		{Sender: SenderUser, Text: "again", Timestamp: now},
		{Sender: SenderAgent, Text: "second", Timestamp: now},
		{Sender: SenderUser, Text: "answer", Timestamp: now},
	}

	msg, ok := LastAgentMessage(history)
	require.True(t, ok)
	assert.Equal(t, "second", msg.Text)

	conv := &Conversation{Messages: history[:3]}
	msg, ok = conv.LastAgentMessage()
	require.True(t, ok)
	assert.Equal(t, "first", msg.Text)
}

func TestLastAgentMessage_Empty(t *testing.T) {
	_, ok := LastAgentMessage(nil)
	assert.False(t, ok)

	_, ok = LastAgentMessage([]ChatMessage{{Sender: SenderUser, Text: "hello"}})
	assert.False(t, ok)
}

func TestFlowStateJSON(t *testing.T) {
	fs := FlowState{Step: 3, Collected: RequirementsRecord{RoleTitle: "Data Scientist", IncludeInterviews: true}}
	data, err := json.Marshal(fs)
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, `"collected_info"`)
	assert.Contains(t, raw, `"role_title":"Data Scientist"`)
	assert.Contains(t, raw, `"include_interviews":true`)
}
