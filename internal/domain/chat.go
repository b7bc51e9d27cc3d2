package domain

import "time"

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// ChatMessage is one immutable entry in a conversation transcript.
type ChatMessage struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the persisted state of one chat session.
type Conversation struct {
	SessionID  string        `json:"sessionId"`
	Messages   []ChatMessage `json:"messages"`
	Flow       *FlowState    `json:"flow,omitempty"`
	SequenceID int64         `json:"sequenceId,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// LastAgentMessage returns the most recent agent-authored message, if any.
func (c *Conversation) LastAgentMessage() (ChatMessage, bool) {
	return LastAgentMessage(c.Messages)
}

// LastAgentMessage scans history from the end for an agent message.
func LastAgentMessage(history []ChatMessage) (ChatMessage, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Sender == SenderAgent {
			return history[i], true
		}
	}
	return ChatMessage{}, false
}
