package domain

// SessionKey identifies the conversation a channel message belongs to.
type SessionKey struct {
	ChannelID string `json:"channelId"`
	ChatID    string `json:"chatId"`
	SenderID  string `json:"senderId,omitempty"`
}

// String returns the canonical session id for the key.
func (k SessionKey) String() string {
	s := k.ChannelID + ":" + k.ChatID
	if k.SenderID != "" {
		s += ":" + k.SenderID
	}
	return s
}
