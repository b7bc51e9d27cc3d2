package routing

import "github.com/soyeahso/helix/internal/domain"

// Session scopes for channel conversations.
const (
	ScopePerSender = "per-sender"
	ScopeGlobal    = "global"
)

// ResolveSessionKey builds the session key for an inbound message.
//
// Scopes:
//   - "per-sender": one session per user per chat (default), e.g. irc:#hiring:ada
//   - "global": one session per chat shared by everyone in it, e.g. irc:#hiring
func ResolveSessionKey(msg domain.InboundMessage, scope string) domain.SessionKey {
	key := domain.SessionKey{
		ChannelID: msg.ChannelID,
		ChatID:    msg.ChatID,
	}
	if scope != ScopeGlobal {
		key.SenderID = msg.From
	}
	return key
}
