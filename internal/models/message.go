// internal/models/message.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LobbyMessage is the durable ledger row binding a posted chat message to its
// originating lobby and (optionally) the subscription that triggered it.
// Rows are inserted after a successful send and only ever updated afterwards
// (completed=true on release); the ledger is append/update only.
type LobbyMessage struct {
	ID      uuid.UUID  `json:"id"`
	LobbyID int64      `json:"lobbyId"`
	RuleID  *uuid.UUID `json:"ruleId,omitempty"` // nil for manually bound messages

	UserID    string `json:"userId,omitempty"`
	GuildID   string `json:"guildId,omitempty"`
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`

	Completed bool      `json:"completed"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Rule is the in-memory subscription attached when the message was
	// posted or restored; it carries the render options and delete flags.
	// Not persisted on this row beyond RuleID.
	Rule *Subscription `json:"-"`
}

// Destination returns where the message lives.
func (m *LobbyMessage) Destination() Destination {
	return Destination{UserID: m.UserID, GuildID: m.GuildID, ChannelID: m.ChannelID}
}
