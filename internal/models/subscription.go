// internal/models/subscription.go
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DestinationKind tags the two legal forms of a message destination.
type DestinationKind int

const (
	DestinationInvalid DestinationKind = iota
	DestinationUser
	DestinationGuildChannel
)

// Destination is where messages for a subscription (or an already posted
// message) are delivered: either a user DM or a guild channel, never both.
type Destination struct {
	UserID    string `json:"userId,omitempty"`
	GuildID   string `json:"guildId,omitempty"`
	ChannelID string `json:"channelId,omitempty"`
}

// Kind reports which destination form is set. DestinationInvalid means the
// row violates the xor invariant and must be treated as a contract violation.
func (d Destination) Kind() DestinationKind {
	switch {
	case d.UserID != "" && d.GuildID == "":
		return DestinationUser
	case d.UserID == "" && d.GuildID != "" && d.ChannelID != "":
		return DestinationGuildChannel
	}
	return DestinationInvalid
}

// ErrInvalidDestination is returned for rows with neither (or both) of the
// user/guild destination forms set.
var ErrInvalidDestination = errors.New("destination must be either a user or a guild channel")

// Subscription is a lobby-matching rule bound to a delivery destination.
type Subscription struct {
	ID      uuid.UUID `json:"id"`
	Enabled bool      `json:"enabled"`

	// Destination: exactly one of UserID or GuildID+ChannelID is set.
	UserID    string `json:"userId,omitempty"`
	GuildID   string `json:"guildId,omitempty"`
	ChannelID string `json:"channelId,omitempty"`

	MapName          string  `json:"mapName"`
	IsMapNamePartial bool    `json:"isMapNamePartial"`
	IsMapNameRegex   bool    `json:"isMapNameRegex"`
	Variant          string  `json:"variant,omitempty"`
	RegionID         *Region `json:"regionId,omitempty"`

	// TimeDelay holds back posting until the lobby is at least this many
	// seconds old; HumanSlotsMin until this many human slots are taken.
	// Zero means the gate is not configured.
	TimeDelay     int `json:"timeDelay,omitempty"`
	HumanSlotsMin int `json:"humanSlotsMin,omitempty"`

	DeleteMessageStarted   bool `json:"deleteMessageStarted"`
	DeleteMessageAbandoned bool `json:"deleteMessageAbandoned"`
	ShowLeavers            bool `json:"showLeavers"`

	CreatedAt time.Time `json:"createdAt"`
}

// Destination returns the rule's delivery destination.
func (s *Subscription) Destination() Destination {
	return Destination{UserID: s.UserID, GuildID: s.GuildID, ChannelID: s.ChannelID}
}
