// internal/models/lobby.go
package models

import (
	"fmt"
	"time"
)

// Region identifies a game region. The numeric values match the ids used by
// the platform API and stored in the database.
type Region int

const (
	RegionUS Region = 1
	RegionEU Region = 2
	RegionKR Region = 3
	RegionCN Region = 5
)

// Code returns the short region code used in lobby handles ("US#1234567").
func (r Region) Code() string {
	switch r {
	case RegionUS:
		return "US"
	case RegionEU:
		return "EU"
	case RegionKR:
		return "KR"
	case RegionCN:
		return "CN"
	}
	return "??"
}

// LobbyStatus is the lifecycle state of a lobby. Everything other than
// LobbyOpen is terminal.
type LobbyStatus string

const (
	LobbyOpen      LobbyStatus = "open"
	LobbyStarted   LobbyStatus = "started"
	LobbyAbandoned LobbyStatus = "abandoned"
	LobbyUnknown   LobbyStatus = "unknown"
)

// SlotKind describes what occupies a lobby slot.
type SlotKind string

const (
	SlotKindOpen  SlotKind = "open"
	SlotKindAI    SlotKind = "ai"
	SlotKindHuman SlotKind = "human"
)

/// Priority orders slot kinds for display: humans first, then AI, open last.
func (k SlotKind) Priority() int {
	switch k {
	case SlotKindHuman:
		return 2
	case SlotKindAI:
		return 1
	}
	return 0
}

// Profile is a player's regional profile identity.
type Profile struct {
	RegionID      Region `json:"regionId"`
	RealmID       int    `json:"realmId"`
	ProfileID     int64  `json:"profileId"`
	Name          string `json:"name"`
	Discriminator int    `json:"discriminator"`
}

// BattleTag renders the profile as "Name#1234".
func (p Profile) BattleTag() string {
	return fmt.Sprintf("%s#%d", p.Name, p.Discriminator)
}

// LobbySlot is one slot of a lobby's fixed-size slot list.
type LobbySlot struct {
	SlotNumber int        `json:"slotNumber"`
	Team       int        `json:"team"`
	Kind       SlotKind   `json:"kind"`
	Name       string     `json:"name,omitempty"`
	Profile    *Profile   `json:"profile,omitempty"`
	JoinedAt   *time.Time `json:"joinedAt,omitempty"`
}

// DisplayName prefers the linked profile's battletag over the raw slot name.
func (s LobbySlot) DisplayName() string {
	if s.Profile != nil {
		return s.Profile.BattleTag()
	}
	return s.Name
}

// JoinHistoryEntry records a player having joined (and possibly left) a lobby.
type JoinHistoryEntry struct {
	Profile  Profile    `json:"profile"`
	JoinedAt time.Time  `json:"joinedAt"`
	LeftAt   *time.Time `json:"leftAt,omitempty"`
}

// GameLobby is an immutable-per-fetch projection of a lobby row, including
// its slot list and join history. The reporter replaces the whole snapshot on
// every refresh rather than mutating fields.
type GameLobby struct {
	ID           int64  `json:"id"`
	RegionID     Region `json:"regionId"`
	BnetBucketID int    `json:"bnetBucketId"`
	BnetRecordID int    `json:"bnetRecordId"`

	Status            LobbyStatus `json:"status"`
	CreatedAt         time.Time   `json:"createdAt"`
	ClosedAt          *time.Time  `json:"closedAt,omitempty"`
	SnapshotUpdatedAt *time.Time  `json:"snapshotUpdatedAt,omitempty"`
	SlotsUpdatedAt    *time.Time  `json:"slotsUpdatedAt,omitempty"`

	LobbyTitle string `json:"lobbyTitle,omitempty"`
	HostName   string `json:"hostName,omitempty"`

	MapBnetID      int    `json:"mapBnetId"`
	MapName        string `json:"mapName"`
	MapIconHash    string `json:"mapIconHash,omitempty"`
	MapVariantMode string `json:"mapVariantMode,omitempty"`
	ExtModBnetID   *int   `json:"extModBnetId,omitempty"`
	ExtModName     string `json:"extModName,omitempty"`

	SlotsHumansTaken int `json:"slotsHumansTaken"`
	SlotsHumansTotal int `json:"slotsHumansTotal"`

	Slots       []LobbySlot        `json:"slots,omitempty"`
	JoinHistory []JoinHistoryEntry `json:"joinHistory,omitempty"`
}

// Handle returns the human-readable lobby identifier, e.g. "EU#1234567".
func (l *GameLobby) Handle() string {
	return fmt.Sprintf("%s#%d", l.RegionID.Code(), l.BnetRecordID)
}

// GetSlots returns the slots matching any of the given kinds, in slot order.
// With no kinds it returns all slots.
func (l *GameLobby) GetSlots(kinds ...SlotKind) []LobbySlot {
	if len(kinds) == 0 {
		return l.Slots
	}
	var out []LobbySlot
	for _, s := range l.Slots {
		for _, k := range kinds {
			if s.Kind == k {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// TeamSlots returns the slots belonging to the given team number.
func (l *GameLobby) TeamSlots(team int) []LobbySlot {
	var out []LobbySlot
	for _, s := range l.Slots {
		if s.Team == team {
			out = append(out, s)
		}
	}
	return out
}

// TeamCount returns the number of distinct teams across all slots.
func (l *GameLobby) TeamCount() int {
	seen := make(map[int]struct{})
	for _, s := range l.Slots {
		seen[s.Team] = struct{}{}
	}
	return len(seen)
}

// Leavers returns join-history entries of players who already left.
func (l *GameLobby) Leavers() []JoinHistoryEntry {
	var out []JoinHistoryEntry
	for _, e := range l.JoinHistory {
		if e.LeftAt != nil {
			out = append(out, e)
		}
	}
	return out
}

// LobbyFreshness is the cheap change probe for a tracked lobby: status plus
// the two update timestamps, compared against the last full snapshot.
type LobbyFreshness struct {
	ID                int64
	Status            LobbyStatus
	SnapshotUpdatedAt *time.Time
	SlotsUpdatedAt    *time.Time
}
