package discord

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sc2arcade/watcher/internal/models"
)

func embedLobby(status models.LobbyStatus) *models.GameLobby {
	now := time.Now()
	joined := now.Add(-90 * time.Second)
	l := &models.GameLobby{
		ID:               1,
		RegionID:         models.RegionEU,
		BnetBucketID:     100,
		BnetRecordID:     1234567,
		Status:           status,
		CreatedAt:        now.Add(-2 * time.Minute),
		MapName:          "Ice Baneling Escape",
		MapIconHash:      "abc123",
		MapVariantMode:   "Hard",
		HostName:         "Host#1111",
		SlotsHumansTaken: 2,
		SlotsHumansTotal: 4,
		Slots: []models.LobbySlot{
			{SlotNumber: 1, Team: 1, Kind: models.SlotKindHuman, Name: "Host#1111", JoinedAt: &joined},
			{SlotNumber: 2, Team: 1, Kind: models.SlotKindHuman, Name: "Guest#2222", JoinedAt: &joined},
			{SlotNumber: 3, Team: 1, Kind: models.SlotKindAI},
			{SlotNumber: 4, Team: 1, Kind: models.SlotKindOpen},
		},
	}
	if status != models.LobbyOpen {
		closed := now.Add(-time.Minute)
		l.ClosedAt = &closed
	}
	return l
}

func fieldByName(em *discordgo.MessageEmbed, name string) *discordgo.MessageEmbedField {
	for _, f := range em.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func TestSortByKindPriority(t *testing.T) {
	slots := []models.LobbySlot{
		{SlotNumber: 1, Kind: models.SlotKindOpen},
		{SlotNumber: 2, Kind: models.SlotKindHuman, Name: "First#1111"},
		{SlotNumber: 3, Kind: models.SlotKindAI},
		{SlotNumber: 4, Kind: models.SlotKindHuman, Name: "Second#2222"},
	}
	sorted := sortByKindPriority(slots)

	require.Len(t, sorted, 4)
	assert.Equal(t, "First#1111", sorted[0].Name)
	assert.Equal(t, "Second#2222", sorted[1].Name, "equal-priority slots keep their order")
	assert.Equal(t, models.SlotKindAI, sorted[2].Kind)
	assert.Equal(t, models.SlotKindOpen, sorted[3].Kind)
	assert.Equal(t, 1, slots[0].SlotNumber, "input is not mutated")
	assert.Equal(t, models.SlotKindOpen, slots[0].Kind)
}

func TestRenderLobbyEmbedBasics(t *testing.T) {
	em := RenderLobbyEmbed(embedLobby(models.LobbyOpen), RenderOpts{})

	assert.Equal(t, "Ice Baneling Escape", em.Title)
	assert.Equal(t, colorOpen, em.Color)
	assert.Equal(t, "EU#1234567", em.Footer.Text)
	assert.Contains(t, em.Thumbnail.URL, "abc123.jpg")

	status := fieldByName(em, "Status")
	require.NotNil(t, status)
	assert.Contains(t, status.Value, "OPEN")

	variant := fieldByName(em, "Variant")
	require.NotNil(t, variant)
	assert.Equal(t, "Hard", variant.Value)
}

func TestRenderLobbyEmbedClosedShowsDuration(t *testing.T) {
	em := RenderLobbyEmbed(embedLobby(models.LobbyStarted), RenderOpts{})

	assert.Equal(t, colorStarted, em.Color)
	status := fieldByName(em, "Status")
	require.NotNil(t, status)
	assert.Contains(t, status.Value, "STARTED")
	assert.Contains(t, status.Value, "`01:00`")
}

func TestRenderLobbyEmbedExtensionModWins(t *testing.T) {
	lobby := embedLobby(models.LobbyOpen)
	lobby.ExtModName = "Scion Custom Races (Mod)"
	em := RenderLobbyEmbed(lobby, RenderOpts{})

	assert.Nil(t, fieldByName(em, "Variant"))
	mod := fieldByName(em, "Extension mod")
	require.NotNil(t, mod)
	assert.Equal(t, "Scion Custom Races (Mod)", mod.Value)
}

func TestRenderLobbyEmbedFlatPlayerList(t *testing.T) {
	// single team: flat list with occupancy header
	em := RenderLobbyEmbed(embedLobby(models.LobbyOpen), RenderOpts{})

	players := fieldByName(em, "Players [3/4]")
	require.NotNil(t, players)
	assert.Contains(t, players.Value, "__**Host#1111**__", "host is highlighted")
	assert.Contains(t, players.Value, "**Guest#2222**")
	assert.Contains(t, players.Value, "AI")
	assert.Nil(t, fieldByName(em, "Team 1"))
}

func TestRenderLobbyEmbedRichTeamLayout(t *testing.T) {
	lobby := embedLobby(models.LobbyOpen)
	lobby.Slots = []models.LobbySlot{
		{SlotNumber: 1, Team: 1, Kind: models.SlotKindHuman, Name: "Host#1111"},
		{SlotNumber: 2, Team: 1, Kind: models.SlotKindOpen},
		{SlotNumber: 3, Team: 2, Kind: models.SlotKindHuman, Name: "Guest#2222"},
		{SlotNumber: 4, Team: 2, Kind: models.SlotKindOpen},
	}
	em := RenderLobbyEmbed(lobby, RenderOpts{})

	team1 := fieldByName(em, "Team 1")
	team2 := fieldByName(em, "Team 2")
	require.NotNil(t, team1)
	require.NotNil(t, team2)
	assert.True(t, team1.Inline)
	assert.Contains(t, team1.Value, "Host#1111")
	assert.Contains(t, team2.Value, "Guest#2222")
	assert.Nil(t, fieldByName(em, "Players [2/4]"))

	// without a title the mode field moves onto its own row
	variant := fieldByName(em, "Variant")
	require.NotNil(t, variant)
	assert.False(t, variant.Inline)
}

func TestRenderLobbyEmbedLargeTeamFallsBackToFlat(t *testing.T) {
	lobby := embedLobby(models.LobbyOpen)
	var slots []models.LobbySlot
	for i := 0; i < 14; i++ {
		team := 1
		if i >= 7 {
			team = 2
		}
		slots = append(slots, models.LobbySlot{SlotNumber: i + 1, Team: team, Kind: models.SlotKindHuman, Name: "P#1"})
	}
	lobby.Slots = slots
	em := RenderLobbyEmbed(lobby, RenderOpts{})

	assert.Nil(t, fieldByName(em, "Team 1"), "teams of 7 are too wide for columns")
	assert.NotNil(t, fieldByName(em, "Players [14/14]"))
}

func TestRenderLobbyEmbedLeavers(t *testing.T) {
	lobby := embedLobby(models.LobbyOpen)
	now := time.Now()
	recentLeave := now.Add(-20 * time.Second)
	staleLeave := now.Add(-2 * time.Minute)
	lobby.JoinHistory = []models.JoinHistoryEntry{
		{Profile: models.Profile{Name: "Quitter", Discriminator: 1}, JoinedAt: lobby.CreatedAt, LeftAt: &recentLeave},
		{Profile: models.Profile{Name: "LongGone", Discriminator: 2}, JoinedAt: lobby.CreatedAt, LeftAt: &staleLeave},
		{Profile: models.Profile{Name: "Stayer", Discriminator: 3}, JoinedAt: lobby.CreatedAt},
	}

	t.Run("open lobby shows recent leavers only", func(t *testing.T) {
		em := RenderLobbyEmbed(lobby, RenderOpts{})
		field := fieldByName(em, "Seen players [1]")
		require.NotNil(t, field)
		assert.Contains(t, field.Value, "~~Quitter#1~~")
		assert.False(t, strings.Contains(field.Value, "LongGone"))
	})

	t.Run("show-leavers includes everyone who left", func(t *testing.T) {
		em := RenderLobbyEmbed(lobby, RenderOpts{ShowLeavers: true})
		field := fieldByName(em, "Seen players [2]")
		require.NotNil(t, field)
		assert.Contains(t, field.Value, "~~LongGone#2~~")
	})

	t.Run("closed lobby hides leavers unless requested", func(t *testing.T) {
		closedLobby := embedLobby(models.LobbyStarted)
		closedLobby.JoinHistory = lobby.JoinHistory
		em := RenderLobbyEmbed(closedLobby, RenderOpts{})
		for _, f := range em.Fields {
			assert.False(t, strings.HasPrefix(f.Name, "Seen players"))
		}
	})
}
