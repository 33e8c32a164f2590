package discord

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sc2arcade/watcher/internal/models"
)

const mapIconBaseURL = "http://sc2arcade.talv.space/bnet"

const (
	colorOpen      = 0xffac33
	colorStarted   = 0x77b255
	colorAbandoned = 0xdd2e44
	colorUnknown   = 0xccd6dd
)

var regionFooterIcons = map[models.Region]string{
	models.RegionUS: "https://i.imgur.com/K584M0K.png",
	models.RegionEU: "https://i.imgur.com/G8Vst8Q.png",
	models.RegionKR: "https://i.imgur.com/YbFsB42.png",
}

// RenderOpts controls optional embed sections.
type RenderOpts struct {
	ShowLeavers bool
}

// formatTimeDiff renders the positive difference between two instants as
// "mm:ss", clamped at zero.
func formatTimeDiff(a, b time.Time) string {
	secs := int(a.Sub(b).Seconds())
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// RenderLobbyEmbed builds the notification embed for a lobby snapshot. The
// layout adapts to the lobby shape: team tables for small multi-team games,
// a flat player list otherwise.
func RenderLobbyEmbed(lobby *models.GameLobby, opts RenderOpts) *discordgo.MessageEmbed {
	em := &discordgo.MessageEmbed{
		Title: lobby.MapName,
		Thumbnail: &discordgo.MessageEmbedThumbnail{
			URL: fmt.Sprintf("%s/%s.jpg", mapIconBaseURL, lobby.MapIconHash),
		},
		Timestamp: lobby.CreatedAt.Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text:    lobby.Handle(),
			IconURL: regionFooterIcons[lobby.RegionID],
		},
	}

	var statusm strings.Builder
	switch lobby.Status {
	case models.LobbyOpen:
		statusm.WriteString("⏳")
		em.Color = colorOpen
	case models.LobbyStarted:
		statusm.WriteString("✅")
		em.Color = colorStarted
	case models.LobbyAbandoned:
		statusm.WriteString("❌")
		em.Color = colorAbandoned
	default:
		statusm.WriteString("❓")
		em.Color = colorUnknown
	}
	fmt.Fprintf(&statusm, " __** %s **__", strings.ToUpper(string(lobby.Status)))
	if lobby.Status != models.LobbyOpen && lobby.ClosedAt != nil {
		fmt.Fprintf(&statusm, " `%s`", formatTimeDiff(*lobby.ClosedAt, lobby.CreatedAt))
	}
	em.Fields = append(em.Fields, &discordgo.MessageEmbedField{
		Name:   "Status",
		Value:  statusm.String(),
		Inline: true,
	})

	var modeField *discordgo.MessageEmbedField
	if lobby.ExtModName != "" {
		modeField = &discordgo.MessageEmbedField{Name: "Extension mod", Value: lobby.ExtModName, Inline: true}
	} else if strings.TrimSpace(lobby.MapVariantMode) != "" {
		modeField = &discordgo.MessageEmbedField{Name: "Variant", Value: lobby.MapVariantMode, Inline: true}
	}
	if modeField != nil {
		em.Fields = append(em.Fields, modeField)
	}

	hasTitle := lobby.LobbyTitle != ""
	if hasTitle {
		em.Fields = append(em.Fields, &discordgo.MessageEmbedField{
			Name:  "Title",
			Value: lobby.LobbyTitle,
		})
	}

	appendSlotFields(em, lobby, modeField, hasTitle)
	appendLeaverField(em, lobby, opts)

	return em
}

func appendSlotFields(em *discordgo.MessageEmbed, lobby *models.GameLobby, modeField *discordgo.MessageEmbedField, hasTitle bool) {
	if lobby.Status != models.LobbyOpen && lobby.Status != models.LobbyStarted {
		return
	}
	active := lobby.GetSlots(models.SlotKindHuman, models.SlotKindAI)
	if len(active) == 0 {
		return
	}

	teamsNumber := lobby.TeamCount()
	maxTeamSize := 0
	teamSizes := make(map[int]int)
	for _, s := range lobby.Slots {
		teamSizes[s.Team]++
		if teamSizes[s.Team] > maxTeamSize {
			maxTeamSize = teamSizes[s.Team]
		}
	}

	richLayout := teamsNumber >= 2 &&
		len(lobby.Slots)/teamsNumber >= 2 &&
		maxTeamSize <= 6

	if !richLayout {
		rows := formatSlotRows(lobby, active, teamsNumber > 1 && maxTeamSize > 1)
		em.Fields = append(em.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Players [%d/%d]", len(active), len(lobby.Slots)),
			Value: strings.Join(rows, "\n"),
		})
		return
	}

	// team columns push the mode field onto its own row unless a title
	// already separates them
	if !hasTitle && modeField != nil {
		modeField.Inline = false
	}
	for team := 1; team <= teamsNumber; team++ {
		teamSlots := sortByKindPriority(lobby.TeamSlots(team))
		if len(teamSlots) == 0 {
			continue
		}
		rows := formatSlotRows(lobby, teamSlots, false)
		em.Fields = append(em.Fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("Team %d", team),
			Value:  strings.Join(rows, "\n"),
			Inline: true,
		})
		if team%2 == 0 && teamsNumber > team {
			em.Fields = append(em.Fields, &discordgo.MessageEmbedField{
				Name: "​", Value: "​",
			})
		}
	}
}

func sortByKindPriority(slots []models.LobbySlot) []models.LobbySlot {
	out := make([]models.LobbySlot, len(slots))
	copy(out, slots)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Kind.Priority() > out[j].Kind.Priority()
	})
	return out
}

func formatSlotRows(lobby *models.GameLobby, slots []models.LobbySlot, includeTeam bool) []string {
	width := len(fmt.Sprint(len(slots)))
	rows := make([]string, 0, len(slots))
	for i, slot := range slots {
		var b strings.Builder
		fmt.Fprintf(&b, "`%0*d)", width, i+1)
		if includeTeam && slot.Kind != models.SlotKindOpen {
			fmt.Fprintf(&b, " T%d", slot.Team)
		}
		switch slot.Kind {
		case models.SlotKindHuman:
			joined := lobby.CreatedAt
			if slot.JoinedAt != nil {
				joined = *slot.JoinedAt
			} else if lobby.SlotsUpdatedAt != nil {
				joined = *lobby.SlotsUpdatedAt
			}
			fmt.Fprintf(&b, " %s`", formatTimeDiff(joined, lobby.CreatedAt))
			name := slot.DisplayName()
			isHost := name == lobby.HostName
			if lobby.RegionID == models.RegionKR {
				// monospace fits more hangul per line
				if isHost {
					fmt.Fprintf(&b, " __`%s`__ ", name)
				} else {
					fmt.Fprintf(&b, " `%s` ", name)
				}
			} else if isHost {
				fmt.Fprintf(&b, " __**%s**__", name)
			} else {
				fmt.Fprintf(&b, " **%s**", name)
			}
		case models.SlotKindAI:
			b.WriteString("  AI  `")
		default:
			b.WriteString(" OPEN `")
		}
		rows = append(rows, b.String())
	}
	return rows
}

func appendLeaverField(em *discordgo.MessageEmbed, lobby *models.GameLobby, opts RenderOpts) {
	if !opts.ShowLeavers && lobby.Status != models.LobbyOpen {
		return
	}
	leavers := lobby.Leavers()
	if !opts.ShowLeavers {
		recent := leavers[:0]
		for _, e := range leavers {
			if time.Since(*e.LeftAt) <= 40*time.Second {
				recent = append(recent, e)
			}
		}
		leavers = recent
	}
	if len(leavers) == 0 {
		return
	}

	rows := make([]string, 0, len(leavers))
	for _, e := range leavers {
		rows = append(rows, fmt.Sprintf("`%s >  %s`  ~~%s~~",
			formatTimeDiff(e.JoinedAt, lobby.CreatedAt),
			formatTimeDiff(*e.LeftAt, lobby.CreatedAt),
			e.Profile.BattleTag(),
		))
	}
	// embed field values cap at 1024 chars; drop the oldest rows first
	for len(strings.Join(rows, "\n")) > 1024 {
		rows = rows[1:]
	}
	em.Fields = append(em.Fields, &discordgo.MessageEmbedField{
		Name:  fmt.Sprintf("Seen players [%d]", len(leavers)),
		Value: strings.Join(rows, "\n"),
	})
}
