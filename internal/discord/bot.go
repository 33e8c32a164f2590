package discord

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sc2arcade/watcher/internal/database"
	"github.com/sc2arcade/watcher/internal/models"
	"github.com/sc2arcade/watcher/internal/reporter"
)

const (
	bindAttempts     = 20
	bindRetryDelay   = time.Second
	invitePermission = 379968
)

var (
	bnetLinkRe    = regexp.MustCompile(`^battlenet::\/\/starcraft\/map\/(\d+)\/(\d+)$`)
	lobbyHandleRe = regexp.MustCompile(`^(\d+)\/(\d+)\/(\d+)$`)
)

// Bot wires chat commands to the reporter and the lobby store. Commands are
// throttled per channel so a busy guild cannot monopolize the API budget.
type Bot struct {
	session  *discordgo.Session
	reporter *reporter.Reporter
	log      *logrus.Logger
	prefix   string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewBot(session *discordgo.Session, rep *reporter.Reporter, prefix string, log *logrus.Logger) *Bot {
	if prefix == "" {
		prefix = "."
	}
	b := &Bot{
		session:  session,
		reporter: rep,
		log:      log,
		prefix:   prefix,
		limiters: make(map[string]*rate.Limiter),
	}
	session.AddHandler(b.handleMessage)
	return b
}

// limiter returns the per-channel command limiter: 5 commands per minute.
func (b *Bot) limiter(channelID string) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.limiters[channelID]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/5), 5)
		b.limiters[channelID] = l
	}
	return l
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !strings.HasPrefix(m.Content, b.prefix) {
		return
	}
	parts := strings.SplitN(strings.TrimPrefix(m.Content, b.prefix), " ", 2)
	cmd := strings.ToLower(parts[0])
	var args string
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "lobby", "sub", "unsub", "subs", "invite":
	default:
		return
	}
	if !b.limiter(m.ChannelID).Allow() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var err error
	switch cmd {
	case "lobby":
		err = b.cmdLobby(ctx, m, args)
	case "sub":
		err = b.cmdSubscribe(ctx, m, args)
	case "unsub":
		err = b.cmdUnsubscribe(ctx, m, args)
	case "subs":
		err = b.cmdListSubscriptions(ctx, m)
	case "invite":
		err = b.cmdInvite(m)
	}
	if err != nil {
		b.log.WithError(err).WithFields(logrus.Fields{
			"command": cmd,
			"channel": m.ChannelID,
		}).Error("command failed")
	}
}

// parseLobbyQuery turns command arguments into a store query. It returns a
// user-facing message instead of a query when the input is malformed.
func parseLobbyQuery(args string) (database.LobbyQuery, string) {
	args = strings.TrimSpace(args)
	if m := bnetLinkRe.FindStringSubmatch(args); m != nil {
		regionID, _ := strconv.Atoi(m[1])
		documentID, _ := strconv.Atoi(m[2])
		return database.LobbyQuery{DocumentLink: &database.DocumentLinkParams{
			RegionID:   models.Region(regionID),
			DocumentID: documentID,
		}}, ""
	}

	method, param, ok := strings.Cut(args, " ")
	if !ok || strings.TrimSpace(param) == "" {
		return database.LobbyQuery{}, "Usage: `lobby <id|map|mod|player> <query>` or a battlenet map link."
	}
	param = strings.TrimSpace(param)

	switch strings.ToLower(method) {
	case "id":
		m := lobbyHandleRe.FindStringSubmatch(param)
		if m == nil {
			return database.LobbyQuery{}, "Lobby id must be in the format `{regionId}/{bucketId}/{recordId}`."
		}
		regionID, _ := strconv.Atoi(m[1])
		bucketID, _ := strconv.Atoi(m[2])
		recordID, _ := strconv.Atoi(m[3])
		return database.LobbyQuery{Handle: &database.LobbyHandleParams{
			RegionID: models.Region(regionID),
			BucketID: bucketID,
			RecordID: recordID,
		}}, ""
	case "map":
		return database.LobbyQuery{MapName: param}, ""
	case "mod":
		return database.LobbyQuery{ModName: param}, ""
	case "player":
		name, disc, ok := strings.Cut(param, "#")
		if !ok {
			return database.LobbyQuery{PlayerName: param}, ""
		}
		d, err := strconv.Atoi(strings.TrimSpace(disc))
		if err != nil {
			return database.LobbyQuery{}, "Player must be in the format `Username` or `Username#1234`."
		}
		return database.LobbyQuery{Battletag: &database.BattletagParams{
			Name:          strings.TrimSpace(name),
			Discriminator: d,
		}}, ""
	}
	return database.LobbyQuery{}, "Unknown query method, expected one of: `id`, `map`, `mod`, `player`."
}

// cmdLobby finds a public lobby matching the query and binds the reply
// message to it for live updates. Freshly hosted lobbies may not be in the
// database yet, so the search retries for a while before giving up.
func (b *Bot) cmdLobby(ctx context.Context, m *discordgo.MessageCreate, args string) error {
	query, errMsg := parseLobbyQuery(args)
	if errMsg != "" {
		_, err := b.session.ChannelMessageSend(m.ChannelID, errMsg)
		return err
	}

	placeholder, err := b.session.ChannelMessageSend(m.ChannelID,
		"Looking for it, hold on.. if the lobby was just made public, it might take few seconds before it'll appear.")
	if err != nil {
		return err
	}

	dest := b.messageDestination(m)
	for i := 0; i < bindAttempts; i++ {
		results, err := database.SearchLobbies(ctx, query)
		if err != nil {
			return err
		}
		if len(results) > 0 {
			_, err := b.reporter.BindMessageWithLobby(ctx, dest, placeholder.ID, results[0].ID)
			if errors.Is(err, reporter.ErrLobbyNotFound) {
				break
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bindRetryDelay):
		}
	}
	_, err = b.session.ChannelMessageEdit(m.ChannelID, placeholder.ID,
		"Couldn't find a public game lobby which meets the criteria. Try again?")
	return err
}

// cmdSubscribe creates an exact-map-name rule delivering to the channel the
// command was issued in (or the user's DM).
func (b *Bot) cmdSubscribe(ctx context.Context, m *discordgo.MessageCreate, args string) error {
	if args == "" {
		_, err := b.session.ChannelMessageSend(m.ChannelID, "Usage: `sub <map name>`")
		return err
	}
	dest := b.messageDestination(m)
	sub := &models.Subscription{
		Enabled:   true,
		UserID:    dest.UserID,
		GuildID:   dest.GuildID,
		ChannelID: dest.ChannelID,
		MapName:   args,
	}
	if err := database.InsertSubscription(ctx, sub); err != nil {
		return err
	}
	b.reporter.AddRule(sub)
	_, err := b.session.ChannelMessageSend(m.ChannelID,
		fmt.Sprintf("Subscribed to lobbies of **%s**. Rule id: `%s`", args, sub.ID))
	return err
}

func (b *Bot) cmdUnsubscribe(ctx context.Context, m *discordgo.MessageCreate, args string) error {
	id, err := uuid.Parse(strings.TrimSpace(args))
	if err != nil {
		_, err := b.session.ChannelMessageSend(m.ChannelID, "Usage: `unsub <rule id>`")
		return err
	}
	owned, err := b.ownedSubscriptions(ctx, m)
	if err != nil {
		return err
	}
	for _, sub := range owned {
		if sub.ID != id {
			continue
		}
		if err := database.DisableSubscription(ctx, id); err != nil {
			return err
		}
		b.reporter.ForgetRule(id)
		_, err := b.session.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Rule `%s` removed.", id))
		return err
	}
	_, err = b.session.ChannelMessageSend(m.ChannelID, "No such rule here.")
	return err
}

func (b *Bot) cmdListSubscriptions(ctx context.Context, m *discordgo.MessageCreate) error {
	owned, err := b.ownedSubscriptions(ctx, m)
	if err != nil {
		return err
	}
	if len(owned) == 0 {
		_, err := b.session.ChannelMessageSend(m.ChannelID, "No active subscriptions here.")
		return err
	}
	var sb strings.Builder
	sb.WriteString("Active subscriptions:\n")
	for _, sub := range owned {
		fmt.Fprintf(&sb, "`%s` — **%s**\n", sub.ID, sub.MapName)
	}
	_, err = b.session.ChannelMessageSend(m.ChannelID, sb.String())
	return err
}

func (b *Bot) cmdInvite(m *discordgo.MessageCreate) error {
	_, err := b.session.ChannelMessageSend(m.ChannelID, fmt.Sprintf(
		"<https://discord.com/oauth2/authorize?client_id=%s&scope=bot&permissions=%d>",
		b.session.State.User.ID, invitePermission))
	return err
}

func (b *Bot) ownedSubscriptions(ctx context.Context, m *discordgo.MessageCreate) ([]*models.Subscription, error) {
	if m.GuildID != "" {
		return database.ListSubscriptionsForGuild(ctx, m.GuildID)
	}
	return database.ListSubscriptionsForUser(ctx, m.Author.ID)
}

// messageDestination derives a delivery destination from an incoming
// message: the guild channel it was sent in, or the author's DM.
func (b *Bot) messageDestination(m *discordgo.MessageCreate) models.Destination {
	if m.GuildID != "" {
		return models.Destination{GuildID: m.GuildID, ChannelID: m.ChannelID}
	}
	return models.Destination{UserID: m.Author.ID, ChannelID: m.ChannelID}
}
