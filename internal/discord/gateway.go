package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/sc2arcade/watcher/internal/models"
	"github.com/sc2arcade/watcher/internal/reporter"
)

// Gateway is the chat delivery surface backed by a live discordgo session.
// Every transport failure leaving this type is classified into a
// DeliveryError so the caller can act on the kind alone.
type Gateway struct {
	session *discordgo.Session
	log     *logrus.Logger
}

func NewGateway(session *discordgo.Session, log *logrus.Logger) *Gateway {
	return &Gateway{session: session, log: log}
}

// ResolveDestination resolves a destination to a concrete channel id: the DM
// channel for user destinations, the verified text channel for guild ones.
func (g *Gateway) ResolveDestination(ctx context.Context, dest models.Destination) (string, error) {
	switch dest.Kind() {
	case models.DestinationUser:
		ch, err := g.session.UserChannelCreate(dest.UserID, discordgo.WithContext(ctx))
		if err != nil {
			return "", classifyErr(err)
		}
		return ch.ID, nil
	case models.DestinationGuildChannel:
		ch, err := g.session.State.Channel(dest.ChannelID)
		if err != nil {
			ch, err = g.session.Channel(dest.ChannelID, discordgo.WithContext(ctx))
			if err != nil {
				return "", classifyErr(err)
			}
		}
		if ch.GuildID != dest.GuildID {
			return "", &reporter.DeliveryError{
				Kind: reporter.KindUnknownChannel,
				Err:  fmt.Errorf("channel %s does not belong to guild %s", dest.ChannelID, dest.GuildID),
			}
		}
		if ch.Type != discordgo.ChannelTypeGuildText && ch.Type != discordgo.ChannelTypeGuildNews {
			return "", &reporter.DeliveryError{
				Kind: reporter.KindUnknownChannel,
				Err:  fmt.Errorf("channel %s has unsupported type %d", dest.ChannelID, ch.Type),
			}
		}
		return ch.ID, nil
	}
	return "", models.ErrInvalidDestination
}

func (g *Gateway) SendLobby(ctx context.Context, channelID string, lobby *models.GameLobby, rule *models.Subscription) (string, error) {
	embed := RenderLobbyEmbed(lobby, renderOpts(rule))
	msg, err := g.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return "", classifyErr(err)
	}
	return msg.ID, nil
}

func (g *Gateway) EditLobby(ctx context.Context, channelID, messageID string, lobby *models.GameLobby, rule *models.Subscription) error {
	embed := RenderLobbyEmbed(lobby, renderOpts(rule))
	_, err := g.session.ChannelMessageEditEmbed(channelID, messageID, embed, discordgo.WithContext(ctx))
	return classifyErr(err)
}

func (g *Gateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return classifyErr(g.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func renderOpts(rule *models.Subscription) RenderOpts {
	if rule == nil {
		return RenderOpts{}
	}
	return RenderOpts{ShowLeavers: rule.ShowLeavers}
}
