package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/sc2arcade/watcher/internal/reporter"
)

// Classify translates a discordgo error into its delivery kind. Anything
// that is not a recognized API error code (network failures, rate limits,
// 5xx responses) is transient.
func Classify(err error) reporter.DeliveryKind {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) || rerr.Message == nil {
		return reporter.KindTransient
	}
	switch rerr.Message.Code {
	case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownUser, discordgo.ErrCodeUnknownGuild:
		return reporter.KindUnknownChannel
	case discordgo.ErrCodeUnknownMessage:
		return reporter.KindUnknownMessage
	case discordgo.ErrCodeMissingPermissions:
		return reporter.KindMissingPermission
	case discordgo.ErrCodeMissingAccess:
		return reporter.KindMissingAccess
	case discordgo.ErrCodeCannotSendMessagesToThisUser:
		return reporter.KindCannotDM
	}
	return reporter.KindTransient
}

// classifyErr wraps a transport error with its delivery kind, preserving the
// original for logs.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	return &reporter.DeliveryError{Kind: Classify(err), Err: err}
}
