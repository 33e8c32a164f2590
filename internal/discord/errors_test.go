package discord

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"github.com/sc2arcade/watcher/internal/reporter"
)

func restErr(code int) error {
	return &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: code}}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want reporter.DeliveryKind
	}{
		{"unknown channel", restErr(discordgo.ErrCodeUnknownChannel), reporter.KindUnknownChannel},
		{"unknown user", restErr(discordgo.ErrCodeUnknownUser), reporter.KindUnknownChannel},
		{"unknown message", restErr(discordgo.ErrCodeUnknownMessage), reporter.KindUnknownMessage},
		{"missing permissions", restErr(discordgo.ErrCodeMissingPermissions), reporter.KindMissingPermission},
		{"missing access", restErr(discordgo.ErrCodeMissingAccess), reporter.KindMissingAccess},
		{"cannot dm", restErr(discordgo.ErrCodeCannotSendMessagesToThisUser), reporter.KindCannotDM},
		{"unrecognized api code", restErr(40062), reporter.KindTransient},
		{"wrapped rest error", fmt.Errorf("send: %w", restErr(discordgo.ErrCodeUnknownMessage)), reporter.KindUnknownMessage},
		{"plain error", errors.New("connection reset"), reporter.KindTransient},
		{"rest error without body", &discordgo.RESTError{}, reporter.KindTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassifyErrWrapsKind(t *testing.T) {
	err := classifyErr(restErr(discordgo.ErrCodeMissingAccess))
	var de *reporter.DeliveryError
	if assert.ErrorAs(t, err, &de) {
		assert.Equal(t, reporter.KindMissingAccess, de.Kind)
	}
	assert.Nil(t, classifyErr(nil))
}
