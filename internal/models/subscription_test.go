package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDestinationKind(t *testing.T) {
	cases := []struct {
		name string
		dest Destination
		want DestinationKind
	}{
		{"user dm", Destination{UserID: "u1"}, DestinationUser},
		{"user dm with resolved channel", Destination{UserID: "u1", ChannelID: "c1"}, DestinationUser},
		{"guild channel", Destination{GuildID: "g1", ChannelID: "c1"}, DestinationGuildChannel},
		{"guild without channel", Destination{GuildID: "g1"}, DestinationInvalid},
		{"both forms set", Destination{UserID: "u1", GuildID: "g1", ChannelID: "c1"}, DestinationInvalid},
		{"empty", Destination{}, DestinationInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.dest.Kind())
		})
	}
}

func TestLobbyHandle(t *testing.T) {
	l := &GameLobby{RegionID: RegionKR, BnetRecordID: 7654321}
	assert.Equal(t, "KR#7654321", l.Handle())
}
