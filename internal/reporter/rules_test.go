package reporter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sc2arcade/watcher/internal/models"
)

func TestRuleMatches(t *testing.T) {
	lobby := testLobby(1, models.LobbyOpen)
	lobby.MapName = "Ice Baneling Escape - Cold Voyage"
	lobby.MapVariantMode = "Hard"
	lobby.RegionID = models.RegionEU

	region := func(r models.Region) *models.Region { return &r }

	cases := []struct {
		name string
		rule models.Subscription
		want bool
	}{
		{"exact match is case-insensitive", models.Subscription{MapName: "ice baneling escape - cold voyage"}, true},
		{"exact match rejects substrings", models.Subscription{MapName: "Ice Baneling Escape"}, false},
		{"partial match", models.Subscription{MapName: "baneling", IsMapNamePartial: true}, true},
		{"partial mismatch", models.Subscription{MapName: "desert strike", IsMapNamePartial: true}, false},
		{"regex match", models.Subscription{MapName: `^ice.*voyage$`, IsMapNameRegex: true}, true},
		{"regex mismatch", models.Subscription{MapName: `^voyage`, IsMapNameRegex: true}, false},
		{"invalid regex never matches", models.Subscription{MapName: `[unclosed`, IsMapNameRegex: true}, false},
		{"variant filter match", models.Subscription{MapName: "Ice Baneling Escape - Cold Voyage", Variant: "Hard"}, true},
		{"variant filter mismatch", models.Subscription{MapName: "Ice Baneling Escape - Cold Voyage", Variant: "Easy"}, false},
		{"region filter match", models.Subscription{MapName: "Ice Baneling Escape - Cold Voyage", RegionID: region(models.RegionEU)}, true},
		{"region filter mismatch", models.Subscription{MapName: "Ice Baneling Escape - Cold Voyage", RegionID: region(models.RegionUS)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := tc.rule
			assert.Equal(t, tc.want, RuleMatches(&rule, lobby))
		})
	}
}
