package reporter

import (
	"regexp"
	"strings"

	"github.com/sc2arcade/watcher/internal/models"
)

// RuleMatches reports whether a subscription rule selects the given lobby.
// The map-name test runs in one of three modes (exact, partial, regex), all
// case-insensitive; the variant and region filters only apply when set.
func RuleMatches(rule *models.Subscription, lobby *models.GameLobby) bool {
	if !mapNameMatches(rule, lobby.MapName) {
		return false
	}
	if rule.Variant != "" && rule.Variant != lobby.MapVariantMode {
		return false
	}
	if rule.RegionID != nil && *rule.RegionID != lobby.RegionID {
		return false
	}
	return true
}

func mapNameMatches(rule *models.Subscription, name string) bool {
	if name == "" {
		return false
	}
	switch {
	case rule.IsMapNameRegex:
		re, err := regexp.Compile("(?i)" + rule.MapName)
		if err != nil {
			return false
		}
		return re.MatchString(name)
	case rule.IsMapNamePartial:
		return strings.Contains(strings.ToLower(name), strings.ToLower(rule.MapName))
	default:
		return strings.EqualFold(name, rule.MapName)
	}
}
