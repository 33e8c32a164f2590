package database

import (
	"context"

	"github.com/sc2arcade/watcher/internal/models"
)

// LobbyHandleParams identifies a lobby by its region/bucket/record triple.
type LobbyHandleParams struct {
	RegionID models.Region
	BucketID int
	RecordID int
}

// DocumentLinkParams identifies a map or extension mod by battlenet link.
type DocumentLinkParams struct {
	RegionID   models.Region
	DocumentID int
}

// BattletagParams identifies a player by profile name and discriminator.
type BattletagParams struct {
	Name          string
	Discriminator int
}

// LobbyQuery selects open lobbies by exactly one criterion. Handle lookups
// ignore the status filter so recently closed lobbies still resolve.
type LobbyQuery struct {
	Handle       *LobbyHandleParams
	DocumentLink *DocumentLinkParams
	MapName      string
	ModName      string
	PlayerName   string
	Battletag    *BattletagParams
}

// SearchLobbies resolves a lookup-command query to matching lobby rows.
// Slots and join history are not attached; callers needing full detail
// should refetch by id.
func SearchLobbies(ctx context.Context, query LobbyQuery) ([]*models.GameLobby, error) {
	q := `SELECT ` + lobbyColumns + ` FROM lobbies l`
	var args []any
	switch {
	case query.Handle != nil:
		q += ` WHERE l.region_id = $1 AND l.bnet_bucket_id = $2 AND l.bnet_record_id = $3`
		args = []any{query.Handle.RegionID, query.Handle.BucketID, query.Handle.RecordID}
	case query.DocumentLink != nil:
		q += ` WHERE l.status = 'open' AND l.region_id = $1 AND (l.map_bnet_id = $2 OR l.ext_mod_bnet_id = $2)`
		args = []any{query.DocumentLink.RegionID, query.DocumentLink.DocumentID}
	case query.MapName != "":
		q += ` WHERE l.status = 'open' AND lower(l.map_name) = lower($1)`
		args = []any{query.MapName}
	case query.ModName != "":
		q += ` WHERE l.status = 'open' AND lower(l.ext_mod_name) = lower($1)`
		args = []any{query.ModName}
	case query.PlayerName != "":
		q += ` WHERE l.status = 'open' AND EXISTS (
			SELECT 1 FROM lobby_slots s WHERE s.lobby_id = l.id AND s.kind = 'human' AND s.name = $1
		)`
		args = []any{query.PlayerName}
	case query.Battletag != nil:
		q += ` WHERE l.status = 'open' AND EXISTS (
			SELECT 1 FROM lobby_slots s
			JOIN profiles p ON p.id = s.profile_row_id
			WHERE s.lobby_id = l.id AND p.name = $1 AND p.discriminator = $2
		)`
		args = []any{query.Battletag.Name, query.Battletag.Discriminator}
	default:
		return nil, nil
	}
	q += ` ORDER BY l.created_at DESC`

	rows, err := DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lobbies []*models.GameLobby
	for rows.Next() {
		l, err := scanLobby(rows)
		if err != nil {
			return nil, err
		}
		lobbies = append(lobbies, l)
	}
	return lobbies, rows.Err()
}
