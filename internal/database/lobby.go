package database

import (
	"context"

	"github.com/sc2arcade/watcher/internal/models"
)

// lobbyColumns is the full snapshot projection selected for lobby detail.
const lobbyColumns = `
	l.id, l.region_id, l.bnet_bucket_id, l.bnet_record_id,
	l.status, l.created_at, l.closed_at, l.snapshot_updated_at, l.slots_updated_at,
	l.lobby_title, l.host_name,
	l.map_bnet_id, l.map_name, l.map_icon_hash, l.map_variant_mode,
	l.ext_mod_bnet_id, l.ext_mod_name,
	l.slots_humans_taken, l.slots_humans_total
`

func scanLobby(row interface{ Scan(dest ...any) error }) (*models.GameLobby, error) {
	var l models.GameLobby
	err := row.Scan(
		&l.ID, &l.RegionID, &l.BnetBucketID, &l.BnetRecordID,
		&l.Status, &l.CreatedAt, &l.ClosedAt, &l.SnapshotUpdatedAt, &l.SlotsUpdatedAt,
		&l.LobbyTitle, &l.HostName,
		&l.MapBnetID, &l.MapName, &l.MapIconHash, &l.MapVariantMode,
		&l.ExtModBnetID, &l.ExtModName,
		&l.SlotsHumansTaken, &l.SlotsHumansTotal,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// FetchLobbiesByIDs fetches full lobby detail (slots and join history
// included) for the given id set.
func FetchLobbiesByIDs(ctx context.Context, ids []int64) ([]*models.GameLobby, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT ` + lobbyColumns + ` FROM lobbies l WHERE l.id = ANY($1)`
	rows, err := DB.Query(ctx, q, ids)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachSlots(ctx, lobbies); err != nil {
		return nil, err
	}
	if err := attachJoinHistory(ctx, lobbies); err != nil {
		return nil, err
	}
	return lobbies, nil
}

// FetchLobbyFreshness fetches the freshness probe for the given id set.
func FetchLobbyFreshness(ctx context.Context, ids []int64) ([]models.LobbyFreshness, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT id, status, snapshot_updated_at, slots_updated_at FROM lobbies WHERE id = ANY($1)`
	rows, err := DB.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LobbyFreshness
	for rows.Next() {
		var f models.LobbyFreshness
		if err := rows.Scan(&f.ID, &f.Status, &f.SnapshotUpdatedAt, &f.SlotsUpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// FetchOpenLobbiesExcluding fetches full detail for every open lobby whose id
// is not in the given set. An empty set returns all open lobbies.
func FetchOpenLobbiesExcluding(ctx context.Context, ids []int64) ([]*models.GameLobby, error) {
	if ids == nil {
		ids = []int64{}
	}
	q := `SELECT ` + lobbyColumns + ` FROM lobbies l WHERE l.status = 'open' AND NOT (l.id = ANY($1))`
	rows, err := DB.Query(ctx, q, ids)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachSlots(ctx, lobbies); err != nil {
		return nil, err
	}
	if err := attachJoinHistory(ctx, lobbies); err != nil {
		return nil, err
	}
	return lobbies, nil
}

// attachSlots loads the ordered slot lists (with linked profiles) for the
// given lobbies and groups them onto each snapshot.
func attachSlots(ctx context.Context, lobbies []*models.GameLobby) error {
	if len(lobbies) == 0 {
		return nil
	}
	byID := make(map[int64]*models.GameLobby, len(lobbies))
	ids := make([]int64, 0, len(lobbies))
	for _, l := range lobbies {
		byID[l.ID] = l
		ids = append(ids, l.ID)
	}

	q := `
		SELECT s.lobby_id, s.slot_number, s.team, s.kind, s.name, s.joined_at,
		       p.region_id, p.realm_id, p.profile_id, p.name, p.discriminator
		FROM lobby_slots s
		LEFT JOIN profiles p ON p.id = s.profile_row_id
		WHERE s.lobby_id = ANY($1)
		ORDER BY s.lobby_id, s.slot_number
	`
	rows, err := DB.Query(ctx, q, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var lobbyID int64
		var slot models.LobbySlot
		var pRegion *models.Region
		var pRealm *int
		var pProfile *int64
		var pName *string
		var pDiscriminator *int
		err := rows.Scan(
			&lobbyID, &slot.SlotNumber, &slot.Team, &slot.Kind, &slot.Name, &slot.JoinedAt,
			&pRegion, &pRealm, &pProfile, &pName, &pDiscriminator,
		)
		if err != nil {
			return err
		}
		if pRegion != nil {
			slot.Profile = &models.Profile{
				RegionID:      *pRegion,
				RealmID:       *pRealm,
				ProfileID:     *pProfile,
				Name:          *pName,
				Discriminator: *pDiscriminator,
			}
		}
		if l, ok := byID[lobbyID]; ok {
			l.Slots = append(l.Slots, slot)
		}
	}
	return rows.Err()
}

// attachJoinHistory loads the join/leave history for the given lobbies.
func attachJoinHistory(ctx context.Context, lobbies []*models.GameLobby) error {
	if len(lobbies) == 0 {
		return nil
	}
	byID := make(map[int64]*models.GameLobby, len(lobbies))
	ids := make([]int64, 0, len(lobbies))
	for _, l := range lobbies {
		byID[l.ID] = l
		ids = append(ids, l.ID)
	}

	q := `
		SELECT j.lobby_id, j.joined_at, j.left_at,
		       p.region_id, p.realm_id, p.profile_id, p.name, p.discriminator
		FROM lobby_joins j
		JOIN profiles p ON p.id = j.profile_row_id
		WHERE j.lobby_id = ANY($1)
		ORDER BY j.lobby_id, j.joined_at
	`
	rows, err := DB.Query(ctx, q, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var lobbyID int64
		var e models.JoinHistoryEntry
		err := rows.Scan(
			&lobbyID, &e.JoinedAt, &e.LeftAt,
			&e.Profile.RegionID, &e.Profile.RealmID, &e.Profile.ProfileID,
			&e.Profile.Name, &e.Profile.Discriminator,
		)
		if err != nil {
			return err
		}
		if l, ok := byID[lobbyID]; ok {
			l.JoinHistory = append(l.JoinHistory, e)
		}
	}
	return rows.Err()
}
