package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sc2arcade/watcher/internal/models"
)

// InsertLobbyMessage persists a ledger row for a successfully sent message.
func InsertLobbyMessage(ctx context.Context, msg *models.LobbyMessage) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate message id: %w", err)
	}
	msg.ID = id

	q := `
	INSERT INTO lobby_messages (
		id, lobby_id, rule_id, user_id, guild_id, channel_id, message_id,
		completed, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, false, NOW())
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			msg.ID, msg.LobbyID, msg.RuleID,
			msg.UserID, msg.GuildID, msg.ChannelID, msg.MessageID,
		)
		return err
	})
}

// ReleaseLobbyMessage marks a ledger row completed. Rows are never deleted.
func ReleaseLobbyMessage(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE lobby_messages SET completed = true, updated_at = NOW() WHERE id = $1`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, id)
		return err
	})
}

// FetchIncompleteMessages returns every ledger row not yet completed, with
// the owning rule attached when there is one. Used at startup to rebuild the
// tracked-lobby table after a restart.
func FetchIncompleteMessages(ctx context.Context) ([]*models.LobbyMessage, error) {
	q := `
	SELECT m.id, m.lobby_id, m.rule_id, m.user_id, m.guild_id, m.channel_id, m.message_id,
	       m.completed, m.updated_at,
	       s.id, s.enabled, s.user_id, s.guild_id, s.channel_id,
	       s.map_name, s.is_map_name_partial, s.is_map_name_regex,
	       s.variant, s.region_id, s.time_delay, s.human_slots_min,
	       s.delete_message_started, s.delete_message_abandoned, s.show_leavers,
	       s.created_at
	FROM lobby_messages m
	LEFT JOIN lobby_subscriptions s ON s.id = m.rule_id
	WHERE m.completed = false
	`
	rows, err := DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.LobbyMessage
	for rows.Next() {
		var m models.LobbyMessage
		var subID *uuid.UUID
		var subEnabled *bool
		var subUserID, subGuildID, subChannelID, subMapName, subVariant *string
		var subPartial, subRegex, subDelStarted, subDelAbandoned, subShowLeavers *bool
		var subRegionID *models.Region
		var subTimeDelay, subHumanSlotsMin *int
		var subCreatedAt *time.Time
		err := rows.Scan(
			&m.ID, &m.LobbyID, &m.RuleID, &m.UserID, &m.GuildID, &m.ChannelID, &m.MessageID,
			&m.Completed, &m.UpdatedAt,
			&subID, &subEnabled, &subUserID, &subGuildID, &subChannelID,
			&subMapName, &subPartial, &subRegex,
			&subVariant, &subRegionID, &subTimeDelay, &subHumanSlotsMin,
			&subDelStarted, &subDelAbandoned, &subShowLeavers,
			&subCreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if subID != nil {
			m.Rule = &models.Subscription{
				ID:                     *subID,
				Enabled:                *subEnabled,
				UserID:                 *subUserID,
				GuildID:                *subGuildID,
				ChannelID:              *subChannelID,
				MapName:                *subMapName,
				IsMapNamePartial:       *subPartial,
				IsMapNameRegex:         *subRegex,
				Variant:                *subVariant,
				RegionID:               subRegionID,
				TimeDelay:              *subTimeDelay,
				HumanSlotsMin:          *subHumanSlotsMin,
				DeleteMessageStarted:   *subDelStarted,
				DeleteMessageAbandoned: *subDelAbandoned,
				ShowLeavers:            *subShowLeavers,
				CreatedAt:              *subCreatedAt,
			}
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
