package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sc2arcade/watcher/internal/models"
)

const subscriptionColumns = `
	id, enabled, user_id, guild_id, channel_id,
	map_name, is_map_name_partial, is_map_name_regex,
	variant, region_id, time_delay, human_slots_min,
	delete_message_started, delete_message_abandoned, show_leavers,
	created_at
`

func scanSubscription(row interface{ Scan(dest ...any) error }) (*models.Subscription, error) {
	var s models.Subscription
	err := row.Scan(
		&s.ID, &s.Enabled, &s.UserID, &s.GuildID, &s.ChannelID,
		&s.MapName, &s.IsMapNamePartial, &s.IsMapNameRegex,
		&s.Variant, &s.RegionID, &s.TimeDelay, &s.HumanSlotsMin,
		&s.DeleteMessageStarted, &s.DeleteMessageAbandoned, &s.ShowLeavers,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FetchEnabledSubscriptions returns every enabled rule.
func FetchEnabledSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM lobby_subscriptions WHERE enabled = true`
	rows, err := DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// ListSubscriptionsForGuild returns the enabled rules bound to a guild.
func ListSubscriptionsForGuild(ctx context.Context, guildID string) ([]*models.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM lobby_subscriptions WHERE enabled = true AND guild_id = $1 ORDER BY created_at`
	rows, err := DB.Query(ctx, q, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// ListSubscriptionsForUser returns the enabled rules delivering to a user DM.
func ListSubscriptionsForUser(ctx context.Context, userID string) ([]*models.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM lobby_subscriptions WHERE enabled = true AND user_id = $1 ORDER BY created_at`
	rows, err := DB.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// InsertSubscription creates a new rule row. The id is assigned here.
func InsertSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub.Destination().Kind() == models.DestinationInvalid {
		return models.ErrInvalidDestination
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate subscription id: %w", err)
	}
	sub.ID = id

	q := `
	INSERT INTO lobby_subscriptions (
		id, enabled, user_id, guild_id, channel_id,
		map_name, is_map_name_partial, is_map_name_regex,
		variant, region_id, time_delay, human_slots_min,
		delete_message_started, delete_message_abandoned, show_leavers,
		created_at
	)
	VALUES ($1, $2, $3, $4, $5,
	        $6, $7, $8,
	        $9, $10, $11, $12,
	        $13, $14, $15,
	        NOW())
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			sub.ID, sub.Enabled, sub.UserID, sub.GuildID, sub.ChannelID,
			sub.MapName, sub.IsMapNamePartial, sub.IsMapNameRegex,
			sub.Variant, sub.RegionID, sub.TimeDelay, sub.HumanSlotsMin,
			sub.DeleteMessageStarted, sub.DeleteMessageAbandoned, sub.ShowLeavers,
		)
		return err
	})
}

// DisableSubscription permanently disables a rule.
func DisableSubscription(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE lobby_subscriptions SET enabled = false WHERE id = $1`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, id)
		return err
	})
}
