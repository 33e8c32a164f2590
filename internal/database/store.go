package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/sc2arcade/watcher/internal/models"
)

// Store adapts the package-level query functions to a value that can be
// handed to consumers expecting an interface. All methods run against the
// global pool.
type Store struct{}

func (Store) FetchLobbiesByIDs(ctx context.Context, ids []int64) ([]*models.GameLobby, error) {
	return FetchLobbiesByIDs(ctx, ids)
}

func (Store) FetchLobbyFreshness(ctx context.Context, ids []int64) ([]models.LobbyFreshness, error) {
	return FetchLobbyFreshness(ctx, ids)
}

func (Store) FetchOpenLobbiesExcluding(ctx context.Context, ids []int64) ([]*models.GameLobby, error) {
	return FetchOpenLobbiesExcluding(ctx, ids)
}

func (Store) FetchEnabledSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	return FetchEnabledSubscriptions(ctx)
}

func (Store) DisableSubscription(ctx context.Context, id uuid.UUID) error {
	return DisableSubscription(ctx, id)
}

func (Store) InsertLobbyMessage(ctx context.Context, msg *models.LobbyMessage) error {
	return InsertLobbyMessage(ctx, msg)
}

func (Store) ReleaseLobbyMessage(ctx context.Context, id uuid.UUID) error {
	return ReleaseLobbyMessage(ctx, id)
}

func (Store) FetchIncompleteMessages(ctx context.Context) ([]*models.LobbyMessage, error) {
	return FetchIncompleteMessages(ctx)
}
