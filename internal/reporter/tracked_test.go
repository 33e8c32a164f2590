package reporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sc2arcade/watcher/internal/models"
)

func TestUpdateInfoDiff(t *testing.T) {
	base := testLobby(1, models.LobbyOpen)

	clone := func() *models.GameLobby {
		c := *base
		c.Slots = append([]models.LobbySlot(nil), base.Slots...)
		return &c
	}

	t.Run("identical snapshot is not a change", func(t *testing.T) {
		tl := NewTrackedLobby(base)
		assert.False(t, tl.UpdateInfo(clone()))
	})

	t.Run("headcount change triggers a re-render", func(t *testing.T) {
		tl := NewTrackedLobby(base)
		fresh := clone()
		fresh.SlotsHumansTaken = 2
		assert.True(t, tl.UpdateInfo(fresh))
	})

	t.Run("status change triggers a re-render", func(t *testing.T) {
		tl := NewTrackedLobby(base)
		fresh := clone()
		fresh.Status = models.LobbyStarted
		assert.True(t, tl.UpdateInfo(fresh))
	})

	t.Run("slot occupant change triggers a re-render", func(t *testing.T) {
		tl := NewTrackedLobby(base)
		fresh := clone()
		fresh.Slots[1] = models.LobbySlot{SlotNumber: 2, Team: 1, Kind: models.SlotKindHuman, Name: "Joiner#5678"}
		assert.True(t, tl.UpdateInfo(fresh))
	})

	t.Run("fields outside the projection are ignored", func(t *testing.T) {
		tl := NewTrackedLobby(base)
		fresh := clone()
		fresh.MapIconHash = "different"
		now := time.Now()
		fresh.SnapshotUpdatedAt = &now
		assert.False(t, tl.UpdateInfo(fresh))
	})

	t.Run("snapshot is replaced even without a render change", func(t *testing.T) {
		tl := NewTrackedLobby(base)
		fresh := clone()
		now := time.Now()
		fresh.SnapshotUpdatedAt = &now
		tl.UpdateInfo(fresh)
		assert.Same(t, fresh, tl.Lobby())
	})
}

func TestClosedConcluded(t *testing.T) {
	grace := 30 * time.Second

	t.Run("open lobby never concludes", func(t *testing.T) {
		tl := NewTrackedLobby(testLobby(1, models.LobbyOpen))
		assert.False(t, tl.ClosedConcluded(grace))
	})

	t.Run("recently closed lobby is still in grace", func(t *testing.T) {
		lobby := testLobby(1, models.LobbyStarted)
		closed := time.Now().Add(-10 * time.Second)
		lobby.ClosedAt = &closed
		tl := NewTrackedLobby(lobby)
		assert.False(t, tl.ClosedConcluded(grace))
	})

	t.Run("closed past the grace period concludes", func(t *testing.T) {
		lobby := testLobby(1, models.LobbyStarted)
		closed := time.Now().Add(-31 * time.Second)
		lobby.ClosedAt = &closed
		tl := NewTrackedLobby(lobby)
		assert.True(t, tl.ClosedConcluded(grace))
	})

	t.Run("closed status without a timestamp stays in grace", func(t *testing.T) {
		lobby := testLobby(1, models.LobbyStarted)
		lobby.ClosedAt = nil
		tl := NewTrackedLobby(lobby)
		assert.False(t, tl.ClosedConcluded(grace))
	})
}
