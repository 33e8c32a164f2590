package reporter

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sc2arcade/watcher/internal/models"
)

// TrackedLobby is one row of the in-memory tracking table: the latest lobby
// snapshot plus the candidate rules waiting to fire and the messages already
// posted for it. The snapshot pointer is replaced wholesale on refresh, never
// mutated in place, so readers holding a snapshot stay consistent.
type TrackedLobby struct {
	mu         sync.Mutex
	lobby      *models.GameLobby
	candidates map[uuid.UUID]*models.Subscription
	posted     map[uuid.UUID]*models.LobbyMessage
}

func NewTrackedLobby(lobby *models.GameLobby) *TrackedLobby {
	return &TrackedLobby{
		lobby:      lobby,
		candidates: make(map[uuid.UUID]*models.Subscription),
		posted:     make(map[uuid.UUID]*models.LobbyMessage),
	}
}

// Lobby returns the current snapshot.
func (t *TrackedLobby) Lobby() *models.GameLobby {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lobby
}

// UpdateInfo replaces the snapshot and reports whether any field that affects
// the rendered notification changed. The comparison is a fixed projection;
// fields outside it (map metadata, bucket ids) never trigger a re-render.
func (t *TrackedLobby) UpdateInfo(fresh *models.GameLobby) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.lobby
	t.lobby = fresh
	if !prev.CreatedAt.Equal(fresh.CreatedAt) {
		return true
	}
	if !timePtrEqual(prev.ClosedAt, fresh.ClosedAt) {
		return true
	}
	if prev.Status != fresh.Status ||
		prev.LobbyTitle != fresh.LobbyTitle ||
		prev.HostName != fresh.HostName ||
		prev.SlotsHumansTaken != fresh.SlotsHumansTaken ||
		prev.SlotsHumansTotal != fresh.SlotsHumansTotal {
		return true
	}
	return !slotsEqual(prev.Slots, fresh.Slots)
}

// ClosedConcluded reports whether the lobby left the open status at least
// grace ago. A closed lobby is kept around for the grace period so messages
// get one final render before retirement.
func (t *TrackedLobby) ClosedConcluded(grace time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.lobby
	if l.Status == models.LobbyOpen || l.ClosedAt == nil {
		return false
	}
	return time.Since(*l.ClosedAt) >= grace
}

func (t *TrackedLobby) AddCandidate(rule *models.Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.candidates[rule.ID] = rule
}

func (t *TrackedLobby) RemoveCandidate(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.candidates, id)
}

// Candidates returns a point-in-time copy of the pending candidate rules.
func (t *TrackedLobby) Candidates() []*models.Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*models.Subscription, 0, len(t.candidates))
	for _, r := range t.candidates {
		out = append(out, r)
	}
	return out
}

func (t *TrackedLobby) CandidateCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.candidates)
}

func (t *TrackedLobby) AddPosted(msg *models.LobbyMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.posted[msg.ID] = msg
}

func (t *TrackedLobby) RemovePosted(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.posted, id)
}

// PostedMessages returns a point-in-time copy of the live posted messages.
func (t *TrackedLobby) PostedMessages() []*models.LobbyMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*models.LobbyMessage, 0, len(t.posted))
	for _, m := range t.posted {
		out = append(out, m)
	}
	return out
}

func (t *TrackedLobby) PostedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.posted)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func slotsEqual(a, b []models.LobbySlot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].SlotNumber != b[i].SlotNumber ||
			a[i].Team != b[i].Team ||
			a[i].Kind != b[i].Kind ||
			a[i].Name != b[i].Name {
			return false
		}
		if !timePtrEqual(a[i].JoinedAt, b[i].JoinedAt) {
			return false
		}
		if !profilePtrEqual(a[i].Profile, b[i].Profile) {
			return false
		}
	}
	return true
}

func profilePtrEqual(a, b *models.Profile) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
