package reporter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sc2arcade/watcher/internal/models"
)

const (
	defaultTickInterval   = time.Second
	defaultClosedGrace    = 30 * time.Second
	defaultRuleDisableAge = 10 * time.Minute
)

// ErrLobbyNotFound is returned by BindMessageWithLobby when the requested
// lobby does not exist.
var ErrLobbyNotFound = errors.New("lobby not found")

// Store is the persistence surface the reporter runs against.
type Store interface {
	FetchLobbiesByIDs(ctx context.Context, ids []int64) ([]*models.GameLobby, error)
	FetchLobbyFreshness(ctx context.Context, ids []int64) ([]models.LobbyFreshness, error)
	FetchOpenLobbiesExcluding(ctx context.Context, ids []int64) ([]*models.GameLobby, error)
	FetchEnabledSubscriptions(ctx context.Context) ([]*models.Subscription, error)
	DisableSubscription(ctx context.Context, id uuid.UUID) error
	InsertLobbyMessage(ctx context.Context, msg *models.LobbyMessage) error
	ReleaseLobbyMessage(ctx context.Context, id uuid.UUID) error
	FetchIncompleteMessages(ctx context.Context) ([]*models.LobbyMessage, error)
}

// Surface delivers notifications. Implementations classify every transport
// failure into a DeliveryError; an unclassified error is treated as
// transient.
type Surface interface {
	// ResolveDestination resolves a rule or message destination to a
	// concrete channel id (the DM channel for user destinations).
	ResolveDestination(ctx context.Context, dest models.Destination) (string, error)
	SendLobby(ctx context.Context, channelID string, lobby *models.GameLobby, rule *models.Subscription) (messageID string, err error)
	EditLobby(ctx context.Context, channelID, messageID string, lobby *models.GameLobby, rule *models.Subscription) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// LobbyEventType labels the lifecycle events published on the feed.
type LobbyEventType string

const (
	EventDiscovered LobbyEventType = "discovered"
	EventUpdated    LobbyEventType = "updated"
	EventClosed     LobbyEventType = "closed"
)

// LobbyEvent is one feed record emitted by the reporter.
type LobbyEvent struct {
	Type  LobbyEventType    `json:"type"`
	Lobby *models.GameLobby `json:"lobby"`
}

// Reporter maintains the in-memory tracking table and reconciles it against
// the database and the chat surface once per tick. The table itself is only
// grown and shrunk by the tick loop (and by explicit out-of-band binds);
// per-lobby delivery work fans out onto goroutines that touch only their own
// TrackedLobby.
type Reporter struct {
	store   Store
	surface Surface
	log     *logrus.Logger

	TickInterval   time.Duration
	ClosedGrace    time.Duration
	RuleDisableAge time.Duration

	// PublishFn, when set, receives lifecycle events for the live feed.
	// Publish failures are the publisher's problem; the reporter never
	// blocks on it.
	PublishFn func(ev LobbyEvent)

	mu             sync.Mutex
	trackedLobbies map[int64]*TrackedLobby
	trackRules     map[uuid.UUID]*models.Subscription
}

func New(store Store, surface Surface, log *logrus.Logger) *Reporter {
	return &Reporter{
		store:          store,
		surface:        surface,
		log:            log,
		TickInterval:   defaultTickInterval,
		ClosedGrace:    defaultClosedGrace,
		RuleDisableAge: defaultRuleDisableAge,
		trackedLobbies: make(map[int64]*TrackedLobby),
		trackRules:     make(map[uuid.UUID]*models.Subscription),
	}
}

// Load primes the reporter before the first tick: the rule cache from the
// subscription table and the tracking table from the unreleased ledger rows.
func (r *Reporter) Load(ctx context.Context) error {
	if err := r.ReloadSubscriptions(ctx); err != nil {
		return err
	}
	return r.Restore(ctx)
}

// ReloadSubscriptions replaces the in-memory rule cache with the currently
// enabled subscriptions.
func (r *Reporter) ReloadSubscriptions(ctx context.Context) error {
	rules, err := r.store.FetchEnabledSubscriptions(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trackRules = make(map[uuid.UUID]*models.Subscription, len(rules))
	for _, rule := range rules {
		r.trackRules[rule.ID] = rule
	}
	r.log.WithField("count", len(rules)).Info("loaded subscription rules")
	return nil
}

// AddRule inserts (or refreshes) a single rule in the cache without a full
// reload. Used when a subscription is created through the bot.
func (r *Reporter) AddRule(rule *models.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trackRules[rule.ID] = rule
}

// ForgetRule drops a rule from the cache. Pending candidates referencing it
// still fire once; disabling persists through the store separately.
func (r *Reporter) ForgetRule(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackRules, id)
}

// Restore rebuilds the tracking table from ledger rows that were never
// released, so messages posted before a restart keep receiving edits.
func (r *Reporter) Restore(ctx context.Context) error {
	msgs, err := r.store.FetchIncompleteMessages(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	idSet := make(map[int64]struct{}, len(msgs))
	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := idSet[m.LobbyID]; !ok {
			idSet[m.LobbyID] = struct{}{}
			ids = append(ids, m.LobbyID)
		}
	}
	lobbies, err := r.store.FetchLobbiesByIDs(ctx, ids)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range lobbies {
		r.trackedLobbies[l.ID] = NewTrackedLobby(l)
	}
	restored := 0
	for _, m := range msgs {
		tl, ok := r.trackedLobbies[m.LobbyID]
		if !ok {
			r.log.WithFields(logrus.Fields{"message_id": m.ID, "lobby_id": m.LobbyID}).
				Warn("ledger row references missing lobby, skipping")
			continue
		}
		tl.AddPosted(m)
		restored++
	}
	r.log.WithFields(logrus.Fields{"messages": restored, "lobbies": len(lobbies)}).
		Info("restored tracked lobbies from message ledger")
	return nil
}

// Run executes the tick loop until ctx is cancelled. Phase errors are logged
// and the loop continues; only cancellation stops it.
func (r *Reporter) Run(ctx context.Context) error {
	for {
		if err := r.updateTrackedLobbies(ctx); err != nil {
			r.log.WithError(err).Error("update phase failed")
		}
		if err := r.discoverNewLobbies(ctx); err != nil {
			r.log.WithError(err).Error("discovery phase failed")
		}
		r.evaluateCandidates(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.TickInterval):
		}
	}
}

// TrackedCount returns the current size of the tracking table.
func (r *Reporter) TrackedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackedLobbies)
}

func (r *Reporter) tracked(id int64) *TrackedLobby {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trackedLobbies[id]
}

func (r *Reporter) publish(ev LobbyEvent) {
	if r.PublishFn != nil {
		r.PublishFn(ev)
	}
}

// updateTrackedLobbies refreshes the snapshots of relevant tracked lobbies
// (those with posted messages or pending candidates), re-renders messages
// whose content changed, and evicts lobbies that left the open status.
func (r *Reporter) updateTrackedLobbies(ctx context.Context) error {
	r.mu.Lock()
	relevant := make([]*TrackedLobby, 0, len(r.trackedLobbies))
	for _, tl := range r.trackedLobbies {
		if tl.PostedCount() > 0 || tl.CandidateCount() > 0 {
			relevant = append(relevant, tl)
		}
	}
	r.mu.Unlock()
	if len(relevant) == 0 {
		return nil
	}

	ids := make([]int64, len(relevant))
	byID := make(map[int64]*TrackedLobby, len(relevant))
	for i, tl := range relevant {
		l := tl.Lobby()
		ids[i] = l.ID
		byID[l.ID] = tl
	}

	probes, err := r.store.FetchLobbyFreshness(ctx, ids)
	if err != nil {
		return err
	}
	outdated := make(map[int64]struct{})
	for _, p := range probes {
		l := byID[p.ID].Lobby()
		if l.Status != p.Status ||
			!timePtrEqual(l.SnapshotUpdatedAt, p.SnapshotUpdatedAt) ||
			!timePtrEqual(l.SlotsUpdatedAt, p.SlotsUpdatedAt) {
			outdated[p.ID] = struct{}{}
		}
	}
	// closed lobbies sitting out the grace period need a pass even when
	// nothing changed, so their messages get deleted on time
	for _, tl := range relevant {
		if tl.PostedCount() > 0 && tl.ClosedConcluded(r.ClosedGrace) {
			outdated[tl.Lobby().ID] = struct{}{}
		}
	}
	if len(outdated) == 0 {
		return nil
	}

	fetchIDs := make([]int64, 0, len(outdated))
	for id := range outdated {
		fetchIDs = append(fetchIDs, id)
	}
	fresh, err := r.store.FetchLobbiesByIDs(ctx, fetchIDs)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	var evictMu sync.Mutex
	var evict []int64
	for _, lobbyInfo := range fresh {
		tl := byID[lobbyInfo.ID]
		if tl == nil {
			continue
		}
		wg.Add(1)
		go func(lobbyInfo *models.GameLobby, tl *TrackedLobby) {
			defer wg.Done()
			needsUpdate := tl.UpdateInfo(lobbyInfo)
			if tl.PostedCount() > 0 && (needsUpdate || tl.ClosedConcluded(r.ClosedGrace)) {
				r.updateLobbyMessages(ctx, tl)
				if tl.PostedCount() == 0 {
					r.log.WithFields(logrus.Fields{
						"lobby":      lobbyInfo.Handle(),
						"candidates": tl.CandidateCount(),
					}).Debug("stopped tracking lobby")
				}
			}
			if needsUpdate {
				if lobbyInfo.Status == models.LobbyOpen {
					r.publish(LobbyEvent{Type: EventUpdated, Lobby: lobbyInfo})
				} else {
					r.publish(LobbyEvent{Type: EventClosed, Lobby: lobbyInfo})
				}
			}
			if lobbyInfo.Status != models.LobbyOpen {
				evictMu.Lock()
				evict = append(evict, lobbyInfo.ID)
				evictMu.Unlock()
			}
		}(lobbyInfo, tl)
	}
	wg.Wait()

	// map mutations happen here, after fan-in, never inside the workers
	r.mu.Lock()
	for _, id := range evict {
		delete(r.trackedLobbies, id)
	}
	r.mu.Unlock()
	return nil
}

// discoverNewLobbies pulls open lobbies not yet in the table, registers them
// and seeds their candidate sets from the rule cache.
func (r *Reporter) discoverNewLobbies(ctx context.Context) error {
	r.mu.Lock()
	known := make([]int64, 0, len(r.trackedLobbies))
	for id := range r.trackedLobbies {
		known = append(known, id)
	}
	rules := make([]*models.Subscription, 0, len(r.trackRules))
	for _, rule := range r.trackRules {
		rules = append(rules, rule)
	}
	r.mu.Unlock()

	newLobbies, err := r.store.FetchOpenLobbiesExcluding(ctx, known)
	if err != nil {
		return err
	}

	for _, l := range newLobbies {
		r.mu.Lock()
		if _, ok := r.trackedLobbies[l.ID]; ok {
			r.mu.Unlock()
			continue
		}
		tl := NewTrackedLobby(l)
		r.trackedLobbies[l.ID] = tl
		r.mu.Unlock()

		for _, rule := range rules {
			if RuleMatches(rule, l) {
				tl.AddCandidate(rule)
			}
		}
		if n := tl.CandidateCount(); n > 0 {
			r.log.WithFields(logrus.Fields{
				"lobby": l.Handle(),
				"map":   l.MapName,
				"rules": n,
			}).Info("new lobby matched subscription rules")
		}
		r.publish(LobbyEvent{Type: EventDiscovered, Lobby: l})
	}
	return nil
}

// evaluateCandidates walks every pending candidate and posts the ones whose
// gates are met. A candidate is only kept for retry when posting explicitly
// reports it unhandled.
func (r *Reporter) evaluateCandidates(ctx context.Context) {
	r.mu.Lock()
	pending := make([]*TrackedLobby, 0, len(r.trackedLobbies))
	for _, tl := range r.trackedLobbies {
		if tl.CandidateCount() > 0 {
			pending = append(pending, tl)
		}
	}
	r.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, tl := range pending {
		wg.Add(1)
		go func(tl *TrackedLobby) {
			defer wg.Done()
			for _, rule := range tl.Candidates() {
				lobby := tl.Lobby()
				elapsed := time.Since(lobby.CreatedAt).Seconds()
				humans := len(lobby.GetSlots(models.SlotKindHuman))
				// held back only when both configured gates are unmet;
				// a single unmet gate does not delay the post
				if (rule.TimeDelay > 0 && float64(rule.TimeDelay) > elapsed) &&
					(rule.HumanSlotsMin > 0 && rule.HumanSlotsMin > humans) {
					continue
				}
				if r.postSubscribedLobby(ctx, tl, rule) {
					tl.RemoveCandidate(rule.ID)
				}
			}
		}(tl)
	}
	wg.Wait()
}

// postSubscribedLobby resolves the rule's destination and posts. It returns
// true when the candidate is consumed (posted, dropped, or the rule
// disabled) and false when it should be retried next tick.
func (r *Reporter) postSubscribedLobby(ctx context.Context, tl *TrackedLobby, rule *models.Subscription) bool {
	channelID, err := r.surface.ResolveDestination(ctx, rule.Destination())
	if err != nil {
		if destinationGone(err) {
			r.log.WithFields(logrus.Fields{"rule": rule.ID, "kind": KindOf(err)}).
				Warn("subscription destination unresolvable, disabling rule")
			r.disableRule(ctx, rule)
			return true
		}
		r.log.WithError(err).WithField("rule", rule.ID).Warn("destination resolution failed")
		return false
	}
	return r.postTrackedLobby(ctx, channelID, tl, rule)
}

// postTrackedLobby sends the notification and records it in the ledger.
func (r *Reporter) postTrackedLobby(ctx context.Context, channelID string, tl *TrackedLobby, rule *models.Subscription) bool {
	lobby := tl.Lobby()
	messageID, err := r.surface.SendLobby(ctx, channelID, lobby, rule)
	if err != nil {
		kind := KindOf(err)
		if rule != nil && (kind == KindMissingPermission || kind == KindMissingAccess) {
			r.log.WithError(err).WithFields(logrus.Fields{"lobby_id": lobby.ID, "rule": rule.ID}).
				Error("failed to send lobby message")
			if time.Since(rule.CreatedAt) >= r.RuleDisableAge {
				r.disableRule(ctx, rule)
				return true
			}
			// freshly created rules get a retry window: the bot may
			// still be mid-setup in that guild
			return false
		}
		r.log.WithError(err).WithField("lobby_id", lobby.ID).Error("failed to send lobby message")
		return true
	}

	msg := &models.LobbyMessage{
		LobbyID:   lobby.ID,
		ChannelID: channelID,
		MessageID: messageID,
		Rule:      rule,
	}
	if rule != nil {
		msg.RuleID = &rule.ID
		msg.UserID = rule.UserID
		msg.GuildID = rule.GuildID
	}
	if err := r.store.InsertLobbyMessage(ctx, msg); err != nil {
		r.log.WithError(err).WithField("lobby_id", lobby.ID).Error("failed to record lobby message")
		return true
	}
	tl.AddPosted(msg)
	return true
}

// BindMessageWithLobby registers an already-sent message (e.g. a bot command
// reply) for live tracking, inserting a ledger row with no owning rule. The
// message immediately receives its first edit.
func (r *Reporter) BindMessageWithLobby(ctx context.Context, dest models.Destination, messageID string, lobbyID int64) (*TrackedLobby, error) {
	tl := r.tracked(lobbyID)
	if tl == nil {
		lobbies, err := r.store.FetchLobbiesByIDs(ctx, []int64{lobbyID})
		if err != nil {
			return nil, err
		}
		if len(lobbies) == 0 {
			return nil, ErrLobbyNotFound
		}
		r.mu.Lock()
		if existing := r.trackedLobbies[lobbyID]; existing != nil {
			tl = existing
		} else {
			tl = NewTrackedLobby(lobbies[0])
			r.trackedLobbies[lobbyID] = tl
		}
		r.mu.Unlock()
	}

	msg := &models.LobbyMessage{
		LobbyID:   lobbyID,
		UserID:    dest.UserID,
		GuildID:   dest.GuildID,
		ChannelID: dest.ChannelID,
		MessageID: messageID,
	}
	if err := r.store.InsertLobbyMessage(ctx, msg); err != nil {
		return nil, err
	}
	tl.AddPosted(msg)
	r.editLobbyMessage(ctx, tl, msg)
	return tl, nil
}

// updateLobbyMessages re-renders every posted message of a tracked lobby.
func (r *Reporter) updateLobbyMessages(ctx context.Context, tl *TrackedLobby) {
	msgs := tl.PostedMessages()
	if len(msgs) == 1 {
		r.editLobbyMessage(ctx, tl, msgs[0])
		return
	}
	var wg sync.WaitGroup
	for _, m := range msgs {
		wg.Add(1)
		go func(m *models.LobbyMessage) {
			defer wg.Done()
			r.editLobbyMessage(ctx, tl, m)
		}(m)
	}
	wg.Wait()
}

// editLobbyMessage pushes the current snapshot into one posted message and
// applies the retirement policy: delete after the grace period when the
// owning rule asks for it, otherwise release once the lobby is no longer
// open.
func (r *Reporter) editLobbyMessage(ctx context.Context, tl *TrackedLobby, msg *models.LobbyMessage) {
	channelID, err := r.surface.ResolveDestination(ctx, msg.Destination())
	if err != nil {
		if destinationGone(err) {
			r.releaseLobbyMessage(ctx, tl, msg)
			return
		}
		r.log.WithError(err).WithField("message_id", msg.MessageID).Warn("destination resolution failed")
		return
	}

	lobby := tl.Lobby()
	if err := r.surface.EditLobby(ctx, channelID, msg.MessageID, lobby, msg.Rule); err != nil {
		switch KindOf(err) {
		case KindUnknownMessage, KindMissingAccess:
			r.releaseLobbyMessage(ctx, tl, msg)
		default:
			r.log.WithError(err).WithFields(logrus.Fields{
				"lobby_id":   lobby.ID,
				"message_id": msg.MessageID,
			}).Error("failed to update lobby message")
		}
		return
	}

	wantDelete := msg.Rule != nil &&
		((lobby.Status == models.LobbyStarted && msg.Rule.DeleteMessageStarted) ||
			(lobby.Status == models.LobbyAbandoned && msg.Rule.DeleteMessageAbandoned) ||
			(lobby.Status == models.LobbyUnknown && msg.Rule.DeleteMessageAbandoned))
	if wantDelete {
		if !tl.ClosedConcluded(r.ClosedGrace) {
			return
		}
		if err := r.surface.DeleteMessage(ctx, channelID, msg.MessageID); err != nil {
			if KindOf(err) == KindUnknownMessage {
				r.releaseLobbyMessage(ctx, tl, msg)
				return
			}
			r.log.WithError(err).WithField("message_id", msg.MessageID).Error("failed to delete lobby message")
			return
		}
		r.releaseLobbyMessage(ctx, tl, msg)
		return
	}
	if lobby.Status != models.LobbyOpen {
		r.releaseLobbyMessage(ctx, tl, msg)
	}
}

// releaseLobbyMessage marks the ledger row completed and forgets the message.
func (r *Reporter) releaseLobbyMessage(ctx context.Context, tl *TrackedLobby, msg *models.LobbyMessage) {
	if err := r.store.ReleaseLobbyMessage(ctx, msg.ID); err != nil {
		r.log.WithError(err).WithField("message_id", msg.ID).Error("failed to release lobby message")
		return
	}
	tl.RemovePosted(msg.ID)
}

// disableRule persists enabled=false and drops the rule from the cache.
func (r *Reporter) disableRule(ctx context.Context, rule *models.Subscription) {
	if err := r.store.DisableSubscription(ctx, rule.ID); err != nil {
		r.log.WithError(err).WithField("rule", rule.ID).Error("failed to disable subscription")
		return
	}
	r.ForgetRule(rule.ID)
	r.log.WithField("rule", rule.ID).Info("subscription disabled")
}
