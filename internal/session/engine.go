// internal/session/engine.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/ai"
	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/keremzytn/NumberFightAI/internal/models"
	"github.com/sirupsen/logrus"
)

// MaxChatLength caps a chat message, counted in runes.
const MaxChatLength = 200

var (
	ErrNoHumanParticipant = errors.New("a match needs at least one human participant")
	ErrSamePlayer         = errors.New("a player cannot occupy both slots")
	ErrEngineClosed       = errors.New("session engine is closed")
	ErrEmptyChat          = errors.New("chat message is empty")
	ErrChatTooLong        = fmt.Errorf("chat message exceeds %d characters", MaxChatLength)

	// errNoChange aborts a transition that would not change anything.
	errNoChange = errors.New("no change")
)

// Config holds the engine's timing knobs.
type Config struct {
	// ReconnectGrace is how long a disconnected human may stay away before the match is abandoned.
	ReconnectGrace time.Duration
	// Retention keeps a completed match readable before it is evicted.
	Retention time.Duration
	// PersistTimeout bounds a single summary write.
	PersistTimeout time.Duration
	// SubscriberBuffer is the per-subscription event queue size.
	SubscriberBuffer int
	// Now overrides the clock in tests.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.ReconnectGrace <= 0 {
		c.ReconnectGrace = 60 * time.Second
	}
	if c.Retention <= 0 {
		c.Retention = 2 * time.Minute
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 10 * time.Second
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = DefaultSubscriberBuffer
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// MoveResult reports what a submitted move did.
type MoveResult struct {
	Round    int               `json:"round"`
	Resolved *game.RoundRecord `json:"resolved,omitempty"` // nil while waiting for the opponent
	View     game.SlotView     `json:"state"`
}

type matchTimers struct {
	grace [2]*time.Timer
	evict *time.Timer
}

// Engine runs live matches: it serializes moves per match through the store,
// drives AI opponents, emits events and hands finished matches to the sink.
type Engine struct {
	store  *game.MatchStore
	picker *ai.Picker
	sink   SummarySink
	log    logrus.FieldLogger
	cfg    Config

	mu        sync.Mutex
	subs      map[uuid.UUID]map[*Subscription]struct{}
	observers []Observer
	timers    map[uuid.UUID]*matchTimers
	closed    bool

	persisting sync.WaitGroup
}

func NewEngine(store *game.MatchStore, picker *ai.Picker, sink SummarySink, logger logrus.FieldLogger, cfg Config) *Engine {
	if sink == nil {
		sink = LogSink{Log: logger}
	}
	if picker == nil {
		picker = ai.NewPicker(0)
	}
	return &Engine{
		store:  store,
		picker: picker,
		sink:   sink,
		log:    logger,
		cfg:    cfg.withDefaults(),
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		timers: make(map[uuid.UUID]*matchTimers),
	}
}

func (e *Engine) now() time.Time {
	return e.cfg.Now()
}

// emitter returns a commit hook that stamps and delivers the given events.
func (e *Engine) emitter(events *[]Event) game.CommitFunc {
	return func(committed game.MatchState) {
		at := e.now()
		for i := range *events {
			(*events)[i].Version = committed.Version
			(*events)[i].At = at
		}
		e.deliver(*events)
	}
}

// CreateMatch binds two participants into a new match. At least one must be human.
func (e *Engine) CreateMatch(a, b game.Identity) (game.MatchState, error) {
	if e.isClosed() {
		return game.MatchState{}, ErrEngineClosed
	}
	if a.IsAI() && b.IsAI() {
		return game.MatchState{}, ErrNoHumanParticipant
	}
	if a.PlayerID == b.PlayerID {
		return game.MatchState{}, ErrSamePlayer
	}
	for _, id := range []game.Identity{a, b} {
		if id.IsAI() {
			if _, err := game.ParseDifficulty(string(id.AI)); err != nil {
				return game.MatchState{}, err
			}
		}
	}

	state := game.NewMatchState(uuid.New(), a, b, e.now())
	if err := e.store.Create(state); err != nil {
		return game.MatchState{}, fmt.Errorf("create match: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"match_id": state.ID,
		"slot_a":   a.PlayerID,
		"slot_b":   b.PlayerID,
		"vs_ai":    a.IsAI() || b.IsAI(),
	}).Info("match created")

	ev := matchStartedEvent(state)
	ev.At = state.CreatedAt
	e.deliver([]Event{ev})
	return state, nil
}

// SubmitMove plays a card for the caller in the current round.
func (e *Engine) SubmitMove(matchID, playerID uuid.UUID, card game.Card) (MoveResult, error) {
	return e.SubmitMoveAt(matchID, playerID, 0, card)
}

// SubmitMoveAt is SubmitMove with the round the client believes it is playing.
// A non-zero round that is not the current one is rejected as stale.
func (e *Engine) SubmitMoveAt(matchID, playerID uuid.UUID, round int, card game.Card) (MoveResult, error) {
	var (
		slot   game.SlotID
		result MoveResult
		events []Event
	)

	committed, err := e.store.Mutate(matchID, func(s game.MatchState) (game.MatchState, error) {
		var ok bool
		slot, ok = s.SlotOf(playerID)
		if !ok || s.Slots[slot].IsAI() {
			return s, &game.NotParticipantError{MatchID: matchID, PlayerID: playerID}
		}
		if s.Phase.Terminal() {
			return s, game.ErrMatchNotActive
		}
		if round != 0 && round != s.CurrentRound {
			return s, &game.StaleRoundError{Round: round, Current: s.CurrentRound}
		}
		if s.Pending[slot] != 0 {
			return s, &game.AlreadySubmittedError{Slot: slot, Round: s.CurrentRound}
		}
		if err := game.ValidateMove(s, slot, card); err != nil {
			return s, err
		}

		result.Round = s.CurrentRound
		s.Pending[slot] = card
		events = append(events, moveCommittedEvent(s.ID, s.CurrentRound, slot))

		other := slot.Other()
		if s.Pending[other] == 0 && s.Slots[other].IsAI() {
			c, err := e.picker.Select(s.Slots[other].AI, s.ViewFor(other))
			if err != nil {
				return s, fmt.Errorf("ai move: %w", err)
			}
			s.Pending[other] = c
			events = append(events, moveCommittedEvent(s.ID, s.CurrentRound, other))
		}

		if s.Pending[game.SlotA] == 0 || s.Pending[game.SlotB] == 0 {
			return s, nil
		}

		s.Phase = game.PhaseResolving
		next, rec, err := game.ResolveRound(s, s.Pending[game.SlotA], s.Pending[game.SlotB])
		if err != nil {
			return s, err
		}
		game.Complete(&next, e.now())
		result.Resolved = &rec
		events = append(events, roundResolvedEvent(s.ID, rec))
		if next.Phase == game.PhaseComplete {
			events = append(events, matchCompleteEvent(next))
		}
		return next, nil
	}, e.emitter(&events))

	if err != nil {
		e.logFailure(err, logrus.Fields{"match_id": matchID, "player_id": playerID, "card": card})
		return MoveResult{}, err
	}

	result.View = committed.ViewFor(slot)
	if committed.Phase == game.PhaseComplete {
		e.finish(committed, models.OutcomeComplete)
	}
	return result, nil
}

// GetState returns the caller's view of a match.
func (e *Engine) GetState(matchID, playerID uuid.UUID) (game.SlotView, error) {
	s, err := e.store.Get(matchID)
	if err != nil {
		return game.SlotView{}, err
	}
	slot, ok := s.SlotOf(playerID)
	if !ok {
		return game.SlotView{}, &game.NotParticipantError{MatchID: matchID, PlayerID: playerID}
	}
	return s.ViewFor(slot), nil
}

// ActiveMatch returns the newest unfinished match the player is part of.
func (e *Engine) ActiveMatch(playerID uuid.UUID) (game.MatchState, bool) {
	s, ok := e.store.FindByPlayer(playerID)
	if !ok || s.Phase.Terminal() {
		return game.MatchState{}, false
	}
	return s, true
}

// Match returns a copy of the full state, pending cards included. It is for
// server-side collaborators such as round timers and must never reach a client.
func (e *Engine) Match(matchID uuid.UUID) (game.MatchState, error) {
	return e.store.Get(matchID)
}

// HandleDisconnect marks the player's slot disconnected and starts the
// reconnect grace timer. The match state is kept as is.
func (e *Engine) HandleDisconnect(matchID, playerID uuid.UUID) error {
	var (
		slot   game.SlotID
		events []Event
	)
	_, err := e.store.Mutate(matchID, func(s game.MatchState) (game.MatchState, error) {
		var ok bool
		if slot, ok = s.SlotOf(playerID); !ok {
			return s, &game.NotParticipantError{MatchID: matchID, PlayerID: playerID}
		}
		if s.Phase.Terminal() || !s.Slots[slot].Connected {
			return s, errNoChange
		}
		s.Slots[slot].Connected = false
		events = append(events, Event{Type: EventOpponentDisconnected, MatchID: s.ID, Round: s.CurrentRound, Slot: slotPtr(slot)})
		return s, nil
	}, e.emitter(&events))
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{"match_id": matchID, "player_id": playerID, "grace": e.cfg.ReconnectGrace}).Info("player disconnected")
	e.armGrace(matchID, slot)
	return nil
}

// HandleReconnect marks the player connected again, cancels the grace timer
// and returns the authoritative view so the client can resume.
func (e *Engine) HandleReconnect(matchID, playerID uuid.UUID) (game.SlotView, error) {
	var (
		slot   game.SlotID
		events []Event
	)
	committed, err := e.store.Mutate(matchID, func(s game.MatchState) (game.MatchState, error) {
		var ok bool
		if slot, ok = s.SlotOf(playerID); !ok {
			return s, &game.NotParticipantError{MatchID: matchID, PlayerID: playerID}
		}
		if s.Slots[slot].Connected {
			return s, errNoChange
		}
		s.Slots[slot].Connected = true
		events = append(events, Event{Type: EventOpponentReconnected, MatchID: s.ID, Round: s.CurrentRound, Slot: slotPtr(slot)})
		return s, nil
	}, e.emitter(&events))

	if errors.Is(err, errNoChange) {
		return e.GetState(matchID, playerID)
	}
	if err != nil {
		return game.SlotView{}, err
	}

	e.disarmGrace(matchID, slot)
	e.log.WithFields(logrus.Fields{"match_id": matchID, "player_id": playerID}).Info("player reconnected")
	return committed.ViewFor(slot), nil
}

// Abandon ends a match without a result and evicts it immediately.
func (e *Engine) Abandon(matchID uuid.UUID) error {
	return e.abandon(matchID, "abandoned", func(game.MatchState) (*game.SlotID, error) {
		return nil, nil
	})
}

// Leave forfeits the match for the calling human. The match ends abandoned and
// the event names the slot that left.
func (e *Engine) Leave(matchID, playerID uuid.UUID) error {
	var leaver game.SlotID
	err := e.abandon(matchID, "", func(s game.MatchState) (*game.SlotID, error) {
		slot, ok := s.SlotOf(playerID)
		if !ok || s.Slots[slot].IsAI() {
			return nil, &game.NotParticipantError{MatchID: matchID, PlayerID: playerID}
		}
		leaver = slot
		return slotPtr(slot), nil
	})
	if err != nil {
		e.logFailure(err, logrus.Fields{"match_id": matchID, "player_id": playerID})
		return err
	}
	e.log.WithFields(logrus.Fields{"match_id": matchID, "player_id": playerID, "slot": leaver}).Info("player left match")
	return nil
}

// abandonAway ends the match when slot is still disconnected.
func (e *Engine) abandonAway(matchID uuid.UUID, slot game.SlotID) error {
	return e.abandon(matchID, "reconnect grace expired", func(s game.MatchState) (*game.SlotID, error) {
		if s.Slots[slot].Connected {
			return nil, errNoChange
		}
		return slotPtr(slot), nil
	})
}

// abandon terminates the match. subject decides, under the match lock, which
// slot caused it (nil for none) or vetoes the transition. An empty reason is
// derived from the subject slot.
func (e *Engine) abandon(matchID uuid.UUID, reason string, subject func(game.MatchState) (*game.SlotID, error)) error {
	var events []Event
	committed, err := e.store.Mutate(matchID, func(s game.MatchState) (game.MatchState, error) {
		if s.Phase.Terminal() {
			return s, game.ErrMatchNotActive
		}
		slot, err := subject(s)
		if err != nil {
			return s, err
		}
		if reason == "" && slot != nil {
			reason = fmt.Sprintf("slot %s left the match", *slot)
		}
		s.Phase = game.PhaseAbandoned
		s.Pending = [2]game.Card{}
		s.CompletedAt = e.now()
		events = append(events, Event{Type: EventMatchAbandoned, MatchID: s.ID, Round: s.CurrentRound, Slot: slot, Reason: reason})
		return s, nil
	}, e.emitter(&events))
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{"match_id": matchID, "reason": reason, "round": committed.CurrentRound}).Warn("match abandoned")
	e.finish(committed, models.OutcomeAbandoned)
	return nil
}

// SendChat relays a message from a participant to everyone watching the match.
// Chat does not touch match state, so it is allowed until the match is evicted.
func (e *Engine) SendChat(matchID, playerID uuid.UUID, text string) (Event, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return Event{}, ErrEmptyChat
	case utf8.RuneCountInString(text) > MaxChatLength:
		return Event{}, ErrChatTooLong
	}

	s, err := e.store.Get(matchID)
	if err != nil {
		return Event{}, err
	}
	slot, ok := s.SlotOf(playerID)
	if !ok || s.Slots[slot].IsAI() {
		return Event{}, &game.NotParticipantError{MatchID: matchID, PlayerID: playerID}
	}

	ev := Event{
		Type:    EventChatMessage,
		MatchID: matchID,
		Round:   s.CurrentRound,
		Slot:    slotPtr(slot),
		Message: text,
		Version: s.Version,
		At:      e.now(),
	}
	e.deliver([]Event{ev})
	return ev, nil
}

// Subscribe registers a connection for a participant's match events.
func (e *Engine) Subscribe(matchID, playerID uuid.UUID) (*Subscription, error) {
	s, err := e.store.Get(matchID)
	if err != nil {
		return nil, err
	}
	slot, ok := s.SlotOf(playerID)
	if !ok {
		return nil, &game.NotParticipantError{MatchID: matchID, PlayerID: playerID}
	}

	ch := make(chan Event, e.cfg.SubscriberBuffer)
	sub := &Subscription{MatchID: matchID, PlayerID: playerID, Slot: slot, Events: ch, ch: ch, engine: e}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrEngineClosed
	}
	if e.subs[matchID] == nil {
		e.subs[matchID] = make(map[*Subscription]struct{})
	}
	e.subs[matchID][sub] = struct{}{}
	return sub, nil
}

// Observe registers fn for every event of every match.
func (e *Engine) Observe(fn Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// finish persists a terminal match and schedules its eviction.
func (e *Engine) finish(s game.MatchState, outcome models.Outcome) {
	sum := models.NewMatchSummary(s, outcome, e.now())

	e.persisting.Add(1)
	go func() {
		defer e.persisting.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PersistTimeout)
		defer cancel()
		if err := e.sink.SaveMatchSummary(ctx, sum); err != nil {
			e.log.WithError(err).WithField("match_id", sum.MatchID).Error("failed to persist match summary")
		}
	}()

	if outcome == models.OutcomeAbandoned {
		e.evict(s.ID)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	t := e.timersFor(s.ID)
	if t.evict == nil {
		t.evict = time.AfterFunc(e.cfg.Retention, func() { e.evict(s.ID) })
	}
}

// evict drops a match from memory and ends its subscriptions.
func (e *Engine) evict(matchID uuid.UUID) {
	e.store.Delete(matchID)

	e.mu.Lock()
	if t, ok := e.timers[matchID]; ok {
		stopAll(t)
		delete(e.timers, matchID)
	}
	e.mu.Unlock()

	e.closeSubscriptions(matchID)
	e.log.WithField("match_id", matchID).Debug("match evicted")
}

// timersFor must be called with e.mu held.
func (e *Engine) timersFor(matchID uuid.UUID) *matchTimers {
	t, ok := e.timers[matchID]
	if !ok {
		t = &matchTimers{}
		e.timers[matchID] = t
	}
	return t
}

func (e *Engine) armGrace(matchID uuid.UUID, slot game.SlotID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	t := e.timersFor(matchID)
	if t.grace[slot] != nil {
		t.grace[slot].Stop()
	}
	t.grace[slot] = time.AfterFunc(e.cfg.ReconnectGrace, func() {
		err := e.abandonAway(matchID, slot)
		if err != nil && !errors.Is(err, errNoChange) && !errors.Is(err, game.ErrMatchNotActive) {
			var nf *game.MatchNotFoundError
			if !errors.As(err, &nf) {
				e.log.WithError(err).WithField("match_id", matchID).Error("failed to abandon match after grace period")
			}
		}
	})
}

func (e *Engine) disarmGrace(matchID uuid.UUID, slot game.SlotID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[matchID]; ok && t.grace[slot] != nil {
		t.grace[slot].Stop()
		t.grace[slot] = nil
	}
}

func stopAll(t *matchTimers) {
	for _, g := range t.grace {
		if g != nil {
			g.Stop()
		}
	}
	if t.evict != nil {
		t.evict.Stop()
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Close stops all timers, ends every subscription and waits for pending
// summary writes.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for id, t := range e.timers {
		stopAll(t)
		delete(e.timers, id)
	}
	for id, subs := range e.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(e.subs, id)
	}
	e.mu.Unlock()

	e.persisting.Wait()
}

// logFailure logs server-side faults; caller mistakes are left to the transport.
func (e *Engine) logFailure(err error, fields logrus.Fields) {
	var inv *game.InvariantError
	if errors.As(err, &inv) || errors.Is(err, game.ErrNoMovesAvailable) {
		e.log.WithFields(fields).WithError(err).Error("match rejected an internal transition")
	}
}
