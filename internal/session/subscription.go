// internal/session/subscription.go
package session

import (
	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/sirupsen/logrus"
)

// DefaultSubscriberBuffer bounds each subscriber's queue. Events that do not
// fit are dropped for that subscriber and logged; the client can resync.
const DefaultSubscriberBuffer = 32

// Subscription delivers a match's events to one connection of one participant.
// Events is closed when the match is evicted, the engine closes, or Close is called.
type Subscription struct {
	MatchID  uuid.UUID
	PlayerID uuid.UUID
	Slot     game.SlotID

	Events <-chan Event

	ch     chan Event
	engine *Engine
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.engine.unsubscribe(s)
}

// Observer receives every event of every match. Observers run synchronously
// in commit order and must not block or call back into the engine for the
// same match.
type Observer func(Event)

func (e *Engine) unsubscribe(sub *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	subs := e.subs[sub.MatchID]
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(e.subs, sub.MatchID)
	}
	close(sub.ch)
}

// closeSubscriptions ends delivery for every subscriber of a match.
func (e *Engine) closeSubscriptions(matchID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for sub := range e.subs[matchID] {
		close(sub.ch)
	}
	delete(e.subs, matchID)
}

// deliver fans events out to subscribers and then observers.
func (e *Engine) deliver(events []Event) {
	if len(events) == 0 {
		return
	}

	e.mu.Lock()
	for _, ev := range events {
		for sub := range e.subs[ev.MatchID] {
			select {
			case sub.ch <- ev:
			default:
				e.log.WithFields(logrus.Fields{
					"match_id":  ev.MatchID,
					"player_id": sub.PlayerID,
					"event":     ev.Type,
				}).Warn("subscriber buffer full, dropping event")
			}
		}
	}
	observers := append([]Observer(nil), e.observers...)
	e.mu.Unlock()

	for _, ev := range events {
		for _, fn := range observers {
			fn(ev)
		}
	}
}
