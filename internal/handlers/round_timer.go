// internal/handlers/round_timer.go
package handlers

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/keremzytn/NumberFightAI/internal/session"
	"github.com/sirupsen/logrus"
)

// RoundTimer plays the lowest legal card for any human who has not moved when
// a round's time runs out. Register Observe with session.Engine.Observe.
type RoundTimer struct {
	engine   *session.Engine
	duration time.Duration
	log      logrus.FieldLogger

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	closed bool
}

func NewRoundTimer(engine *session.Engine, duration time.Duration, logger logrus.FieldLogger) *RoundTimer {
	return &RoundTimer{
		engine:   engine,
		duration: duration,
		log:      logger,
		timers:   make(map[uuid.UUID]*time.Timer),
	}
}

// Observe arms the timer when a round opens and stops it when the match ends.
// It runs inside the engine's commit path, so it only touches timers.
func (t *RoundTimer) Observe(ev session.Event) {
	switch ev.Type {
	case session.EventMatchStarted:
		t.arm(ev.MatchID, ev.Round)
	case session.EventRoundResolved:
		if ev.Round < game.Rounds {
			t.arm(ev.MatchID, ev.Round+1)
		}
	case session.EventMatchComplete, session.EventMatchAbandoned:
		t.stop(ev.MatchID)
	}
}

func (t *RoundTimer) arm(matchID uuid.UUID, round int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if old := t.timers[matchID]; old != nil {
		old.Stop()
	}
	t.timers[matchID] = time.AfterFunc(t.duration, func() { t.expire(matchID, round) })
}

func (t *RoundTimer) stop(matchID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old := t.timers[matchID]; old != nil {
		old.Stop()
		delete(t.timers, matchID)
	}
}

// expire submits fallback cards for round. Moves that race in from clients win;
// the resulting stale or duplicate errors are expected.
func (t *RoundTimer) expire(matchID uuid.UUID, round int) {
	s, err := t.engine.Match(matchID)
	if err != nil || s.Phase.Terminal() || s.CurrentRound != round {
		return
	}

	for i, slot := range s.Slots {
		if slot.IsAI() || s.Pending[i] != 0 {
			continue
		}
		card, err := game.FallbackCard(slot)
		if err != nil {
			t.log.WithError(err).WithField("match_id", matchID).Error("no fallback card")
			continue
		}
		_, err = t.engine.SubmitMoveAt(matchID, slot.PlayerID, round, card)
		var (
			stale *game.StaleRoundError
			dup   *game.AlreadySubmittedError
		)
		switch {
		case err == nil:
			t.log.WithFields(logrus.Fields{
				"match_id":  matchID,
				"player_id": slot.PlayerID,
				"round":     round,
				"card":      card,
			}).Info("round timed out, fallback card played")
		case errors.As(err, &stale), errors.As(err, &dup), errors.Is(err, game.ErrMatchNotActive):
		default:
			t.log.WithError(err).WithField("match_id", matchID).Warn("fallback move rejected")
		}
	}
}

// Close stops every pending timer.
func (t *RoundTimer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
