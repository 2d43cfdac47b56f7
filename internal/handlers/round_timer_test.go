// internal/handlers/round_timer_test.go
package handlers

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/ai"
	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/keremzytn/NumberFightAI/internal/session"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTimedEngine(t *testing.T, d time.Duration) (*session.Engine, *RoundTimer, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	engine := session.NewEngine(game.NewMatchStore(), ai.NewPicker(1), nil, logger, session.Config{})
	timer := NewRoundTimer(engine, d, logger)
	engine.Observe(timer.Observe)
	t.Cleanup(func() {
		timer.Close()
		engine.Close()
	})
	return engine, timer, hook
}

func TestRoundTimerPlaysFallbackCards(t *testing.T) {
	engine, _, hook := newTimedEngine(t, 20*time.Millisecond)

	m, err := engine.CreateMatch(game.Human(uuid.New()), game.Bot(game.DifficultyEasy))
	require.NoError(t, err)

	// Nobody moves; the timer drives the whole match to completion.
	require.Eventually(t, func() bool {
		s, err := engine.Match(m.ID)
		return err == nil && s.Phase == game.PhaseComplete
	}, 5*time.Second, 10*time.Millisecond)

	s, err := engine.Match(m.ID)
	require.NoError(t, err)
	require.Len(t, s.History, game.Rounds)
	assert.Equal(t, game.Card(1), s.History[0].Cards[game.SlotA], "first fallback is the lowest card")

	// The last log line is written after the final round commits.
	assert.Eventually(t, func() bool {
		timedOut := 0
		for _, e := range hook.AllEntries() {
			if e.Message == "round timed out, fallback card played" {
				timedOut++
			}
		}
		return timedOut == game.Rounds
	}, time.Second, 10*time.Millisecond)
}

func TestRoundTimerLeavesPlayedCardsAlone(t *testing.T) {
	engine, _, _ := newTimedEngine(t, 50*time.Millisecond)
	a, b := uuid.New(), uuid.New()

	m, err := engine.CreateMatch(game.Human(a), game.Human(b))
	require.NoError(t, err)

	_, err = engine.SubmitMove(m.ID, a, 6)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, err := engine.Match(m.ID)
		return err == nil && len(s.History) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	s, err := engine.Match(m.ID)
	require.NoError(t, err)
	assert.Equal(t, [2]game.Card{6, 1}, s.History[0].Cards)
}

func TestRoundTimerStopsOnAbandon(t *testing.T) {
	engine, timer, _ := newTimedEngine(t, time.Hour)

	m, err := engine.CreateMatch(game.Human(uuid.New()), game.Bot(game.DifficultyHard))
	require.NoError(t, err)

	timer.mu.Lock()
	_, armed := timer.timers[m.ID]
	timer.mu.Unlock()
	require.True(t, armed)

	require.NoError(t, engine.Abandon(m.ID))

	timer.mu.Lock()
	defer timer.mu.Unlock()
	assert.Empty(t, timer.timers)
}
