// internal/ai/ai.go
package ai

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/keremzytn/NumberFightAI/internal/game"
)

// strategyFunc picks a card from a slot-scoped view. Strategies never see the
// opponent's hand and never touch match state.
type strategyFunc func(view game.SlotView, rng *rand.Rand) (game.Card, error)

var strategies = map[game.Difficulty]strategyFunc{
	game.DifficultyEasy:   selectEasy,
	game.DifficultyMedium: selectMedium,
	game.DifficultyHard:   selectHard,
}

// SelectCard chooses a card for the given difficulty.
func SelectCard(d game.Difficulty, view game.SlotView, rng *rand.Rand) (game.Card, error) {
	pick, ok := strategies[d]
	if !ok {
		return 0, fmt.Errorf("no strategy for difficulty %q", d)
	}
	if view.LegalMoves.Empty() {
		return 0, game.ErrNoMovesAvailable
	}
	card, err := pick(view, rng)
	if err != nil {
		return 0, err
	}
	if !view.LegalMoves.Has(card) {
		return 0, fmt.Errorf("%s strategy chose unplayable card %d", d, card)
	}
	return card, nil
}

// Picker makes SelectCard safe for concurrent callers by guarding a single rng.
type Picker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPicker seeds a Picker. A zero seed uses the current time.
func NewPicker(seed int64) *Picker {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Picker{rng: rand.New(rand.NewSource(seed))}
}

func (p *Picker) Select(d game.Difficulty, view game.SlotView) (game.Card, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return SelectCard(d, view, p.rng)
}
