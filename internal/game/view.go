// internal/game/view.go
package game

import "github.com/google/uuid"

// OpponentView is the public side of the other participant. The opponent's
// remaining hand is deliberately absent; only its size is shown.
type OpponentView struct {
	Identity
	HandSize  int    `json:"handSize"`
	Played    []Card `json:"played"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
	Committed bool   `json:"committed"` // has a pending card this round; the card stays hidden
}

// SlotView is a snapshot of a match as seen from one slot. It is the only
// state handed to clients and to the AI.
type SlotView struct {
	MatchID             uuid.UUID     `json:"matchId"`
	Slot                SlotID        `json:"slot"`
	Round               int           `json:"round"`
	Phase               Phase         `json:"phase"`
	Hand                CardSet       `json:"hand"`
	Locked              CardSet       `json:"locked"`
	LegalMoves          CardSet       `json:"legalMoves"`
	Score               int           `json:"score"`
	FifthRoundException bool          `json:"fifthRoundException"`
	Pending             Card          `json:"pending,omitempty"`
	Opponent            OpponentView  `json:"opponent"`
	History             []RoundRecord `json:"history"`
	Winner              *SlotID       `json:"winner,omitempty"`
	Version             uint64        `json:"version"`
}

// ViewFor projects the state onto slot.
func (s MatchState) ViewFor(slot SlotID) SlotView {
	c := s.Clone()
	me, opp := c.Slots[slot], c.Slots[slot.Other()]

	legal := LegalMoves(me)
	if c.Phase.Terminal() || c.Pending[slot] != 0 {
		legal = 0
	}

	return SlotView{
		MatchID:             c.ID,
		Slot:                slot,
		Round:               c.CurrentRound,
		Phase:               c.Phase,
		Hand:                me.Hand,
		Locked:              me.Locked,
		LegalMoves:          legal,
		Score:               me.Score,
		FifthRoundException: me.FifthRoundException,
		Pending:             c.Pending[slot],
		Opponent: OpponentView{
			Identity:  opp.Identity,
			HandSize:  opp.Hand.Len(),
			Played:    c.Plays(slot.Other()),
			Score:     opp.Score,
			Connected: opp.Connected,
			Committed: c.Pending[slot.Other()] != 0,
		},
		History: c.History,
		Winner:  c.Winner,
		Version: c.Version,
	}
}

// OwnPlays returns the viewer's played cards in round order.
func (v SlotView) OwnPlays() []Card {
	out := make([]Card, 0, len(v.History))
	for _, r := range v.History {
		out = append(out, r.Cards[v.Slot])
	}
	return out
}

// OpponentRemaining is the set of cards the opponent has not yet played.
func (v SlotView) OpponentRemaining() CardSet {
	return FullHand.Minus(NewCardSet(v.Opponent.Played...))
}

// OpponentAvailable is what the opponent can legally play this round, derived
// from public information only.
func (v SlotView) OpponentAvailable() CardSet {
	return v.OpponentRemaining().Minus(ReplayLocks(v.Opponent.Played))
}

// RoundsLeft counts the rounds still to be played, including the current one.
func (v SlotView) RoundsLeft() int {
	if v.Phase.Terminal() {
		return 0
	}
	return Rounds - v.Round + 1
}
