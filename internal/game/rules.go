// internal/game/rules.go
package game

import (
	"fmt"
	"time"
)

// ExceptionRound is the round whose play can trigger the triple exception.
const ExceptionRound = 5

// LegalMoves returns the cards the slot may play this round.
func LegalMoves(p PlayerSlot) CardSet {
	return p.Hand.Minus(p.Locked)
}

// ValidateMove checks that card is playable for slot in the current round.
func ValidateMove(state MatchState, slot SlotID, card Card) error {
	if state.Phase != PhaseAwaitingMoves && state.Phase != PhaseResolving {
		return ErrMatchNotActive
	}
	if !slot.Valid() {
		return fmt.Errorf("invalid slot %d", int(slot))
	}
	return validateCard(state.Slots[slot], slot, card)
}

func validateCard(p PlayerSlot, slot SlotID, card Card) error {
	switch {
	case !card.Valid():
		return &IllegalMoveError{Slot: slot, Card: card, Reason: ReasonOutOfRange}
	case !p.Hand.Has(card):
		return &IllegalMoveError{Slot: slot, Card: card, Reason: ReasonAlreadyPlayed}
	case p.Locked.Has(card):
		return &IllegalMoveError{Slot: slot, Card: card, Reason: ReasonLocked}
	}
	return nil
}

// FallbackCard picks the lowest legal card; the round timer plays it for a
// participant who did not move in time.
func FallbackCard(p PlayerSlot) (Card, error) {
	c, ok := LegalMoves(p).Lowest()
	if !ok {
		return 0, ErrNoMovesAvailable
	}
	return c, nil
}

// ResolveRound applies one round to state and returns the new state together
// with the round's record. state itself is never modified.
func ResolveRound(state MatchState, cardA, cardB Card) (MatchState, RoundRecord, error) {
	if state.Phase != PhaseAwaitingMoves && state.Phase != PhaseResolving {
		return state, RoundRecord{}, ErrMatchNotActive
	}
	if err := CheckInvariants(state); err != nil {
		return state, RoundRecord{}, err
	}

	cards := [2]Card{cardA, cardB}
	for i, c := range cards {
		if err := validateCard(state.Slots[i], SlotID(i), c); err != nil {
			return state, RoundRecord{}, err
		}
	}

	next := state.Clone()
	round := next.CurrentRound
	rec := RoundRecord{Round: round, Cards: cards, Winner: RoundWinnerTie}

	var before [2]CardSet
	for i := range next.Slots {
		before[i] = next.Slots[i].Hand
		next.Slots[i].Hand = next.Slots[i].Hand.Remove(cards[i])
	}

	switch {
	case cardA > cardB:
		next.Slots[SlotA].Score++
		rec.Winner = RoundWinnerA
	case cardB > cardA:
		next.Slots[SlotB].Score++
		rec.Winner = RoundWinnerB
	}
	rec.Scores = [2]int{next.Slots[SlotA].Score, next.Slots[SlotB].Score}

	for i := range next.Slots {
		rec.ExceptionTriggered[i] = relock(&next.Slots[i], round, before[i], cards[i])
	}

	next.History = append(next.History, rec)
	next.Pending = [2]Card{}
	next.CurrentRound++

	if round >= Rounds {
		next.Phase = PhaseComplete
		next.Winner = leader(next)
	} else {
		next.Phase = PhaseAwaitingMoves
	}
	return next, rec, nil
}

// Complete stamps the completion time on a state that ResolveRound finished.
func Complete(state *MatchState, now time.Time) {
	if state.Phase == PhaseComplete && state.CompletedAt.IsZero() {
		state.CompletedAt = now
	}
}

// relock recomputes a slot's locks after it played card in round, with before
// being its hand prior to the play. It reports whether the round-5 exception fired.
//
// Locks from the previous round are always dropped. The new lock covers the
// played card's neighbours still in hand, unless
//   - the exception fired this round (no lock during round 6), or
//   - the lock would cover the whole remaining hand.
func relock(p *PlayerSlot, round int, before CardSet, card Card) bool {
	p.Locked = 0

	triggered := false
	switch round {
	case ExceptionRound:
		if ExceptionCards(before).Has(card) {
			p.FifthRoundException = true
			triggered = true
		}
	case ExceptionRound + 1:
		p.FifthRoundException = false
	}
	if triggered {
		return true
	}

	lock := Neighbors(card).Intersect(p.Hand)
	if lock == p.Hand {
		return false
	}
	p.Locked = lock
	return false
}

// ExceptionCards returns the cards in hand that sit in the middle of a
// consecutive triple, i.e. the plays that would fire the round-5 exception.
func ExceptionCards(hand CardSet) CardSet {
	var out CardSet
	for c := MinCard + 1; c < MaxCard; c++ {
		if hand.Has(c-1) && hand.Has(c) && hand.Has(c+1) {
			out = out.Add(c)
		}
	}
	return out
}

// ReplayLocks derives the locks currently in force for a slot from its public
// play history, using the same rule as ResolveRound.
func ReplayLocks(plays []Card) CardSet {
	p := PlayerSlot{Hand: FullHand}
	for i, c := range plays {
		if !p.Hand.Has(c) {
			break
		}
		before := p.Hand
		p.Hand = p.Hand.Remove(c)
		relock(&p, i+1, before, c)
	}
	return p.Locked
}

func leader(s MatchState) *SlotID {
	a, b := s.Slots[SlotA].Score, s.Slots[SlotB].Score
	var w SlotID
	switch {
	case a > b:
		w = SlotA
	case b > a:
		w = SlotB
	default:
		return nil
	}
	return &w
}

// CheckInvariants verifies the structural invariants of a match.
func CheckInvariants(s MatchState) error {
	fail := func(format string, args ...any) error {
		return &InvariantError{MatchID: s.ID, Violation: fmt.Sprintf(format, args...)}
	}

	if len(s.History) != s.CurrentRound-1 {
		return fail("history has %d records in round %d", len(s.History), s.CurrentRound)
	}
	if s.CurrentRound < 1 || s.CurrentRound > Rounds+1 {
		return fail("round %d out of range", s.CurrentRound)
	}
	if s.Phase == PhaseComplete && len(s.History) != Rounds {
		return fail("complete after %d rounds", len(s.History))
	}

	for i := range s.Slots {
		slot := SlotID(i)
		p := s.Slots[i]
		var played CardSet
		wins := 0
		for _, r := range s.History {
			c := r.Cards[i]
			if played.Has(c) {
				return fail("slot %s played %d twice", slot, c)
			}
			played = played.Add(c)
			if r.Winner == winnerFor(slot) {
				wins++
			}
		}
		if p.Hand&^FullHand != 0 || played.Union(p.Hand) != FullHand || !played.Intersect(p.Hand).Empty() {
			return fail("slot %s hand %s does not complement played %s", slot, p.Hand, played)
		}
		if !p.Locked.Minus(p.Hand).Empty() {
			return fail("slot %s locks %s outside hand %s", slot, p.Locked, p.Hand)
		}
		if p.Score != wins {
			return fail("slot %s score %d but won %d rounds", slot, p.Score, wins)
		}
		if pc := s.Pending[i]; pc != 0 && !p.Hand.Has(pc) {
			return fail("slot %s pending card %d not in hand", slot, pc)
		}
	}
	return nil
}
