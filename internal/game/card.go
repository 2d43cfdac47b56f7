// internal/game/card.go
package game

import (
	"encoding/json"
	"math/bits"
	"sort"
)

// Card is a card value in [MinCard, MaxCard].
type Card int

const (
	MinCard Card = 1
	MaxCard Card = 7

	// Rounds is the number of rounds in a match; one card is played per round.
	Rounds = 7
)

// Valid reports whether c is a playable card value.
func (c Card) Valid() bool {
	return c >= MinCard && c <= MaxCard
}

// CardSet is a set of cards stored as a bitmask (bit n set => card n present).
// The zero value is the empty set. CardSet is a value type, so copying a
// PlayerSlot never shares hand state.
type CardSet uint8

// FullHand holds every card from MinCard to MaxCard.
const FullHand CardSet = 0b1111_1110

// NewCardSet builds a set from the given cards, ignoring invalid values.
func NewCardSet(cards ...Card) CardSet {
	var s CardSet
	for _, c := range cards {
		s = s.Add(c)
	}
	return s
}

func (s CardSet) Has(c Card) bool {
	return c.Valid() && s&(1<<uint(c)) != 0
}

func (s CardSet) Add(c Card) CardSet {
	if !c.Valid() {
		return s
	}
	return s | 1<<uint(c)
}

func (s CardSet) Remove(c Card) CardSet {
	if !c.Valid() {
		return s
	}
	return s &^ (1 << uint(c))
}

// Union, Intersect and Minus are the usual set operations.
func (s CardSet) Union(o CardSet) CardSet     { return s | o }
func (s CardSet) Intersect(o CardSet) CardSet { return s & o }
func (s CardSet) Minus(o CardSet) CardSet     { return s &^ o }

func (s CardSet) Len() int      { return bits.OnesCount8(uint8(s)) }
func (s CardSet) Empty() bool   { return s&FullHand == 0 }
func (s CardSet) String() string { b, _ := json.Marshal(s.Cards()); return string(b) }

// Cards returns the members in ascending order.
func (s CardSet) Cards() []Card {
	out := make([]Card, 0, s.Len())
	for c := MinCard; c <= MaxCard; c++ {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Lowest returns the smallest member, or false when the set is empty.
func (s CardSet) Lowest() (Card, bool) {
	for c := MinCard; c <= MaxCard; c++ {
		if s.Has(c) {
			return c, true
		}
	}
	return 0, false
}

// Highest returns the largest member, or false when the set is empty.
func (s CardSet) Highest() (Card, bool) {
	for c := MaxCard; c >= MinCard; c-- {
		if s.Has(c) {
			return c, true
		}
	}
	return 0, false
}

// Neighbors returns the cards adjacent to c, clipped to the valid range.
func Neighbors(c Card) CardSet {
	return NewCardSet(c-1, c+1)
}

// MarshalJSON encodes the set as a sorted array of card values.
func (s CardSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Cards())
}

// UnmarshalJSON decodes a JSON array of card values.
func (s *CardSet) UnmarshalJSON(data []byte) error {
	var cards []Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return err
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i] < cards[j] })
	*s = NewCardSet(cards...)
	return nil
}
