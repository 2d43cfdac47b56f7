// internal/game/match_store.go
package game

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// TransitionFunc computes the next state from a private copy of the current one.
// Returning an error aborts the mutation and nothing is committed.
type TransitionFunc func(state MatchState) (MatchState, error)

// CommitFunc observes a committed state. Hooks run while the match's lock is
// still held, so hooks for one match run in commit order. A hook must not call
// Mutate or Get for the same match.
type CommitFunc func(committed MatchState)

type matchEntry struct {
	mu           sync.Mutex
	state        MatchState
	participants [2]uuid.UUID
	removed      atomic.Bool
}

// MatchStore holds live matches in memory. Each match has its own lock; the
// store-wide lock only guards the index and is never held while a transition runs.
type MatchStore struct {
	mu      sync.Mutex
	matches map[uuid.UUID]*matchEntry
}

func NewMatchStore() *MatchStore {
	return &MatchStore{
		matches: make(map[uuid.UUID]*matchEntry),
	}
}

// Create registers a new match. It fails with ErrMatchExists if the id is taken.
func (s *MatchStore) Create(state MatchState) error {
	if err := CheckInvariants(state); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.matches[state.ID]; exists {
		return ErrMatchExists
	}
	s.matches[state.ID] = &matchEntry{
		state:        state.Clone(),
		participants: state.Participants(),
	}
	return nil
}

func (s *MatchStore) entry(id uuid.UUID) (*matchEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.matches[id]
	return e, ok
}

// Get returns a copy of the current state.
func (s *MatchStore) Get(id uuid.UUID) (MatchState, error) {
	e, ok := s.entry(id)
	if !ok {
		return MatchState{}, &MatchNotFoundError{MatchID: id}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed.Load() {
		return MatchState{}, &MatchNotFoundError{MatchID: id}
	}
	return e.state.Clone(), nil
}

// Mutate runs fn against the match under its lock and commits the result.
// The committed state is checked against the match invariants and gets a new
// Version. The returned state is a copy of what was committed.
func (s *MatchStore) Mutate(id uuid.UUID, fn TransitionFunc, onCommit ...CommitFunc) (MatchState, error) {
	e, ok := s.entry(id)
	if !ok {
		return MatchState{}, &MatchNotFoundError{MatchID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed.Load() {
		return MatchState{}, &MatchNotFoundError{MatchID: id}
	}

	next, err := fn(e.state.Clone())
	if err != nil {
		return MatchState{}, err
	}
	next.ID = e.state.ID
	if err := CheckInvariants(next); err != nil {
		return MatchState{}, err
	}
	next.Version = e.state.Version + 1
	e.state = next

	for _, hook := range onCommit {
		hook(next.Clone())
	}
	return next.Clone(), nil
}

// Delete evicts a match. It is safe to call from a CommitFunc.
func (s *MatchStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.matches[id]; ok {
		e.removed.Store(true)
		delete(s.matches, id)
	}
}

// FindByPlayer returns the most recently created match the player takes part in.
func (s *MatchStore) FindByPlayer(playerID uuid.UUID) (MatchState, bool) {
	s.mu.Lock()
	candidates := make([]*matchEntry, 0, 1)
	for _, e := range s.matches {
		if e.participants[0] == playerID || e.participants[1] == playerID {
			candidates = append(candidates, e)
		}
	}
	s.mu.Unlock()

	var (
		found MatchState
		ok    bool
	)
	for _, e := range candidates {
		e.mu.Lock()
		if !e.removed.Load() && (!ok || e.state.CreatedAt.After(found.CreatedAt)) {
			found, ok = e.state.Clone(), true
		}
		e.mu.Unlock()
	}
	return found, ok
}

// Len returns the number of live matches.
func (s *MatchStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}
