package engine

import (
	"fmt"
	"sort"
	"sync"

	"tradesim/internal/model"
)

// Store is a thread-safe holder for the latest simulation result and the
// subset of variations currently selected for display.
type Store struct {
	mu       sync.RWMutex
	result   *model.SimulationResult
	selected []int
}

// StoreSnapshot is a point-in-time view of the store.
type StoreSnapshot struct {
	HasResult     bool                   `json:"hasResult"`
	Config        model.SimulationConfig `json:"config"`
	NumVariations int                    `json:"numVariations"`
	NumTrades     int                    `json:"numTrades"`
	Selected      []int                  `json:"selected"`
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a new result and resets the selection to all variations.
// The previous result is dropped, never mutated.
func (s *Store) Replace(result *model.SimulationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
	s.selected = result.IDs()
}

// Result returns the current result.
func (s *Store) Result() (*model.SimulationResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.result != nil
}

// Select sets the displayed subset. Ids are de-duplicated and sorted.
func (s *Store) Select(ids []int) error {
	if len(ids) == 0 {
		return ErrNoSelection
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return ErrNoResult
	}

	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.result.Variation(id); !ok {
			return fmt.Errorf("%w: %d", ErrUnknownVariation, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Ints(out)
	s.selected = out
	return nil
}

// Selected returns a copy of the selected ids.
func (s *Store) Selected() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, len(s.selected))
	copy(out, s.selected)
	return out
}

// Snapshot returns a point-in-time copy of the store state.
func (s *Store) Snapshot() StoreSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StoreSnapshot{Selected: make([]int, len(s.selected))}
	copy(snap.Selected, s.selected)
	if s.result != nil {
		snap.HasResult = true
		snap.Config = s.result.Config
		snap.NumVariations = len(s.result.Variations)
		if len(s.result.Variations) > 0 {
			snap.NumTrades = len(s.result.Variations[0].Cumulative)
		}
	}
	return snap
}
