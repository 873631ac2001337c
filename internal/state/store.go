// Package state implements the in-memory state store: a UUID-keyed
// mapping from id to JSON document, shared across all concurrent requests.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danslapman/kolibri-go/internal/metrics"
	"github.com/danslapman/kolibri-go/internal/models"
)

// Store guards its map with a single reader/writer lock: multiple
// concurrent readers are permitted, writers are exclusive. A
// read-compute-write sequence spanning a request's full pipeline is not
// atomic across the store; callers needing that guarantee must accept
// last-write-wins races between a snapshot and a later upsert.
type Store struct {
	mu     sync.RWMutex
	states map[string]*models.State
}

// New returns an empty store.
func New() *Store {
	return &Store{states: make(map[string]*models.State)}
}

// Snapshot returns a consistent view across all states, suitable for the
// resolver's state-pairing stage.
func (s *Store) Snapshot() []*models.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.State, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	return out
}

// Get returns the state with the given id, if any.
func (s *Store) Get(id string) (*models.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[id]
	return st, ok
}

// Upsert replaces the whole record stored under id, creating a fresh
// UUID-identified record on first persist (id == "").
func (s *Store) Upsert(id string, data interface{}) *models.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}

	existing, ok := s.states[id]
	created := time.Now().UTC()
	if ok {
		created = existing.Created
	}

	st := &models.State{ID: id, Created: created, Data: data}
	s.states[id] = st
	metrics.SetStatesCount(len(s.states))
	return st
}
