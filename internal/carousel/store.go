package carousel

// Store holds the single replay state cell.
// Implementations can be in-memory, file-based, or remote. Callers must
// serialise access; the Service does so by only touching the store from its
// event loop.
type Store interface {
	// Load returns the current state, or false if nothing has been ingested yet.
	Load() (*ReplayState, bool)
	Save(s *ReplayState)
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	state *ReplayState
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Load implements Store.Load.
func (s *InMemoryStore) Load() (*ReplayState, bool) {
	return s.state, s.state != nil
}

// Save implements Store.Save.
func (s *InMemoryStore) Save(st *ReplayState) {
	s.state = st
}
