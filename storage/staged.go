package storage

import "sync"

// Staged buffers writes on top of a base database until Commit flushes them.
// Reads observe buffered writes first and fall through to the base store.
// Discarding a Staged instance without calling Commit leaves the base store
// untouched, which is how vault operations achieve all-or-nothing semantics.
type Staged struct {
	mu      sync.Mutex
	base    Database
	writes  map[string][]byte
	order   []string
	flushed bool
}

// NewStaged creates a staging overlay over the supplied base database.
func NewStaged(base Database) *Staged {
	return &Staged{base: base, writes: make(map[string][]byte)}
}

func (s *Staged) Put(key []byte, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := string(key)
	if _, seen := s.writes[k]; !seen {
		s.order = append(s.order, k)
	}
	s.writes[k] = append([]byte(nil), value...)
	return nil
}

func (s *Staged) Get(key []byte) ([]byte, error) {
	s.mu.Lock()
	value, ok := s.writes[string(key)]
	s.mu.Unlock()
	if ok {
		return append([]byte(nil), value...), nil
	}
	return s.base.Get(key)
}

func (s *Staged) Has(key []byte) (bool, error) {
	s.mu.Lock()
	_, ok := s.writes[string(key)]
	s.mu.Unlock()
	if ok {
		return true, nil
	}
	return s.base.Has(key)
}

// Close discards any uncommitted writes. The base store is left open.
func (s *Staged) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = make(map[string][]byte)
	s.order = nil
	return nil
}

// Commit flushes the buffered writes to the base store in insertion order.
// Commit is single-shot; further writes after a commit require a new overlay.
func (s *Staged) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushed {
		return nil
	}
	for _, k := range s.order {
		if err := s.base.Put([]byte(k), s.writes[k]); err != nil {
			return err
		}
	}
	s.flushed = true
	return nil
}
