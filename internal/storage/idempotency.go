package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// IdempotencyStore is a persisted ledger of ids a worker has already
// handled. Membership only: components consult it to skip duplicates and
// never derive business state from it. Each responsibility owns its own
// store file; no two components share one.
type IdempotencyStore interface {
	Contains(id string) bool
	Add(id string)
	// Flush persists the set. Callers add an id only after the transition
	// it guards has durably completed, then flush.
	Flush() error
	Len() int
}

type idempotencyFile struct {
	ProcessedIDs []string `json:"processed_ids"`
}

// fileIdempotencyStore keeps the set in memory and persists it as JSON.
type fileIdempotencyStore struct {
	path string
	mu   sync.RWMutex
	ids  map[string]struct{}
}

// NewIdempotencyStore loads (or starts empty) an IdempotencyStore persisted
// at the given path.
func NewIdempotencyStore(path string) (IdempotencyStore, error) {
	s := &fileIdempotencyStore{
		path: path,
		ids:  make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("loading idempotency store: %w", err)
	}

	var f idempotencyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("loading idempotency store: parsing JSON: %w", err)
	}
	for _, id := range f.ProcessedIDs {
		s.ids[id] = struct{}{}
	}
	return s, nil
}

func (s *fileIdempotencyStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *fileIdempotencyStore) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

func (s *fileIdempotencyStore) Flush() error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	data, err := json.Marshal(idempotencyFile{ProcessedIDs: ids})
	if err != nil {
		return fmt.Errorf("flushing idempotency store: %w", err)
	}
	if err := atomicWrite(s.path, data, 0o644); err != nil {
		return fmt.Errorf("flushing idempotency store: %w", err)
	}
	return nil
}

func (s *fileIdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
