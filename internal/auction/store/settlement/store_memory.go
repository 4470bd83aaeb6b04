package settlement

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bidhub/internal/auction/models"
	id "bidhub/pkg/domain"
	"bidhub/pkg/platform/sentinel"
)

// InMemoryStore keeps settlements in memory for tests/dev.
type InMemoryStore struct {
	mu          sync.RWMutex
	settlements map[id.RecordID]*models.Settlement
}

// New constructs an empty in-memory settlement store.
func New() *InMemoryStore {
	return &InMemoryStore{settlements: make(map[id.RecordID]*models.Settlement)}
}

// Create is write-once per record; a second write for the same record is a
// conflict so settlement stays idempotent under finalizer retries.
func (s *InMemoryStore) Create(_ context.Context, settlement *models.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.settlements[settlement.RecordID]; ok {
		return fmt.Errorf("record %s already settled: %w", settlement.RecordID, sentinel.ErrConflict)
	}
	clone := *settlement
	s.settlements[settlement.RecordID] = &clone
	return nil
}

func (s *InMemoryStore) FindByListing(_ context.Context, listingID id.ListingID) (*models.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, settlement := range s.settlements {
		if settlement.ListingID == listingID {
			clone := *settlement
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("listing %s not settled: %w", listingID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]*models.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Settlement, 0, len(s.settlements))
	for _, settlement := range s.settlements {
		clone := *settlement
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SettledAt.After(out[j].SettledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
