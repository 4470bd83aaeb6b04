package bid

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bidhub/internal/auction/models"
	id "bidhub/pkg/domain"
	"bidhub/pkg/platform/sentinel"
)

// InMemoryStore keeps bids in memory for tests/dev.
type InMemoryStore struct {
	mu   sync.RWMutex
	bids map[id.ListingID][]*models.Bid
}

// New constructs an empty in-memory bid store.
func New() *InMemoryStore {
	return &InMemoryStore{bids: make(map[id.ListingID][]*models.Bid)}
}

func (s *InMemoryStore) Place(_ context.Context, b *models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *b
	s.bids[b.ListingID] = append(s.bids[b.ListingID], &clone)
	return nil
}

func (s *InMemoryStore) HighestForListing(_ context.Context, listingID id.ListingID) (*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *models.Bid
	for _, b := range s.bids[listingID] {
		if best == nil || higher(b, best) {
			best = b
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no bids for listing %s: %w", listingID, sentinel.ErrNotFound)
	}
	clone := *best
	return &clone, nil
}

func (s *InMemoryStore) ListForListing(_ context.Context, listingID id.ListingID) ([]*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Bid, 0, len(s.bids[listingID]))
	for _, b := range s.bids[listingID] {
		clone := *b
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return higher(out[i], out[j]) })
	return out, nil
}

// higher orders bids: larger amount first, earlier placement winning ties.
func higher(a, b *models.Bid) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	return a.PlacedAt.Before(b.PlacedAt)
}
