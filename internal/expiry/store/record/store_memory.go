package record

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bidhub/internal/expiry/models"
	id "bidhub/pkg/domain"
	"bidhub/pkg/platform/sentinel"
)

// InMemoryStore keeps expirable records in memory for tests/dev.
//
// Error Contract:
// All store methods follow the ports.RecordStore sentinel contract:
// - Return ErrNotFound when the requested entity does not exist
// - Return ErrConflict when creation would violate the one-active-per-subject rule
// - Return ErrInvalidState when an invariant violation is observed on read
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.RecordID]*models.Record
}

// New constructs an empty in-memory record store.
func New() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.RecordID]*models.Record)}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.Kind == record.Kind && existing.SubjectID == record.SubjectID && existing.Active {
			return fmt.Errorf("active %s record exists for subject %s: %w",
				record.Kind, record.SubjectID, sentinel.ErrConflict)
		}
	}
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, recordID id.RecordID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[recordID]; ok {
		return record.Clone(), nil
	}
	return nil, fmt.Errorf("record %s: %w", recordID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindActiveBySubject(_ context.Context, kind models.Kind, subjectID id.SubjectID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *models.Record
	for _, record := range s.records {
		if record.Kind != kind || record.SubjectID != subjectID || !record.Active {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("multiple active %s records for subject %s: %w",
				kind, subjectID, sentinel.ErrInvalidState)
		}
		found = record
	}
	if found == nil {
		return nil, fmt.Errorf("no active %s record for subject %s: %w", kind, subjectID, sentinel.ErrNotFound)
	}
	return found.Clone(), nil
}

func (s *InMemoryStore) FindAllBySubject(_ context.Context, kind models.Kind, subjectID id.SubjectID) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Record
	for _, record := range s.records {
		if record.Kind == kind && record.SubjectID == subjectID {
			out = append(out, record.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) FindByIDs(_ context.Context, recordIDs []id.RecordID) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Record
	for _, recordID := range recordIDs {
		if record, ok := s.records[recordID]; ok {
			out = append(out, record.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) FindAllActive(_ context.Context, kind models.Kind) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Record
	for _, record := range s.records {
		if record.Kind == kind && record.Active {
			out = append(out, record.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) FindStaleActive(_ context.Context, now time.Time) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Record
	for _, record := range s.records {
		if record.StaleAt(now) {
			out = append(out, record.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// TransitionToInactive applies the one-way flip under the store lock, which
// gives the same winner-takes-all semantics as the conditional UPDATE in the
// postgres store.
func (s *InMemoryStore) TransitionToInactive(_ context.Context, recordID id.RecordID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[recordID]
	if !ok || !record.Active {
		return false, nil
	}
	record.Active = false
	return true, nil
}

func sortNewestFirst(records []*models.Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID.String() > records[j].ID.String()
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
