// Package ports defines shared interfaces for the expiry engine. Interfaces
// live here when consumed by multiple packages (gate, sweeper, the domain
// services) to avoid duplication.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"sync"
	"time"

	"bidhub/internal/expiry/models"
	id "bidhub/pkg/domain"
)

// RecordStore is the persistence contract for expirable records.
//
// Error contract (pkg/platform/sentinel):
//   - Create returns ErrConflict when an active record already exists for the
//     same (kind, subject).
//   - FindActiveBySubject returns ErrNotFound when no active record exists and
//     ErrInvalidState when more than one does; the engine surfaces the
//     integrity violation instead of guessing which record is authoritative.
//   - Infrastructure failures are returned wrapped with context.
type RecordStore interface {
	// Create persists a new record with Active=true.
	Create(ctx context.Context, record *models.Record) error

	// FindByID retrieves one record regardless of its active flag.
	FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error)

	// FindActiveBySubject returns the single active record for a subject.
	FindActiveBySubject(ctx context.Context, kind models.Kind, subjectID id.SubjectID) (*models.Record, error)

	// FindAllBySubject returns the subject's full history, newest first.
	FindAllBySubject(ctx context.Context, kind models.Kind, subjectID id.SubjectID) ([]*models.Record, error)

	// FindByIDs retrieves records in bulk, newest first. Missing IDs are
	// skipped, not an error.
	FindByIDs(ctx context.Context, recordIDs []id.RecordID) ([]*models.Record, error)

	// FindAllActive returns every record still flagged active for a kind,
	// newest first. Flags may be stale; callers must not use them for
	// authorization decisions.
	FindAllActive(ctx context.Context, kind models.Kind) ([]*models.Record, error)

	// FindStaleActive returns records flagged active whose deadline has
	// passed as of now, across all kinds. This is the sweeper's work queue.
	FindStaleActive(ctx context.Context, now time.Time) ([]*models.Record, error)

	// TransitionToInactive flips Active to false, conditioned on the record
	// still being active (compare-and-set). Returns false when another actor
	// already transitioned it or when no such record exists; both are facts,
	// not errors. The transition is one-way: nothing ever sets Active back
	// to true.
	TransitionToInactive(ctx context.Context, recordID id.RecordID) (bool, error)
}

// Finalizer runs after the sweeper (or the gate's self-heal path) wins a
// record's transition. Exactly one finalizer call happens per record because
// only the transition winner invokes it.
type Finalizer func(ctx context.Context, record *models.Record) error

// FinalizerRegistry maps record kinds to their post-transition work. The ban
// module registers lift notifications, the auction module registers
// settlement. Registration happens at wiring time, before the sweeper starts.
type FinalizerRegistry struct {
	mu         sync.RWMutex
	finalizers map[models.Kind]Finalizer
}

func NewFinalizerRegistry() *FinalizerRegistry {
	return &FinalizerRegistry{finalizers: make(map[models.Kind]Finalizer)}
}

// Register attaches a finalizer for a kind, replacing any previous one.
func (r *FinalizerRegistry) Register(kind models.Kind, fn Finalizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalizers[kind] = fn
}

// Run invokes the finalizer registered for the record's kind, if any.
func (r *FinalizerRegistry) Run(ctx context.Context, record *models.Record) error {
	r.mu.RLock()
	fn := r.finalizers[record.Kind]
	r.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, record)
}
