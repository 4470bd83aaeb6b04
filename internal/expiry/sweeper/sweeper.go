// Package sweeper implements the recurring batch that reconciles stale
// active flags against wall-clock time.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bidhub/internal/expiry/metrics"
	"bidhub/internal/expiry/ports"
	"bidhub/pkg/requestcontext"
)

// DefaultInterval matches the auction-closing cadence the marketplace runs
// on; bans tolerate the same granularity because the gate self-heals reads
// in between runs.
const DefaultInterval = 60 * time.Second

type Sweeper struct {
	store      ports.RecordStore
	finalizers *ports.FinalizerRegistry
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	clock      func() time.Time
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

func WithFinalizers(registry *ports.FinalizerRegistry) Option {
	return func(s *Sweeper) {
		s.finalizers = registry
	}
}

// WithClock overrides the batch time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Sweeper) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(store ports.RecordStore, opts ...Option) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	s := &Sweeper{
		store:  store,
		tracer: otel.Tracer("bidhub/expiry/sweeper"),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start runs sweeps at the given interval until ctx is cancelled. A failed
// run is logged and the loop keeps going: records left behind remain stale
// and are picked up by the next run. Cancellation between or during runs
// leaves no partial state because each record's transition is atomic.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First run happens immediately so a backlog accumulated while the
	// process was down does not wait a full interval.
	if _, err := s.RunSweep(ctx); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "sweep run failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunSweep(ctx); err != nil && s.logger != nil {
				s.logger.ErrorContext(ctx, "sweep run failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunSweep executes one batch: select records whose deadline has passed but
// whose flag still reads active, and conditionally transition each. Returns
// the number of records this run transitioned.
//
// Overlapping invocations are safe: the conditional write resolves races and
// already-inactive records fall out of the selection predicate, so a second
// immediate run is a cheap no-op (at-least-once, idempotent convergence).
func (s *Sweeper) RunSweep(ctx context.Context) (int, error) {
	// One time reference for the whole batch so records don't change
	// classification mid-sweep.
	now := s.clock()
	ctx = requestcontext.WithTime(ctx, now)

	ctx, span := s.tracer.Start(ctx, "sweeper.RunSweep")
	defer span.End()

	if s.metrics != nil {
		s.metrics.IncrementSweepRuns()
	}

	stale, err := s.store.FindStaleActive(ctx, now)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.SetLastSweepBatchSize(len(stale))
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "sweeping stale records", "count", len(stale))
	}

	transitioned := 0
	for _, record := range stale {
		ok, err := s.store.TransitionToInactive(ctx, record.ID)
		if err != nil {
			// Skip, don't abort: the record stays active-and-stale and the
			// next run retries it.
			if s.metrics != nil {
				s.metrics.IncrementSweepErrors()
			}
			if s.logger != nil {
				s.logger.WarnContext(ctx, "record transition failed, will retry next run",
					"record_id", record.ID, "kind", record.Kind, "error", err)
			}
			continue
		}
		if !ok {
			// A concurrent sweep or a gate self-heal already handled it.
			if s.logger != nil {
				s.logger.DebugContext(ctx, "record already transitioned",
					"record_id", record.ID, "kind", record.Kind)
			}
			continue
		}

		transitioned++
		record.Active = false
		if s.metrics != nil {
			s.metrics.IncrementRecordsExpired(record.Kind.String())
		}
		if s.finalizers != nil {
			if err := s.finalizers.Run(ctx, record); err != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "finalizer failed for expired record",
					"record_id", record.ID, "kind", record.Kind, "error", err)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.stale", len(stale)),
		attribute.Int("sweep.transitioned", transitioned),
	)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "sweep complete",
			"stale", len(stale), "transitioned", transitioned)
	}
	return transitioned, nil
}
