// Package gate implements the synchronous active-check used by request
// handling code. Its answer is always policy-accurate even when the
// background sweep has not run since a deadline passed: stale flags are
// healed on the read path.
package gate

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bidhub/internal/expiry/metrics"
	"bidhub/internal/expiry/models"
	"bidhub/internal/expiry/ports"
	id "bidhub/pkg/domain"
	dErrors "bidhub/pkg/domain-errors"
	"bidhub/pkg/platform/sentinel"
	"bidhub/pkg/requestcontext"
)

type Gate struct {
	store      ports.RecordStore
	finalizers *ports.FinalizerRegistry
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithFinalizers attaches the shared registry so a self-heal transition runs
// the same post-transition work a sweep would.
func WithFinalizers(registry *ports.FinalizerRegistry) Option {
	return func(g *Gate) {
		g.finalizers = registry
	}
}

func New(store ports.RecordStore, opts ...Option) (*Gate, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	g := &Gate{
		store:  store,
		tracer: otel.Tracer("bidhub/expiry/gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CheckStatus answers "does a record currently govern this subject" against
// the request-scoped now. A stale active record is transitioned inline
// (self-heal) so callers never act on an expired record, regardless of sweep
// timing.
//
// Store unavailability propagates as CodeUnavailable: the status is unknown
// and the engine does not guess in either direction.
func (g *Gate) CheckStatus(ctx context.Context, kind models.Kind, subjectID id.SubjectID) (*models.Status, error) {
	ctx, span := g.tracer.Start(ctx, "gate.CheckStatus",
		trace.WithAttributes(attribute.String("record.kind", kind.String())))
	defer span.End()

	record, err := g.store.FindActiveBySubject(ctx, kind, subjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &models.Status{InForce: false}, nil
		}
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation,
				"multiple active records for subject")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "record status unknown")
	}

	now := requestcontext.Now(ctx)
	if record.InForceAt(now) {
		return &models.Status{
			InForce:   true,
			Record:    record,
			Remaining: record.Remaining(now),
		}, nil
	}

	// Staleness gap: flag still reads active but the deadline has passed.
	g.selfHeal(ctx, record)
	return &models.Status{InForce: false, Record: record}, nil
}

// selfHeal opportunistically applies the transition the sweeper would. A lost
// race (noop) means a concurrent sweep or another gate call got there first;
// a write failure downgrades to a log line because the returned status is
// already correct and the sweeper retries the record next run.
func (g *Gate) selfHeal(ctx context.Context, record *models.Record) {
	transitioned, err := g.store.TransitionToInactive(ctx, record.ID)
	if err != nil {
		if g.logger != nil {
			g.logger.WarnContext(ctx, "self-heal transition failed; sweeper will retry",
				"record_id", record.ID, "kind", record.Kind, "error", err)
		}
		return
	}
	if !transitioned {
		// Concurrent transition won; nothing left to do.
		return
	}

	record.Active = false
	if g.metrics != nil {
		g.metrics.IncrementSelfHeals(record.Kind.String())
	}
	if g.logger != nil {
		g.logger.InfoContext(ctx, "stale record healed on read path",
			"record_id", record.ID, "kind", record.Kind, "subject_id", record.SubjectID)
	}
	if g.finalizers != nil {
		if err := g.finalizers.Run(ctx, record); err != nil && g.logger != nil {
			g.logger.WarnContext(ctx, "finalizer failed after self-heal",
				"record_id", record.ID, "kind", record.Kind, "error", err)
		}
	}
}
