package audit

import (
	"context"
	"log/slog"
	"sync"

	"bidhub/pkg/requestcontext"
)

// Publisher emits audit events for security-relevant operations.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Log writes an audit line to the structured logger and forwards the event to
// the publisher when one is wired. Publisher failures are logged, never
// propagated: audit must not fail the business operation.
func Log(ctx context.Context, logger *slog.Logger, publisher Publisher, event Event, attrs ...any) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID.IsZero() {
		event.ActorID = requestcontext.ActorID(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}

	args := append(attrs, "event", event.Action, "log_type", "audit")
	if event.RequestID != "" {
		args = append(args, "request_id", event.RequestID)
	}
	if logger != nil {
		logger.InfoContext(ctx, event.Action, args...)
	}

	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}

// MemoryPublisher records events in memory for tests and dev wiring.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Emit(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a snapshot of everything emitted so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
