// Package service implements the ban issuance flow: admins suspend a user's
// posting/bidding privileges for a bounded period, the expiry engine tracks
// when the suspension lapses.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bidhub/internal/ban/models"
	"bidhub/internal/ban/notifier"
	"bidhub/internal/expiry/gate"
	expiry "bidhub/internal/expiry/models"
	"bidhub/internal/expiry/ports"
	id "bidhub/pkg/domain"
	dErrors "bidhub/pkg/domain-errors"
	"bidhub/pkg/platform/audit"
	"bidhub/pkg/platform/sentinel"
	"bidhub/pkg/requestcontext"
)

type Service struct {
	records        ports.RecordStore
	gate           *gate.Gate
	notifier       notifier.Notifier
	auditPublisher audit.Publisher
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithNotifier(n notifier.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(records ports.RecordStore, statusGate *gate.Gate, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, errors.New("record store is required")
	}
	if statusGate == nil {
		return nil, errors.New("status gate is required")
	}
	svc := &Service{records: records, gate: statusGate}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue suspends a user until now+duration. A zero duration falls back to the
// marketplace default. The one-active-ban rule is enforced by the store's
// uniqueness check at creation, so two admins racing to ban the same user
// cannot both succeed.
func (s *Service) Issue(ctx context.Context, userID, issuedBy id.UserID, reason string, duration time.Duration) (*models.View, error) {
	if userID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if issuedBy.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "issuing admin id is required")
	}
	if duration <= 0 {
		duration = models.DefaultDuration
	}
	if reason == "" {
		reason = "posting privileges suspended by moderation"
	}

	payload, err := models.MarshalPayload(models.Payload{Reason: reason, IssuedBy: issuedBy})
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	record, err := expiry.NewRecord(expiry.KindBan, userID.Subject(), now.Add(duration), payload, now)
	if err != nil {
		return nil, err
	}

	if err := s.records.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "user is already banned")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create ban")
	}

	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Category:  audit.CategorySecurity,
		Action:    audit.EventBanIssued,
		Kind:      expiry.KindBan.String(),
		SubjectID: record.SubjectID,
		RecordID:  record.ID,
		ActorID:   issuedBy,
		Reason:    reason,
	}, "user_id", userID, "until", record.Deadline)

	s.notifyIssued(ctx, userID, record.Deadline, reason)

	return models.ViewFrom(record)
}

// Status answers "is this user currently banned". It goes through the gate
// exclusively, so the answer holds even in the window between a ban lapsing
// and the next sweep run; the gate transitions the stale record as a side
// effect (and the finalizer sends the lift notification).
func (s *Service) Status(ctx context.Context, userID id.UserID) (*models.Status, error) {
	if userID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	status, err := s.gate.CheckStatus(ctx, expiry.KindBan, userID.Subject())
	if err != nil {
		return nil, err
	}
	if !status.InForce {
		return &models.Status{Banned: false}, nil
	}

	p, err := models.PayloadFrom(status.Record)
	if err != nil {
		return nil, err
	}
	return &models.Status{
		Banned:    true,
		Until:     status.Record.Deadline,
		Reason:    p.Reason,
		Remaining: status.Remaining,
	}, nil
}

// Lift releases a ban before its deadline (manual moderator action). Lifting
// an already-inactive ban is an invalid-state error, not a silent no-op, so
// admin tooling surfaces double-clicks and races.
func (s *Service) Lift(ctx context.Context, banID id.RecordID, adminID id.UserID) error {
	if banID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "ban id is required")
	}
	if adminID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "admin id is required")
	}

	record, err := s.records.FindByID(ctx, banID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "ban not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ban")
	}
	if record.Kind != expiry.KindBan {
		return dErrors.New(dErrors.CodeNotFound, "ban not found")
	}

	transitioned, err := s.records.TransitionToInactive(ctx, banID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lift ban")
	}
	if !transitioned {
		return dErrors.New(dErrors.CodeInvalidState, "ban is already lifted")
	}

	userID := id.UserID(record.SubjectID)
	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Category:  audit.CategorySecurity,
		Action:    audit.EventBanLifted,
		Kind:      expiry.KindBan.String(),
		SubjectID: record.SubjectID,
		RecordID:  record.ID,
		ActorID:   adminID,
	}, "user_id", userID)

	s.notifyLifted(ctx, userID)
	return nil
}

// History returns all bans ever applied to a user, newest first.
func (s *Service) History(ctx context.Context, userID id.UserID) ([]*models.View, error) {
	if userID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	records, err := s.records.FindAllBySubject(ctx, expiry.KindBan, userID.Subject())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ban history")
	}
	return viewsFrom(records)
}

// ActiveBans lists every ban still flagged active for the admin dashboard.
// Flags may lag expiry by up to one sweep interval; the dashboard shows them
// as-is and authorization paths never use this listing.
func (s *Service) ActiveBans(ctx context.Context) ([]*models.View, error) {
	records, err := s.records.FindAllActive(ctx, expiry.KindBan)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active bans")
	}
	return viewsFrom(records)
}

// ExpiryFinalizer returns the post-transition hook the sweeper and gate run
// when a ban lapses: tell the user their privileges are back and leave an
// audit trail. Runs exactly once per ban because only the transition winner
// invokes finalizers.
func (s *Service) ExpiryFinalizer() ports.Finalizer {
	return func(ctx context.Context, record *expiry.Record) error {
		userID := id.UserID(record.SubjectID)
		audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
			Category:  audit.CategorySecurity,
			Action:    audit.EventBanExpired,
			Kind:      expiry.KindBan.String(),
			SubjectID: record.SubjectID,
			RecordID:  record.ID,
		}, "user_id", userID)
		s.notifyLifted(ctx, userID)
		return nil
	}
}

// Notification failures never fail the business operation; the ban state is
// already correct and the user discovers it on next interaction anyway.

func (s *Service) notifyIssued(ctx context.Context, userID id.UserID, until time.Time, reason string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.BanIssued(ctx, userID, until, reason); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to deliver ban notification", "user_id", userID, "error", err)
	}
}

func (s *Service) notifyLifted(ctx context.Context, userID id.UserID) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.BanLifted(ctx, userID); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to deliver ban-lifted notification", "user_id", userID, "error", err)
	}
}

func viewsFrom(records []*expiry.Record) ([]*models.View, error) {
	out := make([]*models.View, 0, len(records))
	for _, record := range records {
		view, err := models.ViewFrom(record)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}
