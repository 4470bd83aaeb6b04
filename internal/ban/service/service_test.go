package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bidhub/internal/ban/models"
	"bidhub/internal/ban/notifier"
	"bidhub/internal/expiry/gate"
	expiry "bidhub/internal/expiry/models"
	"bidhub/internal/expiry/ports"
	recordstore "bidhub/internal/expiry/store/record"
	id "bidhub/pkg/domain"
	dErrors "bidhub/pkg/domain-errors"
	"bidhub/pkg/platform/audit"
	"bidhub/pkg/requestcontext"
)

type BanServiceSuite struct {
	suite.Suite
	store    *recordstore.InMemoryStore
	notifier *notifier.Memory
	auditLog *audit.MemoryPublisher
	svc      *Service
	now      time.Time
	admin    id.UserID
}

func (s *BanServiceSuite) SetupTest() {
	s.store = recordstore.New()
	s.notifier = notifier.NewMemory()
	s.auditLog = audit.NewMemoryPublisher()
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s.admin = id.NewUserID()

	statusGate, err := gate.New(s.store)
	s.Require().NoError(err)

	s.svc, err = New(s.store, statusGate,
		WithNotifier(s.notifier),
		WithAuditPublisher(s.auditLog),
	)
	s.Require().NoError(err)
}

func TestBanServiceSuite(t *testing.T) {
	suite.Run(t, new(BanServiceSuite))
}

func (s *BanServiceSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *BanServiceSuite) TestIssue() {
	s.Run("bans a user until now plus duration", func() {
		userID := id.NewUserID()
		view, err := s.svc.Issue(s.ctxAt(s.now), userID, s.admin, "listing spam", 72*time.Hour)
		s.Require().NoError(err)
		s.Equal(userID, view.UserID)
		s.Equal("listing spam", view.Reason)
		s.Equal(s.now.Add(72*time.Hour), view.Until)
		s.True(view.Active)
		s.Equal(s.admin, view.IssuedBy)
	})

	s.Run("zero duration falls back to the marketplace default", func() {
		view, err := s.svc.Issue(s.ctxAt(s.now), id.NewUserID(), s.admin, "abusive bids", 0)
		s.Require().NoError(err)
		s.Equal(s.now.Add(models.DefaultDuration), view.Until)
	})

	s.Run("banning an already banned user conflicts", func() {
		userID := id.NewUserID()
		_, err := s.svc.Issue(s.ctxAt(s.now), userID, s.admin, "first", time.Hour)
		s.Require().NoError(err)

		_, err = s.svc.Issue(s.ctxAt(s.now), userID, s.admin, "second", time.Hour)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("re-banning works after the previous ban expired and was checked", func() {
		userID := id.NewUserID()
		_, err := s.svc.Issue(s.ctxAt(s.now), userID, s.admin, "first", time.Hour)
		s.Require().NoError(err)

		// Gate check after expiry self-heals the stale record.
		later := s.ctxAt(s.now.Add(2 * time.Hour))
		status, err := s.svc.Status(later, userID)
		s.Require().NoError(err)
		s.False(status.Banned)

		_, err = s.svc.Issue(later, userID, s.admin, "second", time.Hour)
		s.Require().NoError(err)
	})

	s.Run("notifies the user and writes an audit event", func() {
		userID := id.NewUserID()
		_, err := s.svc.Issue(s.ctxAt(s.now), userID, s.admin, "fraud", time.Hour)
		s.Require().NoError(err)

		messages := s.notifier.Messages()
		s.Require().NotEmpty(messages)
		last := messages[len(messages)-1]
		s.Equal(notifier.TypeBanIssued, last.Type)
		s.Equal(userID, last.UserID)
		s.Equal("fraud", last.Reason)

		events := s.auditLog.Events()
		s.Require().NotEmpty(events)
		s.Equal(audit.EventBanIssued, events[len(events)-1].Action)
	})

	s.Run("rejects a zero user id", func() {
		_, err := s.svc.Issue(s.ctxAt(s.now), id.UserID{}, s.admin, "x", time.Hour)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *BanServiceSuite) TestStatus() {
	s.Run("unbanned user is not banned", func() {
		status, err := s.svc.Status(s.ctxAt(s.now), id.NewUserID())
		s.Require().NoError(err)
		s.False(status.Banned)
	})

	s.Run("banned user inside the window", func() {
		userID := id.NewUserID()
		_, err := s.svc.Issue(s.ctxAt(s.now), userID, s.admin, "spam", time.Hour)
		s.Require().NoError(err)

		status, err := s.svc.Status(s.ctxAt(s.now.Add(30*time.Minute)), userID)
		s.Require().NoError(err)
		s.True(status.Banned)
		s.Equal("spam", status.Reason)
		s.Equal(30*time.Minute, status.Remaining)
		s.Equal(s.now.Add(time.Hour), status.Until)
	})

	s.Run("lapsed ban reads unbanned before any sweep and heals the flag", func() {
		userID := id.NewUserID()
		view, err := s.svc.Issue(s.ctxAt(s.now), userID, s.admin, "spam", time.Minute)
		s.Require().NoError(err)

		status, err := s.svc.Status(s.ctxAt(s.now.Add(time.Hour)), userID)
		s.Require().NoError(err)
		s.False(status.Banned)

		// Self-heal flipped the persisted flag.
		record, err := s.store.FindByID(context.Background(), view.BanID)
		s.Require().NoError(err)
		s.False(record.Active)
	})

	s.Run("self-heal through a finalizer-wired gate delivers the lift notification", func() {
		svc, err := New(s.store, s.gateWithFinalizer(), WithNotifier(s.notifier))
		s.Require().NoError(err)

		userID := id.NewUserID()
		_, err = svc.Issue(s.ctxAt(s.now), userID, s.admin, "spam", time.Minute)
		s.Require().NoError(err)

		status, err := svc.Status(s.ctxAt(s.now.Add(time.Hour)), userID)
		s.Require().NoError(err)
		s.False(status.Banned)

		messages := s.notifier.Messages()
		s.Require().NotEmpty(messages)
		last := messages[len(messages)-1]
		s.Equal(notifier.TypeBanLifted, last.Type)
		s.Equal(userID, last.UserID)
	})
}

func (s *BanServiceSuite) TestLift() {
	s.Run("lifts an active ban and notifies the user", func() {
		userID := id.NewUserID()
		view, err := s.svc.Issue(s.ctxAt(s.now), userID, s.admin, "spam", 24*time.Hour)
		s.Require().NoError(err)

		err = s.svc.Lift(s.ctxAt(s.now.Add(time.Hour)), view.BanID, s.admin)
		s.Require().NoError(err)

		status, err := s.svc.Status(s.ctxAt(s.now.Add(2*time.Hour)), userID)
		s.Require().NoError(err)
		s.False(status.Banned)

		messages := s.notifier.Messages()
		s.Equal(notifier.TypeBanLifted, messages[len(messages)-1].Type)
	})

	s.Run("lifting twice is an invalid-state error", func() {
		view, err := s.svc.Issue(s.ctxAt(s.now), id.NewUserID(), s.admin, "spam", 24*time.Hour)
		s.Require().NoError(err)

		s.Require().NoError(s.svc.Lift(s.ctxAt(s.now), view.BanID, s.admin))
		err = s.svc.Lift(s.ctxAt(s.now), view.BanID, s.admin)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown ban id is not found", func() {
		err := s.svc.Lift(s.ctxAt(s.now), id.NewRecordID(), s.admin)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *BanServiceSuite) TestHistoryAndActive() {
	userID := id.NewUserID()

	first, err := s.svc.Issue(s.ctxAt(s.now), userID, s.admin, "first offense", time.Hour)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Lift(s.ctxAt(s.now.Add(time.Minute)), first.BanID, s.admin))

	_, err = s.svc.Issue(s.ctxAt(s.now.Add(time.Hour)), userID, s.admin, "second offense", time.Hour)
	s.Require().NoError(err)

	s.Run("history returns lifted and active bans newest first", func() {
		history, err := s.svc.History(s.ctxAt(s.now), userID)
		s.Require().NoError(err)
		s.Require().Len(history, 2)
		s.Equal("second offense", history[0].Reason)
		s.True(history[0].Active)
		s.Equal("first offense", history[1].Reason)
		s.False(history[1].Active)
	})

	s.Run("active bans listing includes only active records", func() {
		active, err := s.svc.ActiveBans(s.ctxAt(s.now))
		s.Require().NoError(err)
		s.Require().Len(active, 1)
		s.Equal("second offense", active[0].Reason)
	})
}

func (s *BanServiceSuite) TestExpiryFinalizer() {
	s.Run("sends the lift notification and audits the expiry", func() {
		userID := id.NewUserID()
		record, err := expiry.NewRecord(expiry.KindBan, userID.Subject(), s.now.Add(time.Minute), nil, s.now)
		s.Require().NoError(err)

		finalize := s.svc.ExpiryFinalizer()
		s.Require().NoError(finalize(s.ctxAt(s.now.Add(time.Hour)), record))

		messages := s.notifier.Messages()
		s.Require().NotEmpty(messages)
		s.Equal(notifier.TypeBanLifted, messages[len(messages)-1].Type)
		s.Equal(userID, messages[len(messages)-1].UserID)

		events := s.auditLog.Events()
		s.Require().NotEmpty(events)
		s.Equal(audit.EventBanExpired, events[len(events)-1].Action)
	})
}

func (s *BanServiceSuite) gateWithFinalizer() *gate.Gate {
	registry := ports.NewFinalizerRegistry()
	registry.Register(expiry.KindBan, s.svc.ExpiryFinalizer())
	g, err := gate.New(s.store, gate.WithFinalizers(registry))
	s.Require().NoError(err)
	return g
}
