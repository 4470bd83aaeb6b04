package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"bidhub/internal/expiry/models"
	"bidhub/internal/expiry/ports"
	"bidhub/internal/expiry/ports/mocks"
	recordstore "bidhub/internal/expiry/store/record"
	id "bidhub/pkg/domain"
	dErrors "bidhub/pkg/domain-errors"
	"bidhub/pkg/platform/sentinel"
	"bidhub/pkg/requestcontext"
)

type GateSuite struct {
	suite.Suite
	store *recordstore.InMemoryStore
	gate  *Gate
	now   time.Time
}

func (s *GateSuite) SetupTest() {
	s.store = recordstore.New()
	var err error
	s.gate, err = New(s.store)
	s.Require().NoError(err)
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *GateSuite) createRecord(kind models.Kind, subject id.SubjectID, deadline time.Time) *models.Record {
	record, err := models.NewRecord(kind, subject, deadline, nil, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), record))
	return record
}

func (s *GateSuite) TestCheckStatus() {
	s.Run("no record means not in force", func() {
		status, err := s.gate.CheckStatus(s.ctxAt(s.now), models.KindBan, id.NewUserID().Subject())
		s.Require().NoError(err)
		s.False(status.InForce)
		s.Nil(status.Record)
	})

	s.Run("active record before its deadline is in force", func() {
		subject := id.NewUserID().Subject()
		record := s.createRecord(models.KindBan, subject, s.now.Add(time.Hour))

		status, err := s.gate.CheckStatus(s.ctxAt(s.now), models.KindBan, subject)
		s.Require().NoError(err)
		s.True(status.InForce)
		s.Equal(record.ID, status.Record.ID)
		s.Equal(time.Hour, status.Remaining)
	})

	s.Run("deadline boundary is not in force", func() {
		subject := id.NewUserID().Subject()
		record := s.createRecord(models.KindBan, subject, s.now.Add(time.Hour))

		status, err := s.gate.CheckStatus(s.ctxAt(record.Deadline), models.KindBan, subject)
		s.Require().NoError(err)
		s.False(status.InForce)
	})

	s.Run("kinds do not bleed into each other", func() {
		subject := id.NewUserID().Subject()
		s.createRecord(models.KindBan, subject, s.now.Add(time.Hour))

		status, err := s.gate.CheckStatus(s.ctxAt(s.now), models.KindAuction, subject)
		s.Require().NoError(err)
		s.False(status.InForce)
	})
}

func (s *GateSuite) TestSelfHeal() {
	s.Run("stale record is reported not in force and healed inline", func() {
		subject := id.NewUserID().Subject()
		record := s.createRecord(models.KindBan, subject, s.now.Add(time.Minute))

		// Check lands after the deadline but before any sweep.
		status, err := s.gate.CheckStatus(s.ctxAt(s.now.Add(time.Hour)), models.KindBan, subject)
		s.Require().NoError(err)
		s.False(status.InForce)

		stored, err := s.store.FindByID(context.Background(), record.ID)
		s.Require().NoError(err)
		s.False(stored.Active, "gate should have transitioned the stale record")
	})

	s.Run("self-heal runs the kind's finalizer exactly once", func() {
		finalized := 0
		registry := ports.NewFinalizerRegistry()
		registry.Register(models.KindBan, func(ctx context.Context, record *models.Record) error {
			finalized++
			return nil
		})
		healGate, err := New(s.store, WithFinalizers(registry))
		s.Require().NoError(err)

		subject := id.NewUserID().Subject()
		s.createRecord(models.KindBan, subject, s.now.Add(time.Minute))

		later := s.ctxAt(s.now.Add(time.Hour))
		_, err = healGate.CheckStatus(later, models.KindBan, subject)
		s.Require().NoError(err)
		s.Equal(1, finalized)

		// Second check finds no active record; the finalizer does not rerun.
		_, err = healGate.CheckStatus(later, models.KindBan, subject)
		s.Require().NoError(err)
		s.Equal(1, finalized)
	})

	s.Run("lost transition race is silent and skips the finalizer", func() {
		finalized := 0
		registry := ports.NewFinalizerRegistry()
		registry.Register(models.KindAuction, func(ctx context.Context, record *models.Record) error {
			finalized++
			return nil
		})

		subject := id.NewListingID().Subject()
		record := s.createRecord(models.KindAuction, subject, s.now.Add(time.Minute))
		raceStore := &transitionRaceStore{InMemoryStore: s.store, raceID: record.ID}
		raceGate, err := New(raceStore, WithFinalizers(registry))
		s.Require().NoError(err)

		status, err := raceGate.CheckStatus(s.ctxAt(s.now.Add(time.Hour)), models.KindAuction, subject)
		s.Require().NoError(err)
		s.False(status.InForce)
		s.Equal(0, finalized, "the racing winner owns the finalizer, not us")
	})

	s.Run("failed self-heal still answers not in force", func() {
		subject := id.NewUserID().Subject()
		record := s.createRecord(models.KindBan, subject, s.now.Add(time.Minute))
		failStore := &transitionFailStore{InMemoryStore: s.store, failID: record.ID}
		failGate, err := New(failStore)
		s.Require().NoError(err)

		status, err := failGate.CheckStatus(s.ctxAt(s.now.Add(time.Hour)), models.KindBan, subject)
		s.Require().NoError(err)
		s.False(status.InForce, "answer stays policy-accurate even when the write fails")
	})
}

func (s *GateSuite) TestStoreFailures() {
	ctrl := gomock.NewController(s.T())
	defer ctrl.Finish()

	s.Run("store unavailability maps to CodeUnavailable", func() {
		store := mocks.NewMockRecordStore(ctrl)
		store.EXPECT().FindActiveBySubject(gomock.Any(), models.KindBan, gomock.Any()).
			Return(nil, errors.New("connection refused"))
		failGate, err := New(store)
		s.Require().NoError(err)

		_, err = failGate.CheckStatus(s.ctxAt(s.now), models.KindBan, id.NewUserID().Subject())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("multiple active records map to CodeInvariantViolation", func() {
		store := mocks.NewMockRecordStore(ctrl)
		store.EXPECT().FindActiveBySubject(gomock.Any(), models.KindBan, gomock.Any()).
			Return(nil, sentinel.ErrInvalidState)
		invalidGate, err := New(store)
		s.Require().NoError(err)

		_, err = invalidGate.CheckStatus(s.ctxAt(s.now), models.KindBan, id.NewUserID().Subject())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

// transitionRaceStore simulates a concurrent sweep winning the conditional
// write just before the gate's self-heal.
type transitionRaceStore struct {
	*recordstore.InMemoryStore
	raceID id.RecordID
}

func (s *transitionRaceStore) TransitionToInactive(ctx context.Context, recordID id.RecordID) (bool, error) {
	if recordID == s.raceID {
		_, err := s.InMemoryStore.TransitionToInactive(ctx, recordID)
		if err != nil {
			return false, err
		}
		return false, nil
	}
	return s.InMemoryStore.TransitionToInactive(ctx, recordID)
}

type transitionFailStore struct {
	*recordstore.InMemoryStore
	failID id.RecordID
}

func (s *transitionFailStore) TransitionToInactive(ctx context.Context, recordID id.RecordID) (bool, error) {
	if recordID == s.failID {
		return false, errors.New("connection reset")
	}
	return s.InMemoryStore.TransitionToInactive(ctx, recordID)
}

