package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bidhub/internal/expiry/models"
	"bidhub/internal/expiry/ports"
	recordstore "bidhub/internal/expiry/store/record"
	id "bidhub/pkg/domain"
)

type SweeperSuite struct {
	suite.Suite
	store *recordstore.InMemoryStore
	ctx   context.Context
	now   time.Time
}

func (s *SweeperSuite) SetupTest() {
	s.store = recordstore.New()
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestSweeperSuite(t *testing.T) {
	suite.Run(t, new(SweeperSuite))
}

func (s *SweeperSuite) newSweeper(at time.Time, opts ...Option) *Sweeper {
	opts = append(opts, WithClock(func() time.Time { return at }))
	sw, err := New(s.store, opts...)
	s.Require().NoError(err)
	return sw
}

func (s *SweeperSuite) createRecord(kind models.Kind, deadline time.Time) *models.Record {
	var subject id.SubjectID
	if kind == models.KindAuction {
		subject = id.NewListingID().Subject()
	} else {
		subject = id.NewUserID().Subject()
	}
	record, err := models.NewRecord(kind, subject, deadline, nil, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, record))
	return record
}

func (s *SweeperSuite) TestRunSweep() {
	s.Run("transitions only records past their deadline", func() {
		expired := s.createRecord(models.KindBan, s.now.Add(time.Minute))
		current := s.createRecord(models.KindBan, s.now.Add(time.Hour))

		sw := s.newSweeper(s.now.Add(30 * time.Minute))
		transitioned, err := sw.RunSweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, transitioned)

		stored, err := s.store.FindByID(s.ctx, expired.ID)
		s.Require().NoError(err)
		s.False(stored.Active)

		stored, err = s.store.FindByID(s.ctx, current.ID)
		s.Require().NoError(err)
		s.True(stored.Active)
	})

	s.Run("sweeps all kinds in one batch", func() {
		s.createRecord(models.KindBan, s.now.Add(time.Minute))
		s.createRecord(models.KindAuction, s.now.Add(2*time.Minute))

		sw := s.newSweeper(s.now.Add(time.Hour))
		transitioned, err := sw.RunSweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, transitioned)
	})

	s.Run("empty batch is a no-op", func() {
		sw := s.newSweeper(s.now)
		transitioned, err := sw.RunSweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(0, transitioned)
	})
}

func (s *SweeperSuite) TestIdempotency() {
	s.Run("immediate second run transitions nothing", func() {
		s.createRecord(models.KindBan, s.now.Add(time.Minute))

		sw := s.newSweeper(s.now.Add(time.Hour))
		first, err := sw.RunSweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, first)

		second, err := sw.RunSweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(0, second)
	})

	s.Run("finalizer runs once even across overlapping sweeps", func() {
		finalized := 0
		registry := ports.NewFinalizerRegistry()
		registry.Register(models.KindAuction, func(ctx context.Context, record *models.Record) error {
			finalized++
			return nil
		})
		s.createRecord(models.KindAuction, s.now.Add(time.Minute))

		sw := s.newSweeper(s.now.Add(time.Hour), WithFinalizers(registry))
		_, err := sw.RunSweep(s.ctx)
		s.Require().NoError(err)
		_, err = sw.RunSweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, finalized)
	})
}

func (s *SweeperSuite) TestFailureIsolation() {
	s.Run("one failing record does not abort the batch", func() {
		bad := s.createRecord(models.KindBan, s.now.Add(time.Minute))
		good := s.createRecord(models.KindBan, s.now.Add(2*time.Minute))

		failing := &flakyStore{InMemoryStore: s.store, failID: bad.ID}
		sw, err := New(failing, WithClock(func() time.Time { return s.now.Add(time.Hour) }))
		s.Require().NoError(err)

		transitioned, err := sw.RunSweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, transitioned)

		stored, err := s.store.FindByID(s.ctx, good.ID)
		s.Require().NoError(err)
		s.False(stored.Active)

		// The failed record stays stale and is retried by the next run.
		failing.failID = id.RecordID{}
		transitioned, err = sw.RunSweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, transitioned)
	})

	s.Run("selection failure surfaces as the run error", func() {
		broken := &brokenQueueStore{InMemoryStore: s.store}
		sw, err := New(broken, WithClock(func() time.Time { return s.now }))
		s.Require().NoError(err)

		_, err = sw.RunSweep(s.ctx)
		s.Require().Error(err)
	})
}

func (s *SweeperSuite) TestStart() {
	s.Run("stops when the context is cancelled", func() {
		sw := s.newSweeper(s.now)
		ctx, cancel := context.WithCancel(s.ctx)
		done := make(chan error, 1)
		go func() {
			done <- sw.Start(ctx, 10*time.Millisecond)
		}()
		time.Sleep(30 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			s.Require().ErrorIs(err, context.Canceled)
		case <-time.After(time.Second):
			s.Fail("sweeper did not stop after cancellation")
		}
	})
}

type flakyStore struct {
	*recordstore.InMemoryStore
	failID id.RecordID
}

func (s *flakyStore) TransitionToInactive(ctx context.Context, recordID id.RecordID) (bool, error) {
	if recordID == s.failID {
		return false, errors.New("deadlock detected")
	}
	return s.InMemoryStore.TransitionToInactive(ctx, recordID)
}

type brokenQueueStore struct {
	*recordstore.InMemoryStore
}

func (s *brokenQueueStore) FindStaleActive(ctx context.Context, now time.Time) ([]*models.Record, error) {
	return nil, errors.New("connection refused")
}
