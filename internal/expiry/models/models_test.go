package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "bidhub/pkg/domain"
	dErrors "bidhub/pkg/domain-errors"
)

type RecordSuite struct {
	suite.Suite
	now time.Time
}

func (s *RecordSuite) SetupTest() {
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestRecordSuite(t *testing.T) {
	suite.Run(t, new(RecordSuite))
}

func (s *RecordSuite) TestNewRecord() {
	subject := id.NewUserID().Subject()

	s.Run("creates an active record with the given deadline", func() {
		record, err := NewRecord(KindBan, subject, s.now.Add(24*time.Hour), nil, s.now)
		s.Require().NoError(err)
		s.True(record.Active)
		s.Equal(KindBan, record.Kind)
		s.Equal(subject, record.SubjectID)
		s.Equal(s.now.Add(24*time.Hour), record.Deadline)
		s.Equal(s.now, record.CreatedAt)
		s.False(record.ID.IsZero())
	})

	s.Run("rejects an unknown kind", func() {
		_, err := NewRecord(Kind("lease"), subject, s.now.Add(time.Hour), nil, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects a zero subject", func() {
		_, err := NewRecord(KindBan, id.SubjectID{}, s.now.Add(time.Hour), nil, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects a deadline equal to now", func() {
		_, err := NewRecord(KindBan, subject, s.now, nil, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects a deadline in the past", func() {
		_, err := NewRecord(KindAuction, subject, s.now.Add(-time.Minute), nil, s.now)
		s.Require().Error(err)
	})
}

func (s *RecordSuite) TestInForceAt() {
	record := &Record{
		ID:       id.NewRecordID(),
		Kind:     KindBan,
		Deadline: s.now.Add(time.Hour),
		Active:   true,
	}

	s.Run("in force before the deadline", func() {
		s.True(record.InForceAt(s.now))
		s.False(record.StaleAt(s.now))
	})

	s.Run("not in force exactly at the deadline", func() {
		at := record.Deadline
		s.False(record.InForceAt(at))
		s.True(record.StaleAt(at))
	})

	s.Run("not in force after the deadline even while flagged active", func() {
		later := record.Deadline.Add(time.Second)
		s.False(record.InForceAt(later))
		s.True(record.StaleAt(later))
	})

	s.Run("inactive record is never in force nor stale", func() {
		inactive := record.Clone()
		inactive.Active = false
		s.False(inactive.InForceAt(s.now))
		s.False(inactive.StaleAt(record.Deadline.Add(time.Hour)))
	})
}

func (s *RecordSuite) TestRemaining() {
	record := &Record{
		Deadline: s.now.Add(30 * time.Minute),
		Active:   true,
	}

	s.Run("reports time until the deadline", func() {
		s.Equal(30*time.Minute, record.Remaining(s.now))
	})

	s.Run("never negative after expiry", func() {
		s.Equal(time.Duration(0), record.Remaining(s.now.Add(time.Hour)))
	})

	s.Run("zero for inactive records", func() {
		inactive := record.Clone()
		inactive.Active = false
		s.Equal(time.Duration(0), inactive.Remaining(s.now))
	})
}

func (s *RecordSuite) TestClone() {
	payload := json.RawMessage(`{"reason":"spam"}`)
	record := &Record{
		ID:      id.NewRecordID(),
		Kind:    KindBan,
		Active:  true,
		Payload: payload,
	}

	clone := record.Clone()
	s.Equal(record, clone)

	clone.Payload[2] = 'X'
	s.Equal(json.RawMessage(`{"reason":"spam"}`), record.Payload)
}
