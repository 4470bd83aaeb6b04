//go:build integration

package notifier

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "bidhub/pkg/domain"
	"bidhub/pkg/testutil/containers"
)

type RedisNotifierSuite struct {
	suite.Suite
	rc       *containers.RedisContainer
	notifier *Redis
	ctx      context.Context
}

func (s *RedisNotifierSuite) SetupSuite() {
	s.ctx = context.Background()
	s.rc = containers.NewRedisContainer(s.T())
	s.notifier = NewRedis(s.rc.Client)
}

func TestRedisNotifierSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisNotifierSuite))
}

func (s *RedisNotifierSuite) subscribe(userID id.UserID) <-chan Message {
	pubsub := s.rc.Client.Subscribe(s.ctx, "notifications:user:"+userID.String())
	s.T().Cleanup(func() { _ = pubsub.Close() })

	// Receive forces the SUBSCRIBE round trip so a publish right after
	// this returns cannot be lost.
	_, err := pubsub.Receive(s.ctx)
	s.Require().NoError(err)

	out := make(chan Message, 1)
	go func() {
		msg, err := pubsub.ReceiveMessage(s.ctx)
		if err != nil {
			return
		}
		var decoded Message
		if json.Unmarshal([]byte(msg.Payload), &decoded) == nil {
			out <- decoded
		}
	}()
	return out
}

func (s *RedisNotifierSuite) receive(ch <-chan Message) Message {
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		s.Require().FailNow("timed out waiting for notification")
		return Message{}
	}
}

func (s *RedisNotifierSuite) TestBanIssuedReachesSubscriber() {
	userID := id.NewUserID()
	until := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	ch := s.subscribe(userID)

	s.Require().NoError(s.notifier.BanIssued(s.ctx, userID, until, "spam listings"))

	msg := s.receive(ch)
	s.Equal(TypeBanIssued, msg.Type)
	s.Equal(userID, msg.UserID)
	s.Equal("spam listings", msg.Reason)
	s.True(until.Equal(msg.Until))
}

func (s *RedisNotifierSuite) TestBanLiftedReachesSubscriber() {
	userID := id.NewUserID()
	ch := s.subscribe(userID)

	s.Require().NoError(s.notifier.BanLifted(s.ctx, userID))

	msg := s.receive(ch)
	s.Equal(TypeBanLifted, msg.Type)
	s.Equal(userID, msg.UserID)
	s.Empty(msg.Reason)
	s.True(msg.Until.IsZero())
}

func (s *RedisNotifierSuite) TestChannelIsolationPerUser() {
	target := id.NewUserID()
	bystander := id.NewUserID()
	targetCh := s.subscribe(target)
	bystanderCh := s.subscribe(bystander)

	s.Require().NoError(s.notifier.BanLifted(s.ctx, target))

	s.Equal(target, s.receive(targetCh).UserID)
	select {
	case msg := <-bystanderCh:
		s.Failf("unexpected message", "bystander received %+v", msg)
	case <-time.After(300 * time.Millisecond):
	}
}
