// Package notifier delivers ban lifecycle notifications to the affected
// user. The marketplace frontend subscribes per user and renders these as
// in-app toasts.
package notifier

import (
	"context"
	"sync"
	"time"

	id "bidhub/pkg/domain"
)

// Notifier pushes ban lifecycle messages to a user.
type Notifier interface {
	BanIssued(ctx context.Context, userID id.UserID, until time.Time, reason string) error
	BanLifted(ctx context.Context, userID id.UserID) error
}

// Message is the wire shape published to the notification channel.
type Message struct {
	UserID id.UserID `json:"user_id"`
	Type   string    `json:"type"`
	Reason string    `json:"reason,omitempty"`
	Until  time.Time `json:"until,omitzero"`
}

const (
	TypeBanIssued = "ban_issued"
	TypeBanLifted = "ban_lifted"
)

// Memory records notifications for tests and dev wiring.
type Memory struct {
	mu       sync.Mutex
	messages []Message
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) BanIssued(_ context.Context, userID id.UserID, until time.Time, reason string) error {
	m.append(Message{UserID: userID, Type: TypeBanIssued, Reason: reason, Until: until})
	return nil
}

func (m *Memory) BanLifted(_ context.Context, userID id.UserID) error {
	m.append(Message{UserID: userID, Type: TypeBanLifted})
	return nil
}

func (m *Memory) append(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

// Messages returns a snapshot of everything delivered so far.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}
