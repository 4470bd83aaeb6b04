package audit

import (
	"time"

	id "bidhub/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. Categories
// map onto retention policies downstream.
type EventCategory string

const (
	// CategorySecurity covers enforcement actions against accounts.
	// Examples: ban issued, ban lifted, ban expired.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle events useful for
	// debugging and operational visibility.
	// Examples: listing opened, auction settled, sweep completed.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	// Kind is the expirable record kind the action concerns ("ban", "auction").
	Kind string `json:"kind,omitempty"`
	// SubjectID is the governed entity (user for bans, listing for auctions).
	SubjectID id.SubjectID `json:"subject_id"`
	RecordID  id.RecordID  `json:"record_id"`
	// ActorID tracks who performed the action when one exists; background
	// sweeps leave it zero.
	ActorID id.UserID `json:"actor_id"`
	Reason  string    `json:"reason,omitempty"`
	// RequestID is the correlation ID from the HTTP request context, when any.
	RequestID string `json:"request_id,omitempty"`
}

const (
	EventBanIssued      = "ban_issued"
	EventBanLifted      = "ban_lifted"
	EventBanExpired     = "ban_expired"
	EventListingOpened  = "listing_opened"
	EventAuctionSettled = "auction_settled"
)
