// Package models defines the expirable record shape shared by every
// time-bounded entity in bidhub (user bans, open-auction windows).
package models

import (
	"encoding/json"
	"time"

	id "bidhub/pkg/domain"
	dErrors "bidhub/pkg/domain-errors"
)

// Kind distinguishes the domain a record belongs to. Uniqueness of the active
// record is scoped per (kind, subject): a banned user can still have an open
// listing record on a different subject.
type Kind string

const (
	// KindBan governs a user's posting/bidding privileges until a deadline.
	KindBan Kind = "ban"
	// KindAuction keeps an auction listing open until its closing time.
	KindAuction Kind = "auction"
)

// IsValid checks if the kind is one of the supported enum values.
func (k Kind) IsValid() bool {
	switch k {
	case KindBan, KindAuction:
		return true
	}
	return false
}

// String returns the string representation.
func (k Kind) String() string { return string(k) }

// Record is one time-bounded entity: it governs its subject until Deadline.
//
// Active is a persisted projection maintained by the sweeper for cheap bulk
// queries. It is NOT authoritative for individual decisions -- only
// InForceAt evaluated against a fresh "now" is. The gate self-heals the flag
// when it observes the two disagreeing.
type Record struct {
	ID        id.RecordID     `json:"id"`
	Kind      Kind            `json:"kind"`
	SubjectID id.SubjectID    `json:"subject_id"`
	Deadline  time.Time       `json:"deadline"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewRecord creates a Record with domain invariant validation. The deadline
// must be strictly after now: a record that is born expired is a caller bug.
func NewRecord(kind Kind, subjectID id.SubjectID, deadline time.Time, payload json.RawMessage, now time.Time) (*Record, error) {
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid record kind")
	}
	if subjectID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subject id cannot be zero")
	}
	if !deadline.After(now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "deadline must be in the future")
	}
	return &Record{
		ID:        id.NewRecordID(),
		Kind:      kind,
		SubjectID: subjectID,
		Deadline:  deadline,
		Active:    true,
		CreatedAt: now,
		Payload:   payload,
	}, nil
}

// InForceAt reports whether the record currently governs its subject. This is
// the single definition of "in force": the sweeper's selection predicate and
// the gate's synchronous check are both phrased in terms of it.
func (r *Record) InForceAt(now time.Time) bool {
	return r.Active && now.Before(r.Deadline)
}

// StaleAt reports whether the persisted flag lags reality: still marked
// active although the deadline has passed. Stale records are the sweeper's
// work queue and the gate's self-heal trigger.
func (r *Record) StaleAt(now time.Time) bool {
	return r.Active && !now.Before(r.Deadline)
}

// Remaining returns how long the record stays in force from now, never
// negative.
func (r *Record) Remaining(now time.Time) time.Duration {
	if !r.InForceAt(now) {
		return 0
	}
	return r.Deadline.Sub(now)
}

// Clone returns a deep copy so store callers can't mutate shared state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Payload != nil {
		out.Payload = make(json.RawMessage, len(r.Payload))
		copy(out.Payload, r.Payload)
	}
	return &out
}

// Status is the gate's answer to "does a record currently govern this
// subject". Record is nil when no active record exists.
type Status struct {
	InForce   bool
	Record    *Record
	Remaining time.Duration
}
