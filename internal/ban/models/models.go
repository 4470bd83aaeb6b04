// Package models defines the ban domain's view of expirable records. A ban
// is an expiry Record of KindBan whose payload carries the reason and the
// issuing admin.
package models

import (
	"encoding/json"
	"time"

	expiry "bidhub/internal/expiry/models"
	id "bidhub/pkg/domain"
	dErrors "bidhub/pkg/domain-errors"
)

// DefaultDuration matches the marketplace's standard warning suspension.
const DefaultDuration = 24 * time.Hour

// Payload is the ban-specific data stored opaquely on the expiry record.
type Payload struct {
	Reason   string    `json:"reason"`
	IssuedBy id.UserID `json:"issued_by"`
}

// MarshalPayload encodes ban details for record creation.
func MarshalPayload(p Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode ban payload")
	}
	return raw, nil
}

// PayloadFrom decodes the ban details off an expiry record. A record with a
// malformed payload is a data-integrity bug, reported as such.
func PayloadFrom(record *expiry.Record) (Payload, error) {
	var p Payload
	if len(record.Payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(record.Payload, &p); err != nil {
		return p, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "malformed ban payload")
	}
	return p, nil
}

// View is the ban read model exposed to admin listings and history pages.
// Active reflects the persisted flag and may lag expiry; it is display-only.
type View struct {
	BanID     id.RecordID `json:"ban_id"`
	UserID    id.UserID   `json:"user_id"`
	Reason    string      `json:"reason"`
	Until     time.Time   `json:"until"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
	IssuedBy  id.UserID   `json:"issued_by"`
}

// ViewFrom projects an expiry record into the ban read model.
func ViewFrom(record *expiry.Record) (*View, error) {
	p, err := PayloadFrom(record)
	if err != nil {
		return nil, err
	}
	return &View{
		BanID:     record.ID,
		UserID:    id.UserID(record.SubjectID),
		Reason:    p.Reason,
		Until:     record.Deadline,
		Active:    record.Active,
		CreatedAt: record.CreatedAt,
		IssuedBy:  p.IssuedBy,
	}, nil
}

// Status is the authorization-facing answer for "can this user post/bid
// right now". Unlike View.Active, Banned is always policy-accurate.
type Status struct {
	Banned    bool          `json:"banned"`
	Until     time.Time     `json:"until,omitzero"`
	Reason    string        `json:"reason,omitempty"`
	Remaining time.Duration `json:"remaining,omitempty"`
}
