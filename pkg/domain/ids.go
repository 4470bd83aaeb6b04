// Package domain holds the typed identifiers shared across bidhub modules.
// Wrapping uuid.UUID in distinct types keeps a user ID from being passed
// where a listing ID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "bidhub/pkg/domain-errors"
)

type (
	// UserID identifies a marketplace account (buyers, sellers, admins).
	UserID uuid.UUID
	// ListingID identifies an auction listing.
	ListingID uuid.UUID
	// RecordID identifies one expirable record (a ban, an open-auction window).
	RecordID uuid.UUID
	// SubjectID identifies the entity an expirable record governs. Ban records
	// carry a UserID here, auction records a ListingID.
	SubjectID uuid.UUID
	// BidID identifies a single bid on a listing.
	BidID uuid.UUID
)

func NewUserID() UserID       { return UserID(uuid.New()) }
func NewListingID() ListingID { return ListingID(uuid.New()) }
func NewRecordID() RecordID   { return RecordID(uuid.New()) }
func NewBidID() BidID         { return BidID(uuid.New()) }

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id ListingID) String() string { return uuid.UUID(id).String() }
func (id RecordID) String() string  { return uuid.UUID(id).String() }
func (id SubjectID) String() string { return uuid.UUID(id).String() }
func (id BidID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ListingID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SubjectID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id BidID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }

// Subject converts a domain identifier to the generic subject form used by
// the expiry engine.
func (id UserID) Subject() SubjectID    { return SubjectID(id) }
func (id ListingID) Subject() SubjectID { return SubjectID(id) }

// Text marshaling keeps the canonical UUID string form in JSON payloads.
// Defined types do not inherit uuid.UUID's marshalers, so spell them out.

func (id UserID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id ListingID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id RecordID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id SubjectID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id BidID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

func (id *ListingID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = ListingID(u)
	return nil
}

func (id *RecordID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = RecordID(u)
	return nil
}

func (id *SubjectID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = SubjectID(u)
	return nil
}

func (id *BidID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = BidID(u)
	return nil
}

// Parse functions enforce the trust-boundary invariant: IDs must be valid,
// non-nil UUIDs. Direct casting bypasses validation and belongs only in code
// that already holds a parsed UUID.

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

func ParseListingID(s string) (ListingID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ListingID{}, err
	}
	return ListingID(u), nil
}

func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return RecordID{}, err
	}
	return RecordID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid id format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be nil")
	}
	return u, nil
}
