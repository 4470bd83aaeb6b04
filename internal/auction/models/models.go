// Package models defines the auction domain's view of expirable records. An
// open auction window is an expiry Record of KindAuction; bids and the final
// settlement live beside it in their own stores.
package models

import (
	"encoding/json"
	"time"

	expiry "bidhub/internal/expiry/models"
	id "bidhub/pkg/domain"
	dErrors "bidhub/pkg/domain-errors"
)

// Payload is the auction-specific data stored opaquely on the expiry record.
type Payload struct {
	SellerID   id.UserID `json:"seller_id"`
	Title      string    `json:"title"`
	StartPrice int64     `json:"start_price"`
}

// MarshalPayload encodes listing details for record creation.
func MarshalPayload(p Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode listing payload")
	}
	return raw, nil
}

// PayloadFrom decodes the listing details off an expiry record.
func PayloadFrom(record *expiry.Record) (Payload, error) {
	var p Payload
	if len(record.Payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(record.Payload, &p); err != nil {
		return p, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "malformed listing payload")
	}
	return p, nil
}

// Bid is one offer on an open listing. Amounts are in minor currency units.
type Bid struct {
	ID        id.BidID     `json:"id"`
	ListingID id.ListingID `json:"listing_id"`
	BidderID  id.UserID    `json:"bidder_id"`
	Amount    int64        `json:"amount"`
	PlacedAt  time.Time    `json:"placed_at"`
}

// NewBid creates a Bid with domain invariant validation.
func NewBid(listingID id.ListingID, bidderID id.UserID, amount int64, now time.Time) (*Bid, error) {
	if listingID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "listing id cannot be zero")
	}
	if bidderID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "bidder id cannot be zero")
	}
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "bid amount must be positive")
	}
	return &Bid{
		ID:        id.NewBidID(),
		ListingID: listingID,
		BidderID:  bidderID,
		Amount:    amount,
		PlacedAt:  now,
	}, nil
}

// Outcome classifies how a closed auction ended.
type Outcome string

const (
	// OutcomeSold: the highest bidder won; payment is pending.
	OutcomeSold Outcome = "sold"
	// OutcomeNoSale: the window closed without a single bid.
	OutcomeNoSale Outcome = "no_sale"
)

// Settlement is the immutable result written exactly once when an auction
// window closes. RecordID ties it back to the expiry record that governed
// the window.
type Settlement struct {
	RecordID   id.RecordID  `json:"record_id"`
	ListingID  id.ListingID `json:"listing_id"`
	Outcome    Outcome      `json:"outcome"`
	WinnerID   *id.UserID   `json:"winner_id,omitempty"`
	FinalPrice int64        `json:"final_price,omitempty"`
	SettledAt  time.Time    `json:"settled_at"`
}

// ListingStatus is the bidder-facing answer for "is this auction still
// open". Open is gate-accurate; it never trusts the raw persisted flag.
type ListingStatus struct {
	ListingID  id.ListingID  `json:"listing_id"`
	Open       bool          `json:"open"`
	Title      string        `json:"title,omitempty"`
	SellerID   id.UserID     `json:"seller_id,omitzero"`
	StartPrice int64         `json:"start_price,omitempty"`
	ClosesAt   time.Time     `json:"closes_at,omitzero"`
	Remaining  time.Duration `json:"remaining,omitempty"`
	HighestBid *Bid          `json:"highest_bid,omitempty"`
}

// SettlementView joins a settlement with its originating record for admin
// listings.
type SettlementView struct {
	Settlement Settlement    `json:"settlement"`
	Record     expiry.Record `json:"record"`
}
