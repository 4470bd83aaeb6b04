// Package ports defines shared interfaces for the auction module.
package ports

import (
	"context"

	"bidhub/internal/auction/models"
	id "bidhub/pkg/domain"
)

// BidStore persists bids placed on listings.
//
// Error contract (pkg/platform/sentinel): HighestForListing returns
// ErrNotFound when a listing has no bids.
type BidStore interface {
	// Place persists a new bid.
	Place(ctx context.Context, bid *models.Bid) error

	// HighestForListing returns the top bid for a listing: highest amount,
	// earliest placement winning ties.
	HighestForListing(ctx context.Context, listingID id.ListingID) (*models.Bid, error)

	// ListForListing returns all bids on a listing, highest first.
	ListForListing(ctx context.Context, listingID id.ListingID) ([]*models.Bid, error)
}

// SettlementStore persists auction outcomes.
//
// Error contract: Create returns ErrConflict when the record was already
// settled (settlement is write-once per record); FindByListing returns
// ErrNotFound for unsettled listings.
type SettlementStore interface {
	Create(ctx context.Context, settlement *models.Settlement) error
	FindByListing(ctx context.Context, listingID id.ListingID) (*models.Settlement, error)
	// ListRecent returns the most recently settled auctions, newest first.
	ListRecent(ctx context.Context, limit int) ([]*models.Settlement, error)
}
