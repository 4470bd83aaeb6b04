package bid

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bidhub/internal/auction/models"
	id "bidhub/pkg/domain"
	"bidhub/pkg/platform/sentinel"
)

// PostgresStore persists bids in PostgreSQL over a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed bid store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Place(ctx context.Context, b *models.Bid) error {
	const query = `
		INSERT INTO bids (id, listing_id, bidder_id, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(ctx, query,
		uuid.UUID(b.ID),
		uuid.UUID(b.ListingID),
		uuid.UUID(b.BidderID),
		b.Amount,
		b.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("place bid: %w", err)
	}
	return nil
}

func (s *PostgresStore) HighestForListing(ctx context.Context, listingID id.ListingID) (*models.Bid, error) {
	const query = `
		SELECT id, listing_id, bidder_id, amount, placed_at
		FROM bids
		WHERE listing_id = $1
		ORDER BY amount DESC, placed_at ASC
		LIMIT 1
	`
	b, err := scanBid(s.pool.QueryRow(ctx, query, uuid.UUID(listingID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no bids for listing %s: %w", listingID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("highest bid: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListForListing(ctx context.Context, listingID id.ListingID) ([]*models.Bid, error) {
	const query = `
		SELECT id, listing_id, bidder_id, amount, placed_at
		FROM bids
		WHERE listing_id = $1
		ORDER BY amount DESC, placed_at ASC
	`
	rows, err := s.pool.Query(ctx, query, uuid.UUID(listingID))
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	var out []*models.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("list bids: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBid(row pgx.Row) (*models.Bid, error) {
	var (
		b         models.Bid
		bidID     uuid.UUID
		listingID uuid.UUID
		bidderID  uuid.UUID
	)
	if err := row.Scan(&bidID, &listingID, &bidderID, &b.Amount, &b.PlacedAt); err != nil {
		return nil, err
	}
	b.ID = id.BidID(bidID)
	b.ListingID = id.ListingID(listingID)
	b.BidderID = id.UserID(bidderID)
	return &b, nil
}
