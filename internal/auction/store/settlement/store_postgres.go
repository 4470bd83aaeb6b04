package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bidhub/internal/auction/models"
	id "bidhub/pkg/domain"
	"bidhub/pkg/platform/sentinel"
)

// uniqueViolation backs the write-once-per-record settlement rule.
const uniqueViolation = "23505"

// PostgresStore persists settlements in PostgreSQL over a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed settlement store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, settlement *models.Settlement) error {
	const query = `
		INSERT INTO auction_settlements (record_id, listing_id, outcome, winner_id, final_price, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var winnerID any
	if settlement.WinnerID != nil {
		winnerID = uuid.UUID(*settlement.WinnerID)
	}
	_, err := s.pool.Exec(ctx, query,
		uuid.UUID(settlement.RecordID),
		uuid.UUID(settlement.ListingID),
		string(settlement.Outcome),
		winnerID,
		settlement.FinalPrice,
		settlement.SettledAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("record %s already settled: %w", settlement.RecordID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create settlement: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByListing(ctx context.Context, listingID id.ListingID) (*models.Settlement, error) {
	const query = selectSettlements + ` WHERE listing_id = $1`
	settlement, err := scanSettlement(s.pool.QueryRow(ctx, query, uuid.UUID(listingID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("listing %s not settled: %w", listingID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find settlement: %w", err)
	}
	return settlement, nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*models.Settlement, error) {
	const query = selectSettlements + ` ORDER BY settled_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	var out []*models.Settlement
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("list settlements: %w", err)
		}
		out = append(out, settlement)
	}
	return out, rows.Err()
}

const selectSettlements = `
	SELECT record_id, listing_id, outcome, winner_id, final_price, settled_at
	FROM auction_settlements
`

func scanSettlement(row pgx.Row) (*models.Settlement, error) {
	var (
		settlement models.Settlement
		recordID   uuid.UUID
		listingID  uuid.UUID
		outcome    string
		winnerID   *uuid.UUID
	)
	if err := row.Scan(&recordID, &listingID, &outcome, &winnerID, &settlement.FinalPrice, &settlement.SettledAt); err != nil {
		return nil, err
	}
	settlement.RecordID = id.RecordID(recordID)
	settlement.ListingID = id.ListingID(listingID)
	settlement.Outcome = models.Outcome(outcome)
	if winnerID != nil {
		winner := id.UserID(*winnerID)
		settlement.WinnerID = &winner
	}
	return &settlement, nil
}
