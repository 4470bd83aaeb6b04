// Package service implements the auction listing flow: sellers open
// time-limited listings, bidders raise the price while the window is open,
// and the expiry engine's transition drives settlement exactly once.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bidhub/internal/auction/models"
	"bidhub/internal/auction/ports"
	banmodels "bidhub/internal/ban/models"
	"bidhub/internal/expiry/gate"
	expiry "bidhub/internal/expiry/models"
	expiryports "bidhub/internal/expiry/ports"
	id "bidhub/pkg/domain"
	dErrors "bidhub/pkg/domain-errors"
	"bidhub/pkg/platform/audit"
	"bidhub/pkg/platform/sentinel"
	"bidhub/pkg/requestcontext"
)

// DefaultDuration is the standard auction window for quick listings.
const DefaultDuration = 24 * time.Hour

// PrivilegeChecker answers whether a user is currently banned. Satisfied by
// the ban service; kept as a local interface so the auction module doesn't
// depend on ban wiring in tests.
type PrivilegeChecker interface {
	Status(ctx context.Context, userID id.UserID) (*banmodels.Status, error)
}

type Service struct {
	records        expiryports.RecordStore
	gate           *gate.Gate
	bids           ports.BidStore
	settlements    ports.SettlementStore
	privileges     PrivilegeChecker
	auditPublisher audit.Publisher
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPrivilegeChecker(checker PrivilegeChecker) Option {
	return func(s *Service) {
		s.privileges = checker
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(
	records expiryports.RecordStore,
	statusGate *gate.Gate,
	bids ports.BidStore,
	settlements ports.SettlementStore,
	opts ...Option,
) (*Service, error) {
	if records == nil {
		return nil, errors.New("record store is required")
	}
	if statusGate == nil {
		return nil, errors.New("status gate is required")
	}
	if bids == nil {
		return nil, errors.New("bid store is required")
	}
	if settlements == nil {
		return nil, errors.New("settlement store is required")
	}
	svc := &Service{records: records, gate: statusGate, bids: bids, settlements: settlements}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// OpenListing creates the time-bounded window for a new listing. Banned
// sellers cannot open listings; the check goes through the ban gate so the
// answer holds even right after a ban lapsed or was issued.
func (s *Service) OpenListing(ctx context.Context, sellerID id.UserID, title string, startPrice int64, duration time.Duration) (id.ListingID, *expiry.Record, error) {
	if sellerID.IsZero() {
		return id.ListingID{}, nil, dErrors.New(dErrors.CodeInvalidInput, "seller id is required")
	}
	if startPrice < 0 {
		return id.ListingID{}, nil, dErrors.New(dErrors.CodeInvalidInput, "start price cannot be negative")
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	if err := s.requireNotBanned(ctx, sellerID); err != nil {
		return id.ListingID{}, nil, err
	}

	payload, err := models.MarshalPayload(models.Payload{
		SellerID:   sellerID,
		Title:      title,
		StartPrice: startPrice,
	})
	if err != nil {
		return id.ListingID{}, nil, err
	}

	listingID := id.NewListingID()
	now := requestcontext.Now(ctx)
	record, err := expiry.NewRecord(expiry.KindAuction, listingID.Subject(), now.Add(duration), payload, now)
	if err != nil {
		return id.ListingID{}, nil, err
	}
	if err := s.records.Create(ctx, record); err != nil {
		return id.ListingID{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open listing")
	}

	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Category:  audit.CategoryOperations,
		Action:    audit.EventListingOpened,
		Kind:      expiry.KindAuction.String(),
		SubjectID: record.SubjectID,
		RecordID:  record.ID,
		ActorID:   sellerID,
	}, "listing_id", listingID, "closes_at", record.Deadline)

	return listingID, record, nil
}

// PlaceBid accepts an offer on a listing that is still open right now. The
// open check goes through the gate exclusively, so a bid arriving after the
// deadline is rejected even before the closing sweep has run -- and that very
// check settles the auction as a side effect of the gate's self-heal.
func (s *Service) PlaceBid(ctx context.Context, listingID id.ListingID, bidderID id.UserID, amount int64) (*models.Bid, error) {
	if listingID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "listing id is required")
	}
	if bidderID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "bidder id is required")
	}
	if err := s.requireNotBanned(ctx, bidderID); err != nil {
		return nil, err
	}

	status, err := s.gate.CheckStatus(ctx, expiry.KindAuction, listingID.Subject())
	if err != nil {
		return nil, err
	}
	if !status.InForce {
		return nil, dErrors.New(dErrors.CodeInvalidState, "auction is closed")
	}

	p, err := models.PayloadFrom(status.Record)
	if err != nil {
		return nil, err
	}
	if bidderID == p.SellerID {
		return nil, dErrors.New(dErrors.CodeForbidden, "sellers cannot bid on their own listing")
	}
	if amount < p.StartPrice {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "bid must be at least the start price of %d", p.StartPrice)
	}

	highest, err := s.bids.HighestForListing(ctx, listingID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load current highest bid")
	}
	if highest != nil && amount <= highest.Amount {
		return nil, dErrors.Newf(dErrors.CodeConflict, "bid must exceed the current highest of %d", highest.Amount)
	}

	bid, err := models.NewBid(listingID, bidderID, amount, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.bids.Place(ctx, bid); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to place bid")
	}
	return bid, nil
}

// ListingStatus reports whether the window is open, how long remains, and
// the current highest bid.
func (s *Service) ListingStatus(ctx context.Context, listingID id.ListingID) (*models.ListingStatus, error) {
	if listingID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "listing id is required")
	}

	status, err := s.gate.CheckStatus(ctx, expiry.KindAuction, listingID.Subject())
	if err != nil {
		return nil, err
	}
	record := status.Record
	if record == nil {
		// Closed listings have no active record; fall back to history so
		// the response still names the listing.
		history, err := s.records.FindAllBySubject(ctx, expiry.KindAuction, listingID.Subject())
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load listing history")
		}
		if len(history) == 0 {
			return nil, dErrors.New(dErrors.CodeNotFound, "listing not found")
		}
		record = history[0]
	}

	p, err := models.PayloadFrom(record)
	if err != nil {
		return nil, err
	}
	out := &models.ListingStatus{
		ListingID:  listingID,
		Open:       status.InForce,
		Title:      p.Title,
		SellerID:   p.SellerID,
		StartPrice: p.StartPrice,
		ClosesAt:   record.Deadline,
		Remaining:  status.Remaining,
	}

	highest, err := s.bids.HighestForListing(ctx, listingID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load current highest bid")
	}
	out.HighestBid = highest
	return out, nil
}

// Settlement returns the final outcome for a closed listing.
func (s *Service) Settlement(ctx context.Context, listingID id.ListingID) (*models.Settlement, error) {
	if listingID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "listing id is required")
	}
	settlement, err := s.settlements.FindByListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "listing is not settled")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settlement")
	}
	return settlement, nil
}

// RecentSettlements joins the latest outcomes with their originating records
// for the admin dashboard.
func (s *Service) RecentSettlements(ctx context.Context, limit int) ([]*models.SettlementView, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	settlements, err := s.settlements.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list settlements")
	}
	if len(settlements) == 0 {
		return nil, nil
	}

	recordIDs := make([]id.RecordID, len(settlements))
	for i, settlement := range settlements {
		recordIDs[i] = settlement.RecordID
	}
	records, err := s.records.FindByIDs(ctx, recordIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settled records")
	}
	byID := make(map[id.RecordID]*expiry.Record, len(records))
	for _, record := range records {
		byID[record.ID] = record
	}

	out := make([]*models.SettlementView, 0, len(settlements))
	for _, settlement := range settlements {
		record, ok := byID[settlement.RecordID]
		if !ok {
			continue
		}
		out = append(out, &models.SettlementView{Settlement: *settlement, Record: *record})
	}
	return out, nil
}

// ExpiryFinalizer returns the post-transition hook that settles a closed
// auction: highest bidder wins with payment pending, or the window closes
// with no sale. The settlement store's write-once rule keeps this idempotent
// even if a finalizer is somehow invoked twice for one record.
func (s *Service) ExpiryFinalizer() expiryports.Finalizer {
	return func(ctx context.Context, record *expiry.Record) error {
		listingID := id.ListingID(record.SubjectID)

		settlement := &models.Settlement{
			RecordID:  record.ID,
			ListingID: listingID,
			Outcome:   models.OutcomeNoSale,
			SettledAt: requestcontext.Now(ctx),
		}

		highest, err := s.bids.HighestForListing(ctx, listingID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load winning bid")
		}
		if highest != nil {
			settlement.Outcome = models.OutcomeSold
			settlement.WinnerID = &highest.BidderID
			settlement.FinalPrice = highest.Amount
		}

		if err := s.settlements.Create(ctx, settlement); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// Already settled by an earlier invocation; converged.
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record settlement")
		}

		attrs := []any{"listing_id", listingID, "outcome", settlement.Outcome}
		if settlement.WinnerID != nil {
			attrs = append(attrs, "winner_id", *settlement.WinnerID, "final_price", settlement.FinalPrice)
		}
		audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
			Category:  audit.CategoryOperations,
			Action:    audit.EventAuctionSettled,
			Kind:      expiry.KindAuction.String(),
			SubjectID: record.SubjectID,
			RecordID:  record.ID,
		}, attrs...)
		return nil
	}
}

func (s *Service) requireNotBanned(ctx context.Context, userID id.UserID) error {
	if s.privileges == nil {
		return nil
	}
	status, err := s.privileges.Status(ctx, userID)
	if err != nil {
		return err
	}
	if status.Banned {
		return dErrors.New(dErrors.CodeForbidden, "account is suspended")
	}
	return nil
}
