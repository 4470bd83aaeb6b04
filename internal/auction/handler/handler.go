// Package handler exposes the auction endpoints: opening listings, bidding,
// status lookups, and settlement views.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bidhub/internal/auction/models"
	expiry "bidhub/internal/expiry/models"
	"bidhub/internal/platform/middleware"
	"bidhub/internal/transport/http/shared"
	id "bidhub/pkg/domain"
	dErrors "bidhub/pkg/domain-errors"
)

// Service defines the auction operations the handler needs.
type Service interface {
	OpenListing(ctx context.Context, sellerID id.UserID, title string, startPrice int64, duration time.Duration) (id.ListingID, *expiry.Record, error)
	PlaceBid(ctx context.Context, listingID id.ListingID, bidderID id.UserID, amount int64) (*models.Bid, error)
	ListingStatus(ctx context.Context, listingID id.ListingID) (*models.ListingStatus, error)
	Settlement(ctx context.Context, listingID id.ListingID) (*models.Settlement, error)
	RecentSettlements(ctx context.Context, limit int) ([]*models.SettlementView, error)
}

type Handler struct {
	auctions     Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func New(auctions Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{auctions: auctions, logger: logger, jwtValidator: jwtValidator}
}

// Register mounts the auction routes on the parent router. Status and
// settlement lookups are public; creating listings and bidding require an
// authenticated caller.
func (h *Handler) Register(r chi.Router) {
	r.Get("/auctions/{listingID}", h.handleStatus)
	r.Get("/auctions/{listingID}/settlement", h.handleSettlement)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/auctions", h.handleOpen)
		r.Post("/auctions/{listingID}/bids", h.handleBid)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.logger))
			r.Get("/admin/settlements", h.handleRecentSettlements)
		})
	})
}

type openRequest struct {
	Title      string `json:"title"`
	StartPrice int64  `json:"start_price"`
	Duration   string `json:"duration,omitempty"`
}

type openResponse struct {
	ListingID  id.ListingID `json:"listing_id"`
	ClosesAt   time.Time    `json:"closes_at"`
	Title      string       `json:"title"`
	StartPrice int64        `json:"start_price"`
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}
	sellerID, err := callerID(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var duration time.Duration
	if req.Duration != "" {
		duration, err = time.ParseDuration(req.Duration)
		if err != nil || duration <= 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid duration"))
			return
		}
	}

	listingID, record, err := h.auctions.OpenListing(ctx, sellerID, req.Title, req.StartPrice, duration)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, openResponse{
		ListingID:  listingID,
		ClosesAt:   record.Deadline,
		Title:      req.Title,
		StartPrice: req.StartPrice,
	})
}

type bidRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) handleBid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid listing id"))
		return
	}
	var req bidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}
	bidderID, err := callerID(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	bid, err := h.auctions.PlaceBid(ctx, listingID, bidderID, req.Amount)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, bid)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid listing id"))
		return
	}
	status, err := h.auctions.ListingStatus(r.Context(), listingID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleSettlement(w http.ResponseWriter, r *http.Request) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid listing id"))
		return
	}
	settlement, err := h.auctions.Settlement(r.Context(), listingID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, settlement)
}

func (h *Handler) handleRecentSettlements(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid limit"))
			return
		}
		limit = parsed
	}
	views, err := h.auctions.RecentSettlements(r.Context(), limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"settlements": views})
}

func callerID(ctx context.Context) (id.UserID, error) {
	raw := middleware.GetUserID(ctx)
	if raw == "" {
		return id.UserID{}, dErrors.New(dErrors.CodeInternal, "authentication context error")
	}
	userID, err := id.ParseUserID(raw)
	if err != nil {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return userID, nil
}
