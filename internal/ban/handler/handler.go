// Package handler exposes the ban endpoints. Moderation routes require an
// admin token; the status route only needs an authenticated caller.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bidhub/internal/ban/models"
	"bidhub/internal/platform/middleware"
	"bidhub/internal/transport/http/shared"
	id "bidhub/pkg/domain"
	dErrors "bidhub/pkg/domain-errors"
)

// Service defines the ban operations the handler needs.
type Service interface {
	Issue(ctx context.Context, userID, issuedBy id.UserID, reason string, duration time.Duration) (*models.View, error)
	Status(ctx context.Context, userID id.UserID) (*models.Status, error)
	Lift(ctx context.Context, banID id.RecordID, adminID id.UserID) error
	History(ctx context.Context, userID id.UserID) ([]*models.View, error)
	ActiveBans(ctx context.Context) ([]*models.View, error)
}

type Handler struct {
	bans         Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func New(bans Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{bans: bans, logger: logger, jwtValidator: jwtValidator}
}

// Register mounts the ban routes on the parent router. The parent already
// carries the base middleware stack (request ID, request time, recovery,
// logging).
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Get("/me/ban-status", h.handleMyStatus)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.logger))
			r.Post("/admin/bans", h.handleIssue)
			r.Post("/admin/bans/{banID}/lift", h.handleLift)
			r.Get("/admin/bans", h.handleActive)
			r.Get("/admin/users/{userID}/bans", h.handleHistory)
			r.Get("/admin/users/{userID}/ban-status", h.handleUserStatus)
		})
	})
}

type issueRequest struct {
	UserID   string `json:"user_id"`
	Reason   string `json:"reason"`
	Duration string `json:"duration,omitempty"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid user id"))
		return
	}
	adminID, err := callerID(ctx)
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

	view, err := h.bans.Issue(ctx, userID, adminID, req.Reason, duration)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleLift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	banID, err := id.ParseRecordID(chi.URLParam(r, "banID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid ban id"))
		return
	}
	adminID, err := callerID(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.bans.Lift(ctx, banID, adminID); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "lifted"})
}

func (h *Handler) handleMyStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := callerID(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.writeStatus(w, r, userID)
}

func (h *Handler) handleUserStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid user id"))
		return
	}
	h.writeStatus(w, r, userID)
}

func (h *Handler) writeStatus(w http.ResponseWriter, r *http.Request, userID id.UserID) {
	status, err := h.bans.Status(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid user id"))
		return
	}
	views, err := h.bans.History(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"bans": views})
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	views, err := h.bans.ActiveBans(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"bans": views})
}

// callerID resolves the authenticated user set by the auth middleware.
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
