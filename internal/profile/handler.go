package profile

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"account-service/internal/auth"
	"account-service/internal/httpx"
	"account-service/internal/observability"
)

// Handler serves the caller's own profile. Every route sits behind the
// authentication guard.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "You are not logged in")
		return
	}

	p, err := h.service.Get(r.Context(), account.ID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "Profile not found")
			return
		}
		httpx.WriteInternal(w, r, "get_profile_failed", err, "failed to load profile")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, NewView(p, ownerOf(account)))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "You are not logged in")
		return
	}

	var body CreateInput
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	logger := observability.LoggerFrom(r.Context()).With(zap.String("user_id", account.ID))

	p, err := h.service.Create(r.Context(), account.ID, body)
	if err != nil {
		var verr *httpx.ValidationError
		switch {
		case errors.As(err, &verr):
			httpx.WriteValidation(w, verr)
		case errors.Is(err, ErrProfileExists):
			logger.Warn("profile_exists")
			httpx.WriteError(w, http.StatusConflict, "Profile already exists")
		default:
			httpx.WriteInternal(w, r, "create_profile_failed", err, "Failed to create profile")
		}
		return
	}

	logger.Info("profile_created", zap.String("profile_id", p.ID))
	httpx.WriteJSON(w, http.StatusOK, NewView(p, ownerOf(account)))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "You are not logged in")
		return
	}

	var body UpdateInput
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	p, err := h.service.Update(r.Context(), account.ID, body)
	if err != nil {
		var verr *httpx.ValidationError
		switch {
		case errors.As(err, &verr):
			httpx.WriteValidation(w, verr)
		case errors.Is(err, ErrProfileNotFound):
			httpx.WriteError(w, http.StatusNotFound, "Profile not found")
		default:
			httpx.WriteInternal(w, r, "update_profile_failed", err, "Failed to update profile")
		}
		return
	}

	observability.LoggerFrom(r.Context()).Info("profile_updated", zap.String("user_id", account.ID))
	httpx.WriteJSON(w, http.StatusOK, NewView(p, ownerOf(account)))
}

func ownerOf(account auth.Account) Owner {
	return Owner{ID: account.ID, Username: account.Username, Email: account.Email}
}
