package directory

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"account-service/internal/auth"
	"account-service/internal/httpx"
	"account-service/internal/observability"
)

// Handler serves the directory. Lookups need a signed-in user; changes to
// companies need a superuser.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) SearchCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.service.SearchCities(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.writeLookupError(w, r, "search_cities_failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": cities})
}

func (h *Handler) LookupCompany(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.LookupCompany(r.Context(), r.PathValue("inn"))
	if err != nil {
		h.writeLookupError(w, r, "lookup_company_failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) writeLookupError(w http.ResponseWriter, r *http.Request, event string, err error) {
	var verr *httpx.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.WriteValidation(w, verr)
	case errors.Is(err, ErrLookupDisabled):
		httpx.WriteError(w, http.StatusServiceUnavailable, "directory lookup is not configured")
	case errors.Is(err, ErrUpstream):
		httpx.WriteFailure(w, r, http.StatusBadGateway, event, err, "directory lookup failed")
	default:
		httpx.WriteInternal(w, r, event, err, "directory lookup failed")
	}
}

func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.ListCompanies(r.Context())
	if err != nil {
		httpx.WriteInternal(w, r, "list_companies_failed", err, "failed to list companies")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, companies)
}

func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var input CompanyInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	c, err := h.service.CreateCompany(r.Context(), actor(r), input)
	if err != nil {
		var verr *httpx.ValidationError
		switch {
		case errors.As(err, &verr):
			httpx.WriteValidation(w, verr)
		case errors.Is(err, ErrCompanyExists):
			httpx.WriteError(w, http.StatusConflict, "company with this inn already exists")
		default:
			httpx.WriteInternal(w, r, "create_company_failed", err, "failed to create company")
		}
		return
	}

	observability.LoggerFrom(r.Context()).Info("company_created", zap.String("company_id", c.ID))
	httpx.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid company id")
		return
	}

	var input CompanyInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	c, err := h.service.UpdateCompany(r.Context(), actor(r), id, input)
	if err != nil {
		var verr *httpx.ValidationError
		switch {
		case errors.As(err, &verr):
			httpx.WriteValidation(w, verr)
		case errors.Is(err, ErrCompanyNotFound):
			httpx.WriteError(w, http.StatusNotFound, "company not found")
		default:
			httpx.WriteInternal(w, r, "update_company_failed", err, "failed to update company")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) DeactivateCompany(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid company id")
		return
	}

	if err := h.service.DeactivateCompany(r.Context(), actor(r), id); err != nil {
		if errors.Is(err, ErrCompanyNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "company not found")
			return
		}
		httpx.WriteInternal(w, r, "deactivate_company_failed", err, "failed to delete company")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// actor is what audit columns record for the caller.
func actor(r *http.Request) string {
	account, _ := auth.AccountFrom(r.Context())
	return account.Email
}
