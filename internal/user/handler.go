package user

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"account-service/internal/auth"
	"account-service/internal/httpx"
	"account-service/internal/observability"
	"account-service/internal/session"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body RegisterInput
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	u, err := h.service.Register(r.Context(), body)
	if err != nil {
		var verr *httpx.ValidationError
		switch {
		case errors.As(err, &verr):
			httpx.WriteValidation(w, verr)
		case errors.Is(err, ErrAlreadyVerified):
			httpx.WriteError(w, http.StatusConflict, "User with this email already exists")
		case errors.Is(err, ErrRegistrationFailed):
			observability.LoggerFrom(r.Context()).Error("user_not_created", zap.Error(err))
			httpx.WriteError(w, http.StatusBadRequest, "User not registered")
		default:
			httpx.WriteInternal(w, r, "register_failed", err, "failed to register user")
		}
		return
	}

	observability.LoggerFrom(r.Context()).Info("user_registered", zap.String("user_id", u.ID))
	httpx.WriteJSON(w, http.StatusCreated, u.View())
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	err := h.service.VerifyEmail(r.Context(), r.PathValue("token"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCode):
			httpx.WriteError(w, http.StatusUnauthorized, "Invalid verification code or account already verified")
		case errors.Is(err, ErrUserNotFound):
			httpx.WriteError(w, http.StatusNotFound, "Invalid verification code")
		case errors.Is(err, ErrAlreadyVerified):
			httpx.WriteError(w, http.StatusConflict, "Invalid verification code or account already verified")
		default:
			httpx.WriteInternal(w, r, "verify_email_failed", err, "failed to verify email")
		}
		return
	}

	observability.LoggerFrom(r.Context()).Info("user_email_verified")
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":  "success",
		"message": "Account successfully activated",
	})
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	err := h.service.ResendVerification(r.Context(), r.PathValue("email"))
	if err != nil {
		var verr *httpx.ValidationError
		switch {
		case errors.As(err, &verr):
			httpx.WriteValidation(w, verr)
		case errors.Is(err, ErrUserNotFound):
			httpx.WriteError(w, http.StatusNotFound, "User with this email not found")
		case errors.Is(err, ErrAlreadyVerified):
			httpx.WriteError(w, http.StatusUnauthorized, "Account already activated")
		default:
			httpx.WriteInternal(w, r, "resend_verification_failed", err, "failed to send verification email")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Verification email sent",
	})
}

// WhoAmI and the routes below must be mounted behind Guard.Require.
func (h *Handler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "You are not logged in")
		return
	}

	view, err := h.service.WhoAmI(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httpx.WriteError(w, http.StatusUnauthorized, "User no longer exist")
			return
		}
		httpx.WriteInternal(w, r, "whoami_failed", err, "failed to load user")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "You are not logged in")
		return
	}

	var body ChangePasswordInput
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, body); err != nil {
		var verr *httpx.ValidationError
		switch {
		case errors.As(err, &verr):
			httpx.WriteValidation(w, verr)
		case errors.Is(err, ErrWrongPassword):
			httpx.WriteError(w, http.StatusBadRequest, "Current password is incorrect")
		case errors.Is(err, ErrUserNotFound):
			httpx.WriteError(w, http.StatusUnauthorized, "User no longer exist")
		default:
			httpx.WriteInternal(w, r, "change_password_failed", err, "failed to change password")
		}
		return
	}

	observability.LoggerFrom(r.Context()).Info("user_password_changed", zap.String("user_id", userID))
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) SignIns(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "You are not logged in")
		return
	}

	limit := session.DefaultListSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			verr := &httpx.ValidationError{}
			verr.Add("limit", "must be a positive integer")
			httpx.WriteValidation(w, verr)
			return
		}
		limit = parsed
	}

	items, err := h.service.SignIns(r.Context(), userID, limit)
	if err != nil {
		httpx.WriteInternal(w, r, "list_signins_failed", err, "failed to load sign-in history")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
