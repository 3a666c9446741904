package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"account-service/internal/httpx"
	"account-service/internal/observability"
)

const platformHeader = "Sec-CH-UA-Platform"

type Handler struct {
	service   *Service
	transport Transport
}

func NewHandler(service *Service, transport Transport) *Handler {
	return &Handler{service: service, transport: transport}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login accepts the OAuth2 password form or the same fields as JSON.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if httpx.IsForm(r) {
		r.Body = http.MaxBytesReader(w, r.Body, httpx.MaxJSONBodyBytes)
		if err := httpx.ParseForm(r); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		body.Username = r.PostForm.Get("username")
		body.Password = r.PostForm.Get("password")
	} else if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	verr := &httpx.ValidationError{}
	if strings.TrimSpace(body.Username) == "" {
		verr.Add("username", "field required")
	}
	if body.Password == "" {
		verr.Add("password", "field required")
	}
	if verr.Err() != nil {
		httpx.WriteValidation(w, verr)
		return
	}

	tokens, err := h.service.Login(r.Context(), LoginInput{
		Username:  body.Username,
		Password:  body.Password,
		UserAgent: r.UserAgent(),
		Platform:  strings.Trim(r.Header.Get(platformHeader), `" `),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrBadCredentials):
			httpx.WriteError(w, http.StatusBadRequest, "Incorrect username or password")
		case errors.Is(err, ErrUnverifiedSubject):
			httpx.WriteError(w, http.StatusUnauthorized, "Please verify your email")
		default:
			httpx.WriteFailure(w, r, storeStatus(err), "login_failed", err, "failed to login")
		}
		return
	}

	observability.LoggerFrom(r.Context()).Info("user_logged_in", zap.String("access_jti", tokens.Access.ID))

	h.transport.SetAccessCookies(w, tokens.Access.Value)
	h.transport.SetRefreshCookie(w, tokens.Refresh.Value)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  tokens.Access.Value,
		RefreshToken: tokens.Refresh.Value,
		TokenType:    "bearer",
		ExpiresIn:    int64(h.transport.AccessTTL.Seconds()),
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	access, err := h.service.Refresh(r.Context(), h.transport.RefreshToken(r))
	if err != nil {
		if rejection, ok := RefreshRejection(err); ok {
			httpx.WriteError(w, rejection.Status, rejection.Message)
			return
		}
		httpx.WriteFailure(w, r, storeStatus(err), "refresh_failed", err, "failed to refresh token")
		return
	}

	h.transport.SetAccessCookies(w, access.Value)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: access.Value,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.transport.AccessTTL.Seconds()),
	})
}

// Logout must be mounted behind Guard.Require.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "You are not logged in")
		return
	}

	if err := h.service.Logout(r.Context(), claims, h.transport.RefreshToken(r)); err != nil {
		httpx.WriteFailure(w, r, storeStatus(err), "logout_failed", err, "failed to logout")
		return
	}

	observability.LoggerFrom(r.Context()).Info("user_logged_out", zap.String("access_jti", claims.ID))

	h.transport.ClearCookies(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
