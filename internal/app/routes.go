package app

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"account-service/internal/auth"
	"account-service/internal/directory"
	"account-service/internal/httpx"
	"account-service/internal/observability"
	"account-service/internal/profile"
	"account-service/internal/user"
)

const apiPrefix = "/api/v1"

type handlers struct {
	guard     *auth.Guard
	limiter   *auth.LoginRateLimiter
	auth      *auth.Handler
	users     *user.Handler
	profiles  *profile.Handler
	directory *directory.Handler
	health    http.Handler
}

func newRouter(h handlers, origins []string, logger *zap.Logger) http.Handler {
	guarded := func(fn http.HandlerFunc) http.Handler { return h.guard.Require(fn) }
	superuser := func(fn http.HandlerFunc) http.Handler { return h.guard.RequireSuperuser(fn) }

	v1 := http.NewServeMux()
	v1.Handle("POST /auth/login", h.limiter.Middleware(http.HandlerFunc(h.auth.Login)))
	v1.HandleFunc("POST /auth/refresh", h.auth.Refresh)
	v1.Handle("DELETE /auth/logout", guarded(h.auth.Logout))

	v1.HandleFunc("POST /user/register", h.users.Register)
	v1.HandleFunc("GET /user/verifyemail/{token}", h.users.VerifyEmail)
	v1.HandleFunc("GET /user/send/verify/{email}", h.users.ResendVerification)
	v1.Handle("GET /user/whoami", guarded(h.users.WhoAmI))
	v1.Handle("POST /user/password", guarded(h.users.ChangePassword))
	v1.Handle("GET /user/signins", guarded(h.users.SignIns))

	v1.Handle("GET /profile", guarded(h.profiles.Get))
	v1.Handle("POST /profile", guarded(h.profiles.Create))
	v1.Handle("PATCH /profile", guarded(h.profiles.Update))

	v1.Handle("GET /directory/cities", guarded(h.directory.SearchCities))
	v1.Handle("GET /directory/companies", guarded(h.directory.ListCompanies))
	v1.Handle("GET /directory/companies/{inn}", guarded(h.directory.LookupCompany))
	v1.Handle("POST /directory/companies", superuser(h.directory.CreateCompany))
	v1.Handle("PUT /directory/companies/{id}", superuser(h.directory.UpdateCompany))
	v1.Handle("DELETE /directory/companies/{id}", superuser(h.directory.DeactivateCompany))

	mux := http.NewServeMux()
	mux.Handle(apiPrefix+"/", http.StripPrefix(apiPrefix, v1))
	mux.Handle("GET /health", h.health)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Authorization", "Content-Type", auth.RefreshHeader,
			observability.RequestIDHeader, "Sec-CH-UA-Platform",
		},
		ExposedHeaders: []string{observability.RequestIDHeader, "Retry-After"},
	}).Handler(mux)

	return observability.RequestIDMiddleware(logger,
		observability.RecoverMiddleware(
			observability.RequestLoggingMiddleware(corsHandler)))
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler answers 200 when every dependency responds and 503 otherwise.
func healthHandler(checks map[string]pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check.Ping(ctx); err != nil {
				observability.LoggerFrom(r.Context()).Warn("health_check_failed", zap.String("dependency", name), zap.Error(err))
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		body := map[string]any{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
			"checks": results,
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		httpx.WriteJSON(w, status, body)
	}
}
