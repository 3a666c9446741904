package api

import (
	"net/http"
	"sync"

	"account-service/internal/app"
	"account-service/internal/httpx"
)

var (
	initOnce   sync.Once
	apiRuntime *app.Runtime
	initErr    error
)

// Handler is the serverless entry point. The runtime is built on the first
// request and reused for the life of the instance.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		// RUN_MIGRATIONS_ON_STARTUP can still switch migrations on.
		apiRuntime, initErr = app.Build(app.Options{LoadDotEnv: false, RunMigrations: false})
	})

	if initErr != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "application bootstrap failed")
		return
	}

	apiRuntime.Handler.ServeHTTP(w, r)
}
