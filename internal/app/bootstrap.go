// Package app wires configuration, storage and handlers into a runnable
// HTTP service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"account-service/internal/auth"
	"account-service/internal/cache"
	"account-service/internal/config"
	"account-service/internal/db"
	"account-service/internal/directory"
	"account-service/internal/mail"
	"account-service/internal/observability"
	"account-service/internal/profile"
	"account-service/internal/session"
	"account-service/internal/user"
)

const startupTimeout = 30 * time.Second

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Config  *config.Config
	Logger  *zap.Logger
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	cfg, err := config.Load(options.LoadDotEnv, options.RunMigrations)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.Debug)
	zap.ReplaceGlobals(logger)

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment, cfg.Release); err != nil {
		logger.Error("init_sentry_failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := db.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	database := db.New(pool)

	redisClient, err := cache.Connect(cfg.RedisURL, cfg.RedisTimeout)
	if err != nil {
		pool.Close()
		return nil, err
	}
	store := cache.New(redisClient)
	if err := store.Ping(ctx); err != nil {
		// Token checks fail closed with 503 until Redis comes back.
		logger.Warn("redis_unreachable", zap.Error(err))
	}

	var sender mail.Sender = mail.LogSender{Logger: logger}
	if cfg.Email.Host != "" {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.Sender,
		})
	}
	dispatcher := mail.NewDispatcher(mail.DispatcherConfig{}, sender, logger)

	closeAll := func() error {
		dispatcher.Close()
		err := redisClient.Close()
		pool.Close()
		observability.FlushSentry()
		_ = logger.Sync()
		return err
	}

	dadata, err := directory.NewDaData(cfg.DadataToken, cfg.DadataSecret, "")
	if err != nil {
		_ = closeAll()
		return nil, fmt.Errorf("init dadata: %w", err)
	}
	if dadata == nil {
		logger.Warn("dadata_not_configured")
	}

	transport := auth.Transport{
		HeaderFirst: cfg.Auth.HeaderFirst,
		Secure:      cfg.Auth.CookieSecure,
		Domain:      cfg.Auth.CookieDomain,
		AccessTTL:   cfg.Auth.AccessTTL,
		RefreshTTL:  cfg.Auth.RefreshTTL,
	}
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret)
	denylist := auth.NewDenylist(store)

	userRepo := user.NewRepository(database)
	signins := session.NewRecorder(session.NewRepository(database))
	profiles := profile.NewService(profile.NewRepository(database), database)
	users := user.NewService(
		userRepo,
		database,
		user.NewVerifier(store, cfg.Email.VerificationURL, cfg.Email.VerificationTTL),
		dispatcher,
		profiles,
		signins,
	)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		admin, err := users.BootstrapSuperuser(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			_ = closeAll()
			return nil, fmt.Errorf("bootstrap superuser: %w", err)
		}
		logger.Info("superuser_ready", zap.String("user_id", admin.ID))
	}

	guard := auth.NewGuard(tokens, denylist, userRepo, transport)
	authService := auth.NewService(userRepo, tokens, denylist, signins, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)

	handler := newRouter(handlers{
		guard:     guard,
		limiter:   auth.NewLoginRateLimiter(store, cfg.Auth.LoginRateMax, cfg.Auth.LoginRateWindow),
		auth:      auth.NewHandler(authService, transport),
		users:     user.NewHandler(users),
		profiles:  profile.NewHandler(profiles),
		directory: directory.NewHandler(directory.NewService(directory.NewRepository(database), database, dadata)),
		health:    healthHandler(map[string]pinger{"postgres": database, "redis": store}),
	}, cfg.Origins, logger)

	return &Runtime{
		Handler: handler,
		Config:  cfg,
		Logger:  logger,
		Close:   closeAll,
	}, nil
}
