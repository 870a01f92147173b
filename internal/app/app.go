package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quillnotes/auth-service/internal/config"
	"github.com/quillnotes/auth-service/internal/email"
	"github.com/quillnotes/auth-service/internal/handler"
	"github.com/quillnotes/auth-service/internal/provider"
	"github.com/quillnotes/auth-service/internal/repository"
	"github.com/quillnotes/auth-service/internal/service"
	"github.com/quillnotes/auth-service/internal/utils"
	"github.com/quillnotes/auth-service/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra    Infrastructure
	config   *config.Config
	router   *gin.Engine
	server   *http.Server
	sessions repository.SessionRepository
}

func NewApp(infra Infrastructure, cfg *config.Config) *App {
	repos := repository.NewRepositories(infra.Postgres())

	signer := utils.NewCookieSigner(cfg.Session.CookieSecret, cfg.Session.TTL.Duration)
	sessionManager := service.NewSessionManager(repos.Session, signer, cfg.Session.TTL.Duration, infra.Logger())

	verifyStore := service.NewVerifyStore(infra.Redis(), cfg.Verify.StashTTL.Duration)
	verificationService := service.NewVerificationService(repos.Verification, service.CodeParams{
		Period:  cfg.Verify.Period.Duration,
		Digits:  cfg.Verify.Digits,
		Charset: cfg.Verify.Charset,
	})

	accessService := service.NewAccessService(repos.Access)
	linkingService := service.NewLinkingService(repos.User, repos.Connection, sessionManager, verifyStore, infra.Logger())

	authService := service.NewAuthService(
		repos.User,
		repos.Connection,
		sessionManager,
		verificationService,
		verifyStore,
		newMailer(cfg, infra.Logger()),
		cfg.Security.BCryptCost,
		infra.Logger(),
	)

	registry := provider.NewRegistry(newProviders(cfg)...)
	states := provider.NewStateStore(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	cookies := handler.NewCookies(cfg.Session.CookieName, cfg.Env == "production")
	middleware := handler.NewMiddleware(sessionManager, accessService, cookies, infra.Logger())
	authHandler := handler.NewAuthHandler(
		authService,
		linkingService,
		sessionManager,
		registry,
		states,
		cookies,
		infra.Logger(),
	)

	router := gin.Default()
	router.Use(otelgin.Middleware("auth-service"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, authHandler, middleware, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:    infra,
		config:   cfg,
		router:   router,
		server:   srv,
		sessions: repos.Session,
	}
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func newProviders(cfg *config.Config) []provider.Provider {
	var providers []provider.Provider
	if cfg.GitHub.Enabled() {
		providers = append(providers, provider.NewGitHub(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.RedirectURL))
	}
	if cfg.Google.Enabled() {
		providers = append(providers, provider.NewGoogle(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL))
	}
	return providers
}

// newMailer falls back to log-only delivery when no API key is set, so
// development environments work without an email account.
func newMailer(cfg *config.Config, logger *zap.Logger) email.Mailer {
	if cfg.Mailer.APIKey == "" {
		return email.NewLogMailer(logger)
	}
	return email.NewHTTPMailer(cfg.Mailer.Endpoint, cfg.Mailer.APIKey, cfg.Mailer.From)
}

func setupRoutes(
	router *gin.Engine,
	authHandler *handler.AuthHandler,
	middleware *handler.Middleware,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	api := router.Group("/api/v1")
	api.Use(middleware.ResolveUser())
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireUser(), authHandler.GetMe)

			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/forgot-password/verify", authHandler.VerifyReset)
			auth.POST("/reset-password", authHandler.ResetPassword)

			auth.POST("/email-login", authHandler.EmailLogin)
			auth.POST("/email-login/verify", authHandler.VerifyEmailLogin)

			auth.GET("/:provider", authHandler.BeginProvider)
			auth.GET("/:provider/callback", authHandler.ProviderCallback)
		}

		api.POST("/onboarding", authHandler.Onboarding)

		settings := api.Group("/settings", middleware.RequireUser())
		{
			settings.POST("/email", authHandler.ChangeEmail)
			settings.POST("/email/verify", authHandler.ConfirmEmailChange)
			settings.GET("/connections", authHandler.ListConnections)
			settings.DELETE("/connections/:id", authHandler.DeleteConnection)
		}

		users := api.Group("/users")
		{
			users.GET("/:username", middleware.RequirePermission("read:user:any"), authHandler.GetUser)
			users.DELETE("/:username", middleware.RequireRole("admin"), authHandler.DeleteUser)
		}
	}
}

const sessionReapInterval = time.Hour

// reapExpiredSessions deletes expired session rows on an interval. Expired
// sessions never authenticate regardless; this only keeps the table small.
func (a *App) reapExpiredSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := a.sessions.DeleteExpired(ctx, now); err != nil {
				a.infra.Logger().Warn("failed to reap expired sessions", zap.Error(err))
			}
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go a.reapExpiredSessions(ctx)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
