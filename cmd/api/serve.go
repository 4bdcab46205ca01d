package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/notify"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/web"
	"github.com/spec-kit/helpdesk/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect postgres", zap.Error(err))
		return err
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Error("failed to run migrations", zap.Error(err))
			return err
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	dependencies := map[string]handlers.Pinger{"redis": redis}
	var store repository.Store
	if pool := pg.PoolHandle(); pool != nil {
		store = repository.NewStore(pool)
		dependencies["postgres"] = pg
	} else {
		logger.Warn("using in-memory store; data is lost on restart")
		store = memory.NewStore()
	}

	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	revocations := auth.NewRedisRevocationStore(redis.Cmdable())

	authorizer, err := auth.NewAuthorizer(logger)
	if err != nil {
		logger.Error("failed to load access policy", zap.Error(err))
		return err
	}

	notifications := worker.NewNotificationWorker(notify.NewSender(*cfg, logger), logger, metrics, cfg.Notification.QueueSize, cfg.Notification.Workers)
	notifications.Start(ctx)
	defer notifications.Stop()

	repos := store.Repos()
	notifier := service.NewNotificationService(repos.Users, notifications, metrics, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:    store,
		Notifier: notifier,
		Logger:   logger,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		Store:       store,
		Tokens:      tokens,
		Revocations: revocations,
		BcryptCost:  cfg.Auth.BcryptCost,
		Logger:      logger,
	})
	companyService := service.NewCompanyService(store, authorizer, logger)
	attachmentService := service.NewAttachmentService(store)

	authMiddleware := auth.NewAuthMiddleware(auth.MiddlewareDeps{
		Tokens:      tokens,
		Users:       repos.Users,
		Profiles:    repos.Profiles,
		Revocations: revocations,
		CookieName:  cfg.Auth.SessionCookie,
		Logger:      logger,
	})
	cookies := handlers.SessionCookies{Name: cfg.Auth.SessionCookie, Secure: cfg.Auth.SecureCookie}

	engine, err := web.NewEngine(web.NewMarkdown())
	if err != nil {
		logger.Error("failed to load templates", zap.Error(err))
		return err
	}

	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
		Views:   engine,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Auth:        handlers.NewAuthHandler(authService, cookies),
		Tickets:     handlers.NewTicketsHandler(ticketService),
		Companies:   handlers.NewCompaniesHandler(companyService),
		Attachments: handlers.NewAttachmentsHandler(attachmentService),
		Web: handlers.NewWebHandler(handlers.WebDependencies{
			Tickets:   ticketService,
			Companies: companyService,
			Auth:      authService,
			Cookies:   cookies,
			Logger:    logger,
		}),
		AuthMiddleware: authMiddleware,
		Authorizer:     authorizer,
		CSRF: csrf.New(csrf.Config{
			KeyLookup:      "form:_csrf",
			CookieName:     "helpdesk_csrf",
			CookieSameSite: "Lax",
			CookieSecure:   cfg.Auth.SecureCookie,
			CookieHTTPOnly: true,
			ContextKey:     handlers.CSRFContextKey,
		}),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-listenErr:
		if err != nil {
			logger.Error("fiber listen", zap.Error(err))
			return err
		}
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return nil
}
