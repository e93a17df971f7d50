package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/pod-console/internal/api/http"
	"github.com/spec-kit/pod-console/internal/api/http/handlers"
	"github.com/spec-kit/pod-console/internal/apiclient"
	"github.com/spec-kit/pod-console/internal/auth"
	"github.com/spec-kit/pod-console/internal/config"
	"github.com/spec-kit/pod-console/internal/events"
	"github.com/spec-kit/pod-console/internal/navigation"
	"github.com/spec-kit/pod-console/internal/notify"
	"github.com/spec-kit/pod-console/internal/observability"
	"github.com/spec-kit/pod-console/internal/persistence"
	"github.com/spec-kit/pod-console/internal/realtime"
	"github.com/spec-kit/pod-console/internal/session"
	"github.com/spec-kit/pod-console/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := persistence.OpenStorage(ctx, cfg, observability.Component(logger, "storage"))
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer closeStore()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(worker.NewAuditWorker(dispatcher, metrics, observability.Component(logger, "audit")))

	policy := auth.Policy{LoginPath: cfg.Session.LoginPath, UnauthorizedPath: cfg.Session.UnauthorizedPath}
	sessionLogger := observability.Component(logger, "session")

	history := navigation.NewHistory(policy.LoginPath, observability.Component(logger, "navigation"))
	roles := session.NewRoleStore(policy.LoginPath, session.RoleStoreDependencies{
		Storage:    store,
		Navigator:  history,
		Dispatcher: dispatcher,
		Logger:     sessionLogger,
	})
	if err := roles.Init(ctx); err != nil {
		logger.Fatal("failed to init role store", zap.Error(err))
	}
	defer roles.Close()
	history.OnHardNavigate(roles.Reload)

	tokens := auth.NewTokenStore(store, sessionLogger)
	notifications := notify.NewCenter(observability.Component(logger, "notify"), 0)
	manager, err := session.NewManager(session.Config{
		LoginPath:      policy.LoginPath,
		NoticeDuration: cfg.Session.NoticeDuration(),
	}, session.Dependencies{
		Tokens:     tokens,
		Roles:      roles,
		Storage:    store,
		Notifier:   notifications,
		Navigator:  history,
		Dispatcher: dispatcher,
		Logger:     sessionLogger,
	})
	if err != nil {
		logger.Fatal("failed to build session manager", zap.Error(err))
	}
	defer manager.Close()

	checker := session.NewExpiryChecker(tokens, manager, cfg.Session.CheckInterval(), sessionLogger)
	go checker.Run(ctx)

	authenticator := apiclient.NewAuthenticator(apiclient.AuthenticatorDependencies{
		Tokens:     manager,
		Expirer:    manager,
		Dispatcher: dispatcher,
		Logger:     observability.Component(logger, "api"),
	})
	api := apiclient.NewClient(cfg.API, authenticator, observability.Component(logger, "api"))

	if cfg.API.RealtimeURL != "" {
		live := realtime.NewSupervisor(ctx, realtime.NewClient(cfg.API.RealtimeURL, realtime.Dependencies{
			Tokens:   manager,
			Expirer:  manager,
			Notifier: notifications,
			Logger:   observability.Component(logger, "realtime"),
		}))
		roles.Subscribe(live.Follow)
		live.Follow(roles.Role())
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, store),
		Session:        handlers.NewSessionHandler(manager, api, history, notifications),
		Screens:        handlers.NewScreensHandler(api),
		AuthMiddleware: auth.NewAuthMiddleware(manager),
		Policy:         policy,
		Visitor:        history,
		Metrics:        metrics.Handler(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
