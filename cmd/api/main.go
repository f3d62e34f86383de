package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/quizlabhq/quizlab-backend/api/controllers"
	orderscontroller "github.com/quizlabhq/quizlab-backend/api/controllers/orders"
	reportscontroller "github.com/quizlabhq/quizlab-backend/api/controllers/reports"
	"github.com/quizlabhq/quizlab-backend/api/controllers/webhooks"
	"github.com/quizlabhq/quizlab-backend/api/routes"
	"github.com/quizlabhq/quizlab-backend/internal/credentials"
	"github.com/quizlabhq/quizlab-backend/internal/orders"
	"github.com/quizlabhq/quizlab-backend/internal/ratelimit"
	"github.com/quizlabhq/quizlab-backend/internal/reports"
	"github.com/quizlabhq/quizlab-backend/internal/users"
	"github.com/quizlabhq/quizlab-backend/internal/webhooks/payment"
	"github.com/quizlabhq/quizlab-backend/pkg/config"
	"github.com/quizlabhq/quizlab-backend/pkg/db"
	"github.com/quizlabhq/quizlab-backend/pkg/logger"
	"github.com/quizlabhq/quizlab-backend/pkg/mailer"
	"github.com/quizlabhq/quizlab-backend/pkg/metrics"
	"github.com/quizlabhq/quizlab-backend/pkg/migrate"
	"github.com/quizlabhq/quizlab-backend/pkg/pubsub"
	"github.com/quizlabhq/quizlab-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Configured() {
		redisClient, err = redis.New(context.Background(), cfg.Redis)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	webhookMetrics := metrics.NewWebhookMetrics(registry)
	rateLimitMetrics := metrics.NewRateLimitMetrics(registry)

	limiter := ratelimit.New(counterStore(cfg, redisClient, logg), logg)
	rules, err := routeRules(cfg.RateLimit)
	if err != nil {
		logg.Error(context.Background(), "invalid rate limit config", err)
		os.Exit(1)
	}

	tokenIssuer, err := credentials.NewTokenIssuer(cfg.Credentials.TokenPepper)
	if err != nil {
		logg.Error(context.Background(), "failed to create token issuer", err)
		os.Exit(1)
	}
	sessionIssuer, err := credentials.NewSessionIssuer(cfg.Credentials.SessionSecret, cfg.Credentials.SessionTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create session issuer", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	usersRepo := users.NewRepository(dbClient.DB())
	linksRepo := reports.NewRepository(dbClient.DB())

	mailClient := mailer.NewClient(cfg.Mailer, logg)

	var publisher payment.ReportPublisher
	if cfg.GCP.ProjectID != "" {
		psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer psClient.Close()
		publisher = psClient
	}

	webhookService, err := payment.NewService(payment.ServiceParams{
		Orders:    ordersRepo,
		Users:     usersRepo,
		Mailer:    mailClient,
		Publisher: publisher,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{Repo: ordersRepo, Logger: logg})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	reportsService, err := reports.NewService(reports.ServiceParams{
		Orders:        ordersRepo,
		Links:         linksRepo,
		Tokens:        tokenIssuer,
		Sessions:      sessionIssuer,
		Mailer:        mailClient,
		Logger:        logg,
		PublicBaseURL: cfg.Public.BaseURL,
		LinkTTL:       cfg.Credentials.AccessLinkTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reports service", err)
		os.Exit(1)
	}

	webhookController, err := webhooks.NewPaymentController(webhooks.PaymentControllerParams{
		Service:    webhookService,
		Secret:     cfg.Webhook.Secret,
		SkipVerify: cfg.Webhook.SkipVerify,
		Metrics:    webhookMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook controller", err)
		os.Exit(1)
	}

	ordersController, err := orderscontroller.NewController(orderscontroller.ControllerParams{
		Service: ordersService,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders controller", err)
		os.Exit(1)
	}

	reportsController, err := reportscontroller.NewController(reportscontroller.ControllerParams{
		Service:       reportsService,
		Logger:        logg,
		PublicBaseURL: cfg.Public.BaseURL,
		SecureCookies: cfg.App.IsProd(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reports controller", err)
		os.Exit(1)
	}

	healthController := controllers.NewHealthController(controllers.HealthControllerParams{
		DB:     dbClient,
		Redis:  redisPinger(redisClient),
		Logger: logg,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.New(routes.Deps{
			Logger:          logg,
			Health:          healthController,
			Webhook:         webhookController,
			Orders:          ordersController,
			Reports:         reportsController,
			Limiter:         limiter,
			Rules:           rules,
			RateLimitMetric: rateLimitMetrics,
			MetricsRegistry: registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// counterStore picks the rate limit backend: redis when configured, the
// in-process fallback outside production, otherwise none.
func counterStore(cfg *config.Config, redisClient *redis.Client, logg *logger.Logger) ratelimit.CounterStore {
	if redisClient != nil {
		return redisClient
	}
	if cfg.App.IsProd() {
		return nil
	}
	logg.Warn(context.Background(), "using in-process rate limit store")
	return ratelimit.NewMemoryStore()
}

func routeRules(cfg config.RateLimitConfig) (routes.Rules, error) {
	accessWindow, err := ratelimit.ParseWindow(cfg.AccessLinkWindow)
	if err != nil {
		return routes.Rules{}, err
	}
	pendingWindow, err := ratelimit.ParseWindow(cfg.PendingWindow)
	if err != nil {
		return routes.Rules{}, err
	}
	redirectWindow, err := ratelimit.ParseWindow(cfg.RedirectWindow)
	if err != nil {
		return routes.Rules{}, err
	}

	return routes.Rules{
		AccessLink: ratelimit.Rule{
			Name:   "reports.access_link",
			Limit:  cfg.AccessLinkLimit,
			Window: accessWindow,
			Mode:   ratelimit.FailClosed,
		},
		Pending: ratelimit.Rule{
			Name:   "orders.mark_pending",
			Limit:  cfg.PendingLimit,
			Window: pendingWindow,
			Mode:   ratelimit.FailOpen,
		},
		Redirect: ratelimit.Rule{
			Name:   "reports.redeem",
			Limit:  cfg.RedirectLimit,
			Window: redirectWindow,
			Mode:   ratelimit.FailOpen,
		},
	}, nil
}

// redisPinger avoids handing the health check a typed nil.
func redisPinger(client *redis.Client) interface {
	Ping(ctx context.Context) error
} {
	if client == nil {
		return nil
	}
	return client
}
