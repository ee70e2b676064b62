package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/partdash/partdash-backend/api/controllers"
	"github.com/partdash/partdash-backend/api/routes"
	"github.com/partdash/partdash-backend/internal/cancellation"
	"github.com/partdash/partdash-backend/internal/compensation"
	"github.com/partdash/partdash-backend/internal/cron"
	"github.com/partdash/partdash-backend/internal/disputes"
	"github.com/partdash/partdash-backend/internal/notify"
	"github.com/partdash/partdash-backend/internal/payouts"
	"github.com/partdash/partdash-backend/internal/refunds"
	"github.com/partdash/partdash-backend/pkg/config"
	"github.com/partdash/partdash-backend/pkg/db"
	"github.com/partdash/partdash-backend/pkg/env"
	"github.com/partdash/partdash-backend/pkg/gateway"
	"github.com/partdash/partdash-backend/pkg/logger"
	"github.com/partdash/partdash-backend/pkg/metrics"
	"github.com/partdash/partdash-backend/pkg/migrate"
	"github.com/partdash/partdash-backend/pkg/pubsub"
	"github.com/partdash/partdash-backend/pkg/redis"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := gateway.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment gateway", err)
		os.Exit(1)
	}

	var notifier notify.Transport = notify.NopTransport{}
	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Warn(context.Background(), "pubsub unavailable, notifications disabled: "+err.Error())
	} else {
		defer pubsubClient.Close()
		transport, err := notify.NewPubSubTransport(pubsubClient, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to wire notification transport", err)
			os.Exit(1)
		}
		notifier = transport
	}

	cancelMetrics := metrics.NewCancellationMetrics(prometheus.DefaultRegisterer)
	sweepMetrics := metrics.NewSweepMetrics(prometheus.DefaultRegisterer)

	refundSvc := refunds.NewService(dbClient, refunds.NewRepository(dbClient.DB()), squareClient, notifier, logg)
	payoutSvc := payouts.NewService(dbClient, payouts.NewRepository(dbClient.DB()), cfg.Payout, notifier, logg)
	compSvc := compensation.NewService(dbClient, compensation.NewRepository(dbClient.DB()), cfg.Payout, notifier, logg)
	cancelSvc := cancellation.NewService(cancellation.Params{
		TxRunner:     dbClient,
		Repo:         cancellation.NewRepository(dbClient.DB()),
		Config:       cfg.Cancellation,
		Refunds:      refundSvc,
		Payouts:      payoutSvc,
		Compensation: compSvc,
		Notifier:     notifier,
		Logger:       logg,
		Metrics:      cancelMetrics,
	})
	disputeSvc := disputes.NewService(dbClient, disputes.NewRepository(dbClient.DB()), cancelSvc, payoutSvc, notifier, logg)

	sweepSvc, err := buildSweepService(cfg, logg, dbClient, cancelSvc, payoutSvc, disputeSvc, refundSvc, sweepMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build sweep service", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	handler := routes.NewRouter(cfg, logg,
		routes.Services{
			Cancellations: cancelSvc,
			Compensation:  compSvc,
			Disputes:      disputeSvc,
			Sweeps:        sweepSvc,
		},
		routes.Deps{
			ReadyChecks: controllers.ReadinessDeps(dbClient, redisClient),
			Metrics:     promhttp.Handler(),
		},
	)

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// buildSweepService wires the same job registry the cron worker runs, behind
// a no-op lock. The API only exposes it through the manual trigger endpoint.
func buildSweepService(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	cancelSvc *cancellation.Service,
	payoutSvc *payouts.Service,
	disputeSvc *disputes.Service,
	refundSvc *refunds.Service,
	sweepMetrics *metrics.SweepMetrics,
) (*cron.Service, error) {
	registry, err := cron.BuildRegistry(cron.Deps{
		Logger:        logg,
		DB:            dbClient.DB(),
		Cancellations: cancelSvc,
		Payouts:       payoutSvc,
		Disputes:      disputeSvc,
		Refunds:       refundSvc,
		Metrics:       sweepMetrics,
		Sweep:         cfg.Sweep,
		Payout:        cfg.Payout,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     cron.NopLock{},
		Metrics:  sweepMetrics,
		Interval: cfg.Sweep.Interval,
	})
}
