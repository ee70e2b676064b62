package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/partdash/partdash-backend/internal/cancellation"
	"github.com/partdash/partdash-backend/internal/compensation"
	"github.com/partdash/partdash-backend/internal/cron"
	"github.com/partdash/partdash-backend/internal/disputes"
	"github.com/partdash/partdash-backend/internal/notify"
	"github.com/partdash/partdash-backend/internal/payouts"
	"github.com/partdash/partdash-backend/internal/refunds"
	"github.com/partdash/partdash-backend/pkg/config"
	"github.com/partdash/partdash-backend/pkg/db"
	"github.com/partdash/partdash-backend/pkg/gateway"
	"github.com/partdash/partdash-backend/pkg/logger"
	"github.com/partdash/partdash-backend/pkg/metrics"
	"github.com/partdash/partdash-backend/pkg/migrate"
	"github.com/partdash/partdash-backend/pkg/pubsub"
	"github.com/partdash/partdash-backend/pkg/redis"
)

const lockKeyFormat = "pd:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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
		logg.Error(context.Background(), "failed to build sweep registry", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  sweepMetrics,
		Interval: cfg.Sweep.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
