package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/weather-notify/internal/application/notification"
	"github.com/weather-notify/internal/application/otp"
	"github.com/weather-notify/internal/application/subscription"
	"github.com/weather-notify/internal/config"
	"github.com/weather-notify/internal/infrastructure/dynamo"
	"github.com/weather-notify/internal/infrastructure/mongo"
	"github.com/weather-notify/internal/infrastructure/openweather"
	s3infra "github.com/weather-notify/internal/infrastructure/s3"
	"github.com/weather-notify/internal/infrastructure/smtp"
	"github.com/weather-notify/internal/infrastructure/sns"
	"github.com/weather-notify/internal/observability"
	"github.com/weather-notify/internal/scheduler"
	transporthttp "github.com/weather-notify/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()
	mailer := smtp.NewMailer(cfg)

	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:    store,
		Mailer:   mailer,
		Clock:    clock,
		Metrics:  metrics,
		TTL:      cfg.OTPTTL,
		HashCost: cfg.OTPHashCost,
	})
	subSvc := subscription.NewService(subscription.ServiceDeps{
		Store: store,
		OTP:   otpSvc,
		Clock: clock,
	})

	sweepDeps := notification.SweeperDeps{
		Store:           store,
		Weather:         openweather.NewClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.WeatherTimeout),
		Mailer:          mailer,
		Clock:           clock,
		Logger:          logger.With("component", "sweeper"),
		Metrics:         metrics,
		MinInterval:     cfg.SweepMinInterval,
		RecordSnapshots: cfg.SweepRecordSnapshots,
	}
	if cfg.OpenWeatherAPIKey == "" {
		slog.Warn("OPENWEATHER_API_KEY is not set; weather reports will fail")
	}
	if cfg.ReportBucket != "" {
		s3Client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		sweepDeps.Archive = s3infra.NewArchive(s3Client, cfg.ReportBucket)
	}
	if cfg.SweepTopicARN != "" {
		pub, err := sns.NewPublisher(ctx, cfg)
		if err != nil {
			slog.Warn("sweep summary publisher not available", "err", err)
		} else {
			sweepDeps.Publisher = pub
		}
	}
	sweeper := notification.NewSweeper(sweepDeps)

	sched := scheduler.New(cfg.SweepCron, sweeper, logger.With("component", "scheduler"))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Store:         store,
		Subscriptions: subSvc,
		OTP:           otpSvc,
		Metrics:       metrics,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-serveErr:
		sched.Stop()
		return fmt.Errorf("server error: %w", err)
	}

	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// openStore connects the backend selected by STORE_DRIVER and prepares its
// table or indexes.
func openStore(ctx context.Context, cfg *config.Config) (transporthttp.SubscriberStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := mongo.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		coll := client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
		if err := mongo.EnsureIndexes(ctx, coll); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		closeFn := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		}
		return mongo.NewSubscriberRepo(coll), closeFn, nil
	default:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return dynamo.NewSubscriberRepo(client, cfg.DynamoTables.Subscribers), func() {}, nil
	}
}
