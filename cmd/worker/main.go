package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/airreservation/config"
	"github.com/Domenick1991/airreservation/internal/bootstrap"
	"github.com/Domenick1991/airreservation/internal/domain"
	"github.com/Domenick1991/airreservation/internal/kafka"
	"github.com/Domenick1991/airreservation/internal/logging"
	"github.com/Domenick1991/airreservation/internal/notify"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("build app: %v", err)
	}
	defer app.Close()

	g, ctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logger)
		defer consumer.Close()

		sender := notify.NewSender(logger)
		g.Go(func() error {
			return consumer.Consume(ctx, kafka.EventHandler(logger, sender.Send))
		})
	} else {
		logger.Warn("no kafka brokers configured, notifications are disabled")
	}

	if sweepEnabled(cfg.Database.Driver, logger) {
		g.Go(func() error {
			sweepWaitingList(ctx, app.Service, cfg.Worker.SweepInterval(), logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Errorf("worker stopped: %v", err)
		return
	}
	logger.Info("worker stopped")
}

type waitlistExpirer interface {
	ExpireWaitingList(ctx context.Context) ([]domain.WaitingListEntry, error)
}

// sweepEnabled reports whether the worker shares a waiting list with the API.
// A memory store lives inside the API process, so there is nothing to sweep.
func sweepEnabled(driver string, logger logrus.FieldLogger) bool {
	if driver == config.DriverMemory {
		logger.Warn("memory database driver, waiting list sweep is disabled")
		return false
	}
	return true
}

// sweepWaitingList drops waiting entries whose travel date has passed, once
// at startup and then every interval.
func sweepWaitingList(ctx context.Context, svc waitlistExpirer, interval time.Duration, logger logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		expired, err := svc.ExpireWaitingList(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.WithError(err).Error("expire waiting list")
		case len(expired) > 0:
			logger.WithField("count", len(expired)).Info("expired waiting entries")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
