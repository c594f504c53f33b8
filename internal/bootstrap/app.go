package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airreservation/config"
	"github.com/Domenick1991/airreservation/internal/cache"
	"github.com/Domenick1991/airreservation/internal/domain"
	"github.com/Domenick1991/airreservation/internal/kafka"
	"github.com/Domenick1991/airreservation/internal/metrics"
	"github.com/Domenick1991/airreservation/internal/repository"
	"github.com/Domenick1991/airreservation/internal/service/reservation"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// ErrNoDatabase is returned by Migrate when the memory driver is configured.
var ErrNoDatabase = errors.New("migrate requires the postgres driver")

// App holds the reservation service and the clients it was built from.
type App struct {
	Service  *reservation.Service
	Registry *prometheus.Registry
	Checks   map[string]Pinger

	pg      *repository.PGReservationStore
	closers []func()
}

// Build connects the storage, cache and event backends named in cfg and
// wires them into a reservation service. Redis and Kafka stay off when
// their addresses are empty.
func Build(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*App, error) {
	app := &App{
		Registry: prometheus.NewRegistry(),
		Checks:   make(map[string]Pinger),
	}
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var store repository.ReservationStore
	switch cfg.Database.Driver {
	case config.DriverMemory:
		store = repository.NewMemoryStore(FleetFlights(cfg.Fleet)...)
		logger.WithField("flights", len(cfg.Fleet)).Warn("using in-memory storage, reservations are lost on exit")
	default:
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		app.closers = append(app.closers, pool.Close)
		app.Checks["postgres"] = pool
		app.pg = repository.NewReservationStore(pool)
		store = app.pg
	}

	opts := []reservation.Option{
		reservation.WithLogger(logger),
		reservation.WithMetrics(metrics.NewReservations(app.Registry)),
		reservation.WithMaxConflictRetries(cfg.Reservation.MaxConflictRetries),
		reservation.WithRetryDelay(cfg.Reservation.RetryDelay()),
		reservation.WithDefaultFares(cfg.Reservation.DefaultEconomyFare, cfg.Reservation.DefaultBusinessFare),
		reservation.WithPromotionFareRecompute(cfg.Reservation.RecomputePromotionFare),
	}

	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Reservation.FlightsCacheTTL())
		app.closers = append(app.closers, func() { _ = redisCache.Close() })
		app.Checks["redis"] = redisCache
		opts = append(opts, reservation.WithCache(redisCache, cfg.Reservation.LockTTL()))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers,
			kafka.WithProducerLogger(logger),
			kafka.WithRetries(cfg.Kafka.PublishRetries, 500*time.Millisecond),
		)
		app.closers = append(app.closers, func() { _ = producer.Close() })
		app.Checks["kafka"] = producer
		opts = append(opts,
			reservation.WithProducer(producer, cfg.Kafka.EventsTopic),
			reservation.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
			reservation.WithPublishTimeout(cfg.Kafka.PublishTimeout()),
		)
	}

	app.Service = reservation.NewReservationService(store, opts...)
	return app, nil
}

// Migrate applies the schema and, when seed is set, inserts the configured
// fleet. It returns the number of flights inserted.
func (a *App) Migrate(ctx context.Context, fleet []config.FlightConfig, seed bool) (int, error) {
	if a.pg == nil {
		return 0, ErrNoDatabase
	}
	if err := a.pg.ApplySchema(ctx); err != nil {
		return 0, err
	}
	if !seed {
		return 0, nil
	}
	for i, f := range FleetFlights(fleet) {
		if err := a.pg.CreateFlight(ctx, &f); err != nil {
			return i, fmt.Errorf("seed flight %q: %w", f.Name, err)
		}
	}
	return len(fleet), nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// FleetFlights converts configured flights to domain flights. Clock times
// are placed on 2000-01-01 UTC since only the time of day is meaningful.
func FleetFlights(fleet []config.FlightConfig) []domain.Flight {
	return lo.Map(fleet, func(f config.FlightConfig, _ int) domain.Flight {
		return domain.Flight{
			Name:          f.Name,
			EconomySeats:  f.EconomySeats,
			BusinessSeats: f.BusinessSeats,
			EconomyFare:   f.EconomyFare,
			BusinessFare:  f.BusinessFare,
			Source:        f.Source,
			Destination:   f.Destination,
			DepartureTime: parseClock(f.Departure),
			ArrivalTime:   parseClock(f.Arrival),
		}
	})
}

func parseClock(clock string) time.Time {
	t, err := time.Parse(config.ClockLayout, clock)
	if err != nil {
		return time.Time{}
	}
	return time.Date(2000, time.January, 1, t.Hour(), t.Minute(), 0, 0, time.UTC)
}
