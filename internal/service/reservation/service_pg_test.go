package reservation

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/airreservation/internal/domain"
	"github.com/Domenick1991/airreservation/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"
)

func startPostgresStore(t *testing.T) *repository.PGReservationStore {
	t.Helper()
	if os.Getenv("AIRRES_INTEGRATION") == "" {
		t.Skip("set AIRRES_INTEGRATION=1 to run Postgres integration tests")
	}

	ctx := context.Background()
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:15.2-alpine"),
		postgres.WithDatabase("airres"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := repository.NewReservationStore(pool)
	require.NoError(t, store.ApplySchema(ctx))
	return store
}

func TestMakeReservation_PostgresConcurrentBookingsAllSucceed(t *testing.T) {
	store := startPostgresStore(t)
	ctx := context.Background()

	flight := &domain.Flight{Name: "Lowveld Link", EconomySeats: 2, EconomyFare: 900, Source: "Johannesburg", Destination: "Nelspruit"}
	require.NoError(t, store.CreateFlight(ctx, flight))
	// No retries: queued bookings must see the seats taken before them.
	svc := newTestService(store, WithMaxConflictRetries(0))

	const customers = 8
	var (
		mu      sync.Mutex
		results []*domain.ReservationResult
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < customers; i++ {
		phone := fmt.Sprintf("2665000%04d", i)
		g.Go(func() error {
			got, err := svc.MakeReservation(gctx, bookingFor("Passenger "+phone, phone, flight.Code, "Economy"))
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, got)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var seats, waiting []int
	for _, r := range results {
		if r.Confirmed {
			seats = append(seats, r.SeatNumber)
		} else {
			waiting = append(waiting, r.WaitingNumber)
		}
	}
	sort.Ints(seats)
	sort.Ints(waiting)
	assert.Equal(t, []int{1, 2}, seats)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, waiting)

	// A cancellation racing new bookings still hands the seat to the queue front.
	var cancelled *domain.CancellationResult
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cancelled, err = svc.CancelReservation(gctx, confirmedPNR(results))
		return err
	})
	g.Go(func() error {
		_, err := svc.MakeReservation(gctx, bookingFor("Late Passenger", "26659999999", flight.Code, "Economy"))
		return err
	})
	require.NoError(t, g.Wait())
	require.NotNil(t, cancelled.Promoted)

	avail, err := store.SearchFlights(ctx, repository.FlightFilter{TravelDate: travel, SeatClass: domain.SeatClassEconomy})
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Zero(t, avail[0].AvailableSeats)
}

func confirmedPNR(results []*domain.ReservationResult) string {
	for _, r := range results {
		if r.Confirmed {
			return r.PNR
		}
	}
	return ""
}
