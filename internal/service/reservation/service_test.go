package reservation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/airreservation/internal/domain"
	"github.com/Domenick1991/airreservation/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

var (
	today  = time.Date(2026, time.March, 10, 15, 30, 0, 0, time.UTC)
	travel = time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
)

func newFleet() *repository.MemoryStore {
	return repository.NewMemoryStore(
		domain.Flight{Code: 1, Name: "Maluti Express", EconomySeats: 1, BusinessSeats: 2, EconomyFare: 1000, BusinessFare: 2500, Source: "Maseru", Destination: "Johannesburg"},
		domain.Flight{Code: 2, Name: "Cape Hopper", EconomySeats: 12, Source: "Maseru", Destination: "Cape Town"},
		domain.Flight{Code: 3, Name: "Lowveld Link", EconomySeats: 2, EconomyFare: 900, Source: "Johannesburg", Destination: "Nelspruit"},
	)
}

func newTestService(store repository.ReservationStore, opts ...Option) *Service {
	var seq atomic.Int64
	base := []Option{
		WithClock(func() time.Time { return today }),
		WithPNRGenerator(func() string { return fmt.Sprintf("PNR%06d", seq.Add(1)) }),
		WithRetryDelay(time.Millisecond),
	}
	return NewReservationService(store, append(base, opts...)...)
}

func bookingFor(name, phone string, flightCode int64, class string) MakeReservationInput {
	return MakeReservationInput{
		Name:       name,
		Phone:      phone,
		FlightCode: flightCode,
		SeatClass:  class,
		TravelDate: travel,
	}
}

func TestMakeReservation_ConfirmsThenWaitlists(t *testing.T) {
	svc := newTestService(newFleet())
	ctx := context.Background()

	first := bookingFor("Thabo Mokoena", "26650001111", 1, "Economy")
	first.Concession = "Student"
	got, err := svc.MakeReservation(ctx, first)
	require.NoError(t, err)
	assert.True(t, got.Confirmed)
	assert.Equal(t, "PNR000001", got.PNR)
	assert.Equal(t, 1, got.SeatNumber)
	assert.InDelta(t, 750.0, got.Fare, 1e-9)
	assert.InDelta(t, 250.0, got.Discount, 1e-9)
	assert.Zero(t, got.WaitingNumber)

	for i, phone := range []string{"26650002222", "26650003333"} {
		waiting, err := svc.MakeReservation(ctx, bookingFor("Waiting "+phone, phone, 1, "Economy"))
		require.NoError(t, err)
		assert.False(t, waiting.Confirmed)
		assert.Empty(t, waiting.PNR)
		assert.Zero(t, waiting.SeatNumber)
		assert.Equal(t, i+1, waiting.WaitingNumber)
	}
}

func TestCancelReservation_PromotesWaitingCustomer(t *testing.T) {
	store := newFleet()
	svc := newTestService(store)
	ctx := context.Background()

	first := bookingFor("Thabo Mokoena", "26650001111", 1, "Economy")
	first.Concession = "Student"
	booked, err := svc.MakeReservation(ctx, first)
	require.NoError(t, err)
	second, err := svc.MakeReservation(ctx, bookingFor("Lerato Nthati", "26650002222", 1, "Economy"))
	require.NoError(t, err)
	third, err := svc.MakeReservation(ctx, bookingFor("Palesa Mohapi", "26650003333", 1, "Economy"))
	require.NoError(t, err)

	got, err := svc.CancelReservation(ctx, booked.PNR)
	require.NoError(t, err)

	assert.True(t, got.Success)
	assert.InDelta(t, 75.0, got.CancellationFee, 1e-9)
	assert.InDelta(t, 675.0, got.RefundAmount, 1e-9)
	require.NotNil(t, got.Promoted)
	assert.Equal(t, second.CustomerID, got.Promoted.CustomerID)
	assert.Equal(t, 1, got.Promoted.WaitingNumber)
	assert.Equal(t, 1, got.Promoted.SeatNumber)
	assert.Equal(t, "PNR000002", got.Promoted.PNR)
	assert.InDelta(t, 750.0, got.Promoted.Fare, 1e-9, "promoted customer inherits the cancelled fare")

	remaining := store.WaitingList(1, domain.SeatClassEconomy, travel)
	require.Len(t, remaining, 1)
	assert.Equal(t, third.CustomerID, remaining[0].CustomerID)
	assert.Equal(t, 2, remaining[0].WaitingNumber)

	cancelled, err := svc.GetReservation(ctx, booked.PNR)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusCancelled, cancelled.Status)

	promoted, err := svc.GetReservation(ctx, "pnr000002")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusConfirmed, promoted.Status)
	assert.Equal(t, "Lerato Nthati", promoted.CustomerName)

	records := store.Cancellations()
	require.Len(t, records, 1)
	assert.Equal(t, cancelled.ID, records[0].ReservationID)
	assert.InDelta(t, 675.0, records[0].RefundAmount, 1e-9)
	assert.Equal(t, today, records[0].CancelledAt)
}

func TestCancelReservation_EmptiesWaitingList(t *testing.T) {
	store := newFleet()
	svc := newTestService(store)
	ctx := context.Background()

	booked, err := svc.MakeReservation(ctx, bookingFor("Thabo Mokoena", "26650001111", 1, "Economy"))
	require.NoError(t, err)
	waiting, err := svc.MakeReservation(ctx, bookingFor("Lerato Nthati", "26650002222", 1, "Economy"))
	require.NoError(t, err)
	require.Equal(t, 1, waiting.WaitingNumber)

	got, err := svc.CancelReservation(ctx, booked.PNR)
	require.NoError(t, err)
	require.NotNil(t, got.Promoted)
	assert.Equal(t, 1, got.Promoted.SeatNumber)
	assert.Empty(t, store.WaitingList(1, domain.SeatClassEconomy, travel))
}

func TestCancelReservation_Twice(t *testing.T) {
	svc := newTestService(newFleet())
	ctx := context.Background()

	booked, err := svc.MakeReservation(ctx, bookingFor("Thabo Mokoena", "26650001111", 3, "Economy"))
	require.NoError(t, err)

	first, err := svc.CancelReservation(ctx, booked.PNR)
	require.NoError(t, err)
	assert.Greater(t, first.RefundAmount, 0.0)
	assert.Nil(t, first.Promoted)

	second, err := svc.CancelReservation(ctx, booked.PNR)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, second)

	_, err = svc.CancelReservation(ctx, "PNR999999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelReservation_RefundTiers(t *testing.T) {
	testCases := []struct {
		name       string
		travelDate time.Time
		fee        float64
		refund     float64
	}{
		{name: "days ahead", travelDate: travel, fee: 90, refund: 810},
		{name: "travel day", travelDate: today, fee: 225, refund: 675},
		{name: "travel date passed", travelDate: today.AddDate(0, 0, -3), fee: 900, refund: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFleet()
			svc := newTestService(store)
			ctx := context.Background()

			require.NoError(t, store.WithTx(ctx, func(tx repository.ReservationTx) error {
				id, err := tx.UpsertCustomerByPhone(ctx, domain.Customer{Name: "Thabo", Phone: "26650001111"})
				if err != nil {
					return err
				}
				_, err = tx.InsertReservation(ctx, &domain.Reservation{
					PNR: "PNR424242", CustomerID: id, FlightCode: 3, SeatClass: domain.SeatClassEconomy,
					SeatNumber: 1, Status: domain.ReservationStatusConfirmed, Fare: 900, TravelDate: tc.travelDate,
				})
				return err
			}))

			preview, err := svc.PreviewRefund(ctx, "PNR424242")
			require.NoError(t, err)
			assert.InDelta(t, tc.fee, preview.CancellationFee, 1e-9)

			got, err := svc.CancelReservation(ctx, "PNR424242")
			require.NoError(t, err)
			assert.True(t, got.Success)
			assert.InDelta(t, tc.fee, got.CancellationFee, 1e-9)
			assert.InDelta(t, tc.refund, got.RefundAmount, 1e-9)
			assert.InDelta(t, 900.0, got.CancellationFee+got.RefundAmount, 1e-9)
		})
	}
}

func TestCancelReservation_RecomputesPromotionFare(t *testing.T) {
	svc := newTestService(newFleet(), WithPromotionFareRecompute(true))
	ctx := context.Background()

	first := bookingFor("Thabo Mokoena", "26650001111", 1, "Economy")
	first.Concession = "Student"
	booked, err := svc.MakeReservation(ctx, first)
	require.NoError(t, err)

	waiting := bookingFor("Lerato Nthati", "26650002222", 1, "Economy")
	waiting.Concession = "Senior Citizen"
	_, err = svc.MakeReservation(ctx, waiting)
	require.NoError(t, err)

	got, err := svc.CancelReservation(ctx, booked.PNR)
	require.NoError(t, err)
	require.NotNil(t, got.Promoted)
	assert.InDelta(t, 870.0, got.Promoted.Fare, 1e-9)
}

func TestMakeReservation_WindowPreference(t *testing.T) {
	svc := newTestService(newFleet())
	ctx := context.Background()

	var seats []int
	for i := 0; i < 5; i++ {
		in := bookingFor("Window Fan", "26650001111", 2, "Economy")
		in.SeatPreference = "Window"
		got, err := svc.MakeReservation(ctx, in)
		require.NoError(t, err)
		require.True(t, got.Confirmed)
		seats = append(seats, got.SeatNumber)
	}
	assert.Equal(t, []int{1, 6, 7, 12, 2}, seats)

	aisle := bookingFor("Aisle Fan", "26650002222", 2, "Economy")
	aisle.SeatPreference = "Aisle"
	got, err := svc.MakeReservation(ctx, aisle)
	require.NoError(t, err)
	assert.Equal(t, 3, got.SeatNumber)
}

func TestMakeReservation_Fares(t *testing.T) {
	testCases := []struct {
		name       string
		flightCode int64
		class      string
		concession string
		fare       float64
		discount   float64
	}{
		{name: "default economy fare", flightCode: 2, class: "Economy", fare: 850},
		{name: "senior on default fare", flightCode: 2, class: "Economy", concession: "senior citizen", fare: 739.5, discount: 110.5},
		{name: "executive alias", flightCode: 1, class: "Executive", concession: "Cancer Patient", fare: 1077.5, discount: 1422.5},
		{name: "unknown concession pays full fare", flightCode: 1, class: "Business", concession: "Veteran", fare: 2500},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(newFleet())
			in := bookingFor("Thabo Mokoena", "26650001111", tc.flightCode, tc.class)
			in.Concession = tc.concession

			got, err := svc.MakeReservation(context.Background(), in)

			require.NoError(t, err)
			assert.InDelta(t, tc.fare, got.Fare, 1e-9)
			assert.InDelta(t, tc.discount, got.Discount, 1e-9)
		})
	}
}

func TestMakeReservation_ReusesCustomerByPhone(t *testing.T) {
	svc := newTestService(newFleet())
	ctx := context.Background()

	first, err := svc.MakeReservation(ctx, bookingFor("Thabo Mokoena", "+266 5000 1111", 2, "Economy"))
	require.NoError(t, err)
	later := bookingFor("Thabo M.", "26650001111", 3, "Economy")
	later.TravelDate = travel.AddDate(0, 0, 7)
	second, err := svc.MakeReservation(ctx, later)
	require.NoError(t, err)

	assert.Equal(t, first.CustomerID, second.CustomerID)

	history, err := svc.CustomerReservations(ctx, "(266) 5000-1111")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.PNR, history[0].PNR)
	assert.Equal(t, first.PNR, history[1].PNR)
}

func TestMakeReservation_UnknownFlight(t *testing.T) {
	svc := newTestService(newFleet())

	got, err := svc.MakeReservation(context.Background(), bookingFor("Thabo Mokoena", "26650001111", 99, "Economy"))

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, got)
}

func TestMakeReservation_ValidationNeverTouchesStorage(t *testing.T) {
	valid := bookingFor("Thabo Mokoena", "26650001111", 1, "Economy")

	testCases := []struct {
		name   string
		mutate func(in *MakeReservationInput)
		field  string
	}{
		{name: "blank name", mutate: func(in *MakeReservationInput) { in.Name = "   " }, field: "name"},
		{name: "missing phone", mutate: func(in *MakeReservationInput) { in.Phone = "" }, field: "phone"},
		{name: "short phone", mutate: func(in *MakeReservationInput) { in.Phone = "12345" }, field: "phone"},
		{name: "letters in phone", mutate: func(in *MakeReservationInput) { in.Phone = "2665000111x" }, field: "phone"},
		{name: "zero flight", mutate: func(in *MakeReservationInput) { in.FlightCode = 0 }, field: "flight_code"},
		{name: "unknown class", mutate: func(in *MakeReservationInput) { in.SeatClass = "First" }, field: "seat_class"},
		{name: "missing travel date", mutate: func(in *MakeReservationInput) { in.TravelDate = time.Time{} }, field: "travel_date"},
		{name: "past travel date", mutate: func(in *MakeReservationInput) { in.TravelDate = today.AddDate(0, 0, -1) }, field: "travel_date"},
		{name: "too young", mutate: func(in *MakeReservationInput) { in.DateOfBirth = today.AddDate(-11, 0, 0) }, field: "date_of_birth"},
		{name: "born tomorrow", mutate: func(in *MakeReservationInput) { in.DateOfBirth = today.AddDate(0, 0, 1) }, field: "date_of_birth"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := &MockStore{}
			svc := newTestService(store)
			in := valid
			tc.mutate(&in)

			got, err := svc.MakeReservation(context.Background(), in)

			assert.Nil(t, got)
			assert.ErrorIs(t, err, domain.ErrValidation)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			store.AssertExpectations(t)
		})
	}
}

func TestMakeReservation_TravelTodayIsAllowed(t *testing.T) {
	svc := newTestService(newFleet())
	in := bookingFor("Thabo Mokoena", "26650001111", 3, "Economy")
	in.TravelDate = today
	in.DateOfBirth = time.Date(2014, time.March, 10, 0, 0, 0, 0, time.UTC)

	got, err := svc.MakeReservation(context.Background(), in)

	require.NoError(t, err)
	assert.True(t, got.Confirmed)
}

func TestSearchAvailableFlights(t *testing.T) {
	svc := newTestService(newFleet())
	ctx := context.Background()

	_, err := svc.MakeReservation(ctx, bookingFor("Thabo Mokoena", "26650001111", 1, "Economy"))
	require.NoError(t, err)

	testCases := []struct {
		name  string
		input SearchInput
		names []string
		fares []float64
	}{
		{
			name:  "full flight is hidden",
			input: SearchInput{TravelDate: travel, SeatClass: "Economy"},
			names: []string{"Cape Hopper", "Lowveld Link"},
			fares: []float64{850, 900},
		},
		{
			name:  "any route",
			input: SearchInput{TravelDate: travel, SeatClass: "economy", Route: AnyRoute},
			names: []string{"Cape Hopper", "Lowveld Link"},
			fares: []float64{850, 900},
		},
		{
			name:  "route filter",
			input: SearchInput{TravelDate: travel, SeatClass: "Economy", Route: "Johannesburg → Nelspruit"},
			names: []string{"Lowveld Link"},
			fares: []float64{900},
		},
		{
			name:  "other day has the seat",
			input: SearchInput{TravelDate: travel.AddDate(0, 0, 1), SeatClass: "Economy", Route: "Maseru → Johannesburg"},
			names: []string{"Maluti Express"},
			fares: []float64{1000},
		},
		{
			name:  "business cabin",
			input: SearchInput{TravelDate: travel, SeatClass: "Business"},
			names: []string{"Maluti Express"},
			fares: []float64{2500},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			flights, err := svc.SearchAvailableFlights(ctx, tc.input)
			require.NoError(t, err)

			var names []string
			var fares []float64
			for _, f := range flights {
				names = append(names, f.Flight.Name)
				fares = append(fares, f.BaseFare)
				assert.Positive(t, f.AvailableSeats)
			}
			assert.Equal(t, tc.names, names)
			assert.Equal(t, tc.fares, fares)
		})
	}

	_, err = svc.SearchAvailableFlights(ctx, SearchInput{SeatClass: "Economy"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.SearchAvailableFlights(ctx, SearchInput{TravelDate: travel, SeatClass: "Premium"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestQuoteFare(t *testing.T) {
	svc := newTestService(newFleet())
	ctx := context.Background()

	quote, err := svc.QuoteFare(ctx, 2, "Economy", "Senior Citizen")
	require.NoError(t, err)
	assert.InDelta(t, 850.0, quote.BaseFare, 1e-9)
	assert.InDelta(t, 110.5, quote.Discount, 1e-9)
	assert.InDelta(t, 739.5, quote.FinalFare, 1e-9)

	_, err = svc.QuoteFare(ctx, 99, "Economy", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.QuoteFare(ctx, 1, "Premium", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.QuoteFare(ctx, 0, "Economy", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestListReservations(t *testing.T) {
	svc := newTestService(newFleet())
	ctx := context.Background()

	for _, phone := range []string{"26650001111", "26650002222", "26650003333"} {
		_, err := svc.MakeReservation(ctx, bookingFor("Passenger "+phone, phone, 2, "Economy"))
		require.NoError(t, err)
	}

	page, err := svc.ListReservations(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "PNR000003", page[0].PNR)
	assert.Equal(t, "PNR000002", page[1].PNR)

	for _, bounds := range [][2]int{{-1, 10}, {0, 0}, {0, MaxPageSize + 1}} {
		_, err := svc.ListReservations(ctx, bounds[0], bounds[1])
		assert.ErrorIs(t, err, domain.ErrValidation, "offset %d limit %d", bounds[0], bounds[1])
	}

	_, err = svc.GetReservation(ctx, "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.CancelReservation(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestExpireWaitingList(t *testing.T) {
	store := newFleet()
	producer := &MockProducer{}
	svc := newTestService(store, WithProducer(producer, "reservation_events"))
	ctx := context.Background()

	yesterday := today.AddDate(0, 0, -1)
	require.NoError(t, store.WithTx(ctx, func(tx repository.ReservationTx) error {
		for _, d := range []time.Time{yesterday, travel} {
			err := tx.InsertWaitingListEntry(ctx, &domain.WaitingListEntry{
				CustomerID: 1, FlightCode: 1, SeatClass: domain.SeatClassEconomy, TravelDate: d, WaitingNumber: 1,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))
	producer.On("Publish", mock.Anything, "reservation_events", mockAnyKey, mockEventOfType("waitlist_expired")).Return(nil).Once()

	expired, err := svc.ExpireWaitingList(ctx)

	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.True(t, expired[0].TravelDate.Equal(domain.DateOf(yesterday)))
	assert.Len(t, store.WaitingList(1, domain.SeatClassEconomy, travel), 1)
	producer.AssertExpectations(t)
}

func TestMakeReservation_ConcurrentBookingsNeverShareSeats(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := newTestService(newFleet())
	ctx := context.Background()

	const customers = 8
	var (
		mu      sync.Mutex
		results []*domain.ReservationResult
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < customers; i++ {
		phone := fmt.Sprintf("2665000%04d", i)
		g.Go(func() error {
			got, err := svc.MakeReservation(gctx, bookingFor("Passenger "+phone, phone, 3, "Economy"))
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
}

func TestMakeReservation_ContextCancelled(t *testing.T) {
	svc := newTestService(newFleet())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.MakeReservation(ctx, bookingFor("Thabo Mokoena", "26650001111", 1, "Economy"))

	assert.True(t, errors.Is(err, context.Canceled))
}
