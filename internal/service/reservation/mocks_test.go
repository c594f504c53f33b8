package reservation

import (
	"context"
	"time"

	"github.com/Domenick1991/airreservation/internal/domain"
	"github.com/Domenick1991/airreservation/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
	tx repository.ReservationTx
}

// WithTx hands fn the mock transaction unless an error is configured.
func (m *MockStore) WithTx(ctx context.Context, fn func(tx repository.ReservationTx) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m.tx)
}

func (m *MockStore) SearchFlights(ctx context.Context, filter repository.FlightFilter) ([]domain.FlightAvailability, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.FlightAvailability), args.Error(1)
}

func (m *MockStore) GetFlight(ctx context.Context, flightCode int64) (*domain.Flight, error) {
	args := m.Called(ctx, flightCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockStore) GetReservationByPNR(ctx context.Context, pnr string) (*domain.Reservation, error) {
	args := m.Called(ctx, pnr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockStore) ListReservations(ctx context.Context, offset, limit int) ([]domain.Reservation, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockStore) ListReservationsByPhone(ctx context.Context, phone string) ([]domain.Reservation, error) {
	args := m.Called(ctx, phone)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockStore) DeleteWaitingEntriesBefore(ctx context.Context, date time.Time) ([]domain.WaitingListEntry, error) {
	args := m.Called(ctx, date)
	return args.Get(0).([]domain.WaitingListEntry), args.Error(1)
}

type MockTx struct {
	mock.Mock
}

func (m *MockTx) GetFlight(ctx context.Context, flightCode int64) (*domain.Flight, error) {
	args := m.Called(ctx, flightCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockTx) GetFlightSeatCapacity(ctx context.Context, flightCode int64, class domain.SeatClass) (int, error) {
	args := m.Called(ctx, flightCode, class)
	return args.Int(0), args.Error(1)
}

func (m *MockTx) GetConfirmedSeatNumbers(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time) ([]int, error) {
	args := m.Called(ctx, flightCode, class, travelDate)
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockTx) UpsertCustomerByPhone(ctx context.Context, customer domain.Customer) (int64, error) {
	args := m.Called(ctx, customer)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockTx) PNRExists(ctx context.Context, pnr string) (bool, error) {
	args := m.Called(ctx, pnr)
	return args.Bool(0), args.Error(1)
}

func (m *MockTx) InsertReservation(ctx context.Context, reservation *domain.Reservation) (int64, error) {
	args := m.Called(ctx, reservation)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) UpdateReservationStatus(ctx context.Context, reservationID int64, status domain.ReservationStatus) error {
	args := m.Called(ctx, reservationID, status)
	return args.Error(0)
}

func (m *MockTx) GetConfirmedReservationByPNR(ctx context.Context, pnr string) (*domain.Reservation, error) {
	args := m.Called(ctx, pnr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockTx) InsertCancellationRecord(ctx context.Context, record domain.CancellationRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockTx) GetNextWaitingNumber(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time) (int, error) {
	args := m.Called(ctx, flightCode, class, travelDate)
	return args.Int(0), args.Error(1)
}

func (m *MockTx) InsertWaitingListEntry(ctx context.Context, entry *domain.WaitingListEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockTx) GetFrontOfWaitingList(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time) (*domain.WaitingListEntry, error) {
	args := m.Called(ctx, flightCode, class, travelDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WaitingListEntry), args.Error(1)
}

func (m *MockTx) RemoveWaitingListEntry(ctx context.Context, entryID int64) error {
	args := m.Called(ctx, entryID)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) AcquireScopeLock(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, flightCode, class, travelDate, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockCache) ReleaseScopeLock(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time, token string) error {
	args := m.Called(ctx, flightCode, class, travelDate, token)
	return args.Error(0)
}

func (m *MockCache) GetFlights(ctx context.Context, travelDate time.Time, class domain.SeatClass) ([]domain.FlightAvailability, error) {
	args := m.Called(ctx, travelDate, class)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FlightAvailability), args.Error(1)
}

func (m *MockCache) FlightsGeneration(ctx context.Context, travelDate time.Time) (int64, error) {
	args := m.Called(ctx, travelDate)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCache) SetFlights(ctx context.Context, travelDate time.Time, class domain.SeatClass, generation int64, flights []domain.FlightAvailability) error {
	args := m.Called(ctx, travelDate, class, generation, flights)
	return args.Error(0)
}

func (m *MockCache) InvalidateFlights(ctx context.Context, travelDate time.Time) error {
	args := m.Called(ctx, travelDate)
	return args.Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}
