package api

import (
	"context"

	"github.com/Domenick1991/airreservation/internal/cancellation"
	"github.com/Domenick1991/airreservation/internal/domain"
	"github.com/Domenick1991/airreservation/internal/fare"
	"github.com/Domenick1991/airreservation/internal/service/reservation"
	"github.com/stretchr/testify/mock"
)

// MockUseCase is a mock implementation of reservation.UseCase
type MockUseCase struct {
	mock.Mock
}

func (m *MockUseCase) MakeReservation(ctx context.Context, input reservation.MakeReservationInput) (*domain.ReservationResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReservationResult), args.Error(1)
}

func (m *MockUseCase) CancelReservation(ctx context.Context, pnr string) (*domain.CancellationResult, error) {
	args := m.Called(ctx, pnr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CancellationResult), args.Error(1)
}

func (m *MockUseCase) SearchAvailableFlights(ctx context.Context, input reservation.SearchInput) ([]domain.FlightAvailability, error) {
	args := m.Called(ctx, input)
	return args.Get(0).([]domain.FlightAvailability), args.Error(1)
}

func (m *MockUseCase) GetReservation(ctx context.Context, pnr string) (*domain.Reservation, error) {
	args := m.Called(ctx, pnr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockUseCase) ListReservations(ctx context.Context, offset, limit int) ([]domain.Reservation, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockUseCase) CustomerReservations(ctx context.Context, phone string) ([]domain.Reservation, error) {
	args := m.Called(ctx, phone)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockUseCase) QuoteFare(ctx context.Context, flightCode int64, seatClass, concession string) (fare.Quote, error) {
	args := m.Called(ctx, flightCode, seatClass, concession)
	return args.Get(0).(fare.Quote), args.Error(1)
}

func (m *MockUseCase) PreviewRefund(ctx context.Context, pnr string) (*cancellation.Refund, error) {
	args := m.Called(ctx, pnr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cancellation.Refund), args.Error(1)
}

func (m *MockUseCase) ExpireWaitingList(ctx context.Context) ([]domain.WaitingListEntry, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.WaitingListEntry), args.Error(1)
}

var _ reservation.UseCase = (*MockUseCase)(nil)
