package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/airreservation/internal/domain"
)

// ReservationStore is the storage collaborator of the reservation service.
// Reads that need no isolation are served directly; everything that decides
// on seats or waiting numbers runs through WithTx.
type ReservationStore interface {
	// WithTx runs fn in one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise. Concurrent changes detected at
	// commit time are reported as domain.ErrConflict.
	WithTx(ctx context.Context, fn func(tx ReservationTx) error) error

	SearchFlights(ctx context.Context, filter FlightFilter) ([]domain.FlightAvailability, error)
	GetFlight(ctx context.Context, flightCode int64) (*domain.Flight, error)
	// GetReservationByPNR returns the reservation in any status.
	GetReservationByPNR(ctx context.Context, pnr string) (*domain.Reservation, error)
	ListReservations(ctx context.Context, offset, limit int) ([]domain.Reservation, error)
	ListReservationsByPhone(ctx context.Context, phone string) ([]domain.Reservation, error)
	// DeleteWaitingEntriesBefore drops waiting entries whose travel date is
	// before date and returns them.
	DeleteWaitingEntriesBefore(ctx context.Context, date time.Time) ([]domain.WaitingListEntry, error)
}

// ReservationTx exposes the operations a booking or cancellation performs
// atomically.
type ReservationTx interface {
	// GetFlight reads the flight and holds it for the rest of the
	// transaction, serializing bookings of the same flight.
	GetFlight(ctx context.Context, flightCode int64) (*domain.Flight, error)
	GetFlightSeatCapacity(ctx context.Context, flightCode int64, class domain.SeatClass) (int, error)
	GetConfirmedSeatNumbers(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time) ([]int, error)

	UpsertCustomerByPhone(ctx context.Context, customer domain.Customer) (int64, error)
	GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error)

	PNRExists(ctx context.Context, pnr string) (bool, error)
	InsertReservation(ctx context.Context, reservation *domain.Reservation) (int64, error)
	UpdateReservationStatus(ctx context.Context, reservationID int64, status domain.ReservationStatus) error
	// GetConfirmedReservationByPNR returns domain.ErrNotFound when the PNR is
	// unknown or no longer confirmed.
	GetConfirmedReservationByPNR(ctx context.Context, pnr string) (*domain.Reservation, error)
	InsertCancellationRecord(ctx context.Context, record domain.CancellationRecord) error

	GetNextWaitingNumber(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time) (int, error)
	InsertWaitingListEntry(ctx context.Context, entry *domain.WaitingListEntry) error
	GetFrontOfWaitingList(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time) (*domain.WaitingListEntry, error)
	RemoveWaitingListEntry(ctx context.Context, entryID int64) error
}

type FlightFilter struct {
	TravelDate  time.Time
	SeatClass   domain.SeatClass
	Source      string
	Destination string
}
