// Package waitlist implements the FIFO waiting list kept per flight, seat
// class and travel date.
package waitlist

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/airreservation/internal/domain"
)

// Scope identifies one waiting list.
type Scope struct {
	FlightCode int64
	SeatClass  domain.SeatClass
	TravelDate time.Time
}

func (s Scope) String() string {
	return fmt.Sprintf("%d/%s/%s", s.FlightCode, s.SeatClass, domain.DateOf(s.TravelDate).Format(time.DateOnly))
}

// Store is the persistence the queue needs. It is normally a repository
// transaction so queue operations commit together with the booking that
// caused them.
type Store interface {
	GetNextWaitingNumber(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time) (int, error)
	InsertWaitingListEntry(ctx context.Context, entry *domain.WaitingListEntry) error
	// GetFrontOfWaitingList returns nil without error when the list is empty.
	GetFrontOfWaitingList(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time) (*domain.WaitingListEntry, error)
	RemoveWaitingListEntry(ctx context.Context, entryID int64) error
}

type Queue struct {
	store Store
}

func New(store Store) *Queue {
	return &Queue{store: store}
}

// Enqueue appends customerID to the list of scope and returns the stored
// entry. Waiting numbers start at 1 and grow by one per entry.
func (q *Queue) Enqueue(ctx context.Context, scope Scope, customerID int64) (domain.WaitingListEntry, error) {
	travelDate := domain.DateOf(scope.TravelDate)
	next, err := q.store.GetNextWaitingNumber(ctx, scope.FlightCode, scope.SeatClass, travelDate)
	if err != nil {
		return domain.WaitingListEntry{}, fmt.Errorf("next waiting number for %s: %w", scope, err)
	}

	entry := domain.WaitingListEntry{
		CustomerID:    customerID,
		FlightCode:    scope.FlightCode,
		SeatClass:     scope.SeatClass,
		TravelDate:    travelDate,
		WaitingNumber: next,
	}
	if err := q.store.InsertWaitingListEntry(ctx, &entry); err != nil {
		return domain.WaitingListEntry{}, fmt.Errorf("insert waiting entry for %s: %w", scope, err)
	}
	return entry, nil
}

// DequeueFront returns the entry with the lowest waiting number without
// removing it; nil when the list is empty. The caller removes the entry once
// it has been promoted.
func (q *Queue) DequeueFront(ctx context.Context, scope Scope) (*domain.WaitingListEntry, error) {
	entry, err := q.store.GetFrontOfWaitingList(ctx, scope.FlightCode, scope.SeatClass, domain.DateOf(scope.TravelDate))
	if err != nil {
		return nil, fmt.Errorf("front of waiting list %s: %w", scope, err)
	}
	return entry, nil
}

func (q *Queue) Remove(ctx context.Context, entryID int64) error {
	if err := q.store.RemoveWaitingListEntry(ctx, entryID); err != nil {
		return fmt.Errorf("remove waiting entry %d: %w", entryID, err)
	}
	return nil
}
