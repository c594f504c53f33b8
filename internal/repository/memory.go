package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/airreservation/internal/domain"
)

// MemoryStore keeps reservations in process memory. Transactions are fully
// serialized and work on a copy of the state that replaces the original only
// on success.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
	now   func() time.Time
}

type memState struct {
	flights       map[int64]domain.Flight
	customers     map[int64]domain.Customer
	phones        map[string]int64
	reservations  []domain.Reservation
	waiting       []domain.WaitingListEntry
	cancellations []domain.CancellationRecord
	nextFlight    int64
	nextCustomer  int64
	nextRes       int64
	nextWait      int64
}

func NewMemoryStore(flights ...domain.Flight) *MemoryStore {
	s := &MemoryStore{
		state: &memState{
			flights:   make(map[int64]domain.Flight),
			customers: make(map[int64]domain.Customer),
			phones:    make(map[string]int64),
		},
		now: time.Now,
	}
	for i := range flights {
		s.AddFlight(&flights[i])
	}
	return s
}

// AddFlight registers f, assigning a code when f.Code is zero.
func (s *MemoryStore) AddFlight(f *domain.Flight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.Code == 0 {
		s.state.nextFlight++
		f.Code = s.state.nextFlight
	} else if f.Code > s.state.nextFlight {
		s.state.nextFlight = f.Code
	}
	s.state.flights[f.Code] = *f
}

// Cancellations returns the audit trail recorded so far.
func (s *MemoryStore) Cancellations() []domain.CancellationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CancellationRecord(nil), s.state.cancellations...)
}

// WaitingList returns the entries of one scope ordered by waiting number.
func (s *MemoryStore) WaitingList(flightCode int64, class domain.SeatClass, travelDate time.Time) []domain.WaitingListEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.scopeEntries(flightCode, class, travelDate)
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx ReservationTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{state: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) SearchFlights(_ context.Context, filter FlightFilter) ([]domain.FlightAvailability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	travelDate := domain.DateOf(filter.TravelDate)
	result := make([]domain.FlightAvailability, 0)
	for _, f := range s.state.flights {
		if filter.Source != "" && f.Source != filter.Source {
			continue
		}
		if filter.Destination != "" && f.Destination != filter.Destination {
			continue
		}
		total := f.Capacity(filter.SeatClass)
		reserved := len(s.state.confirmedSeats(f.Code, filter.SeatClass, travelDate))
		result = append(result, domain.FlightAvailability{
			Flight:         f,
			SeatClass:      filter.SeatClass,
			TravelDate:     travelDate,
			TotalSeats:     total,
			AvailableSeats: total - reserved,
			BaseFare:       f.BaseFare(filter.SeatClass),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Flight.Name != result[j].Flight.Name {
			return result[i].Flight.Name < result[j].Flight.Name
		}
		return result[i].Flight.Code < result[j].Flight.Code
	})
	return result, nil
}

func (s *MemoryStore) GetFlight(_ context.Context, flightCode int64) (*domain.Flight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.state.flights[flightCode]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &f, nil
}

func (s *MemoryStore) GetReservationByPNR(_ context.Context, pnr string) (*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.state.reservations {
		if r.PNR == pnr {
			res := s.state.decorate(r)
			return &res, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryStore) ListReservations(_ context.Context, offset, limit int) ([]domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Reservation, 0, limit)
	for i := len(s.state.reservations) - 1 - offset; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.state.decorate(s.state.reservations[i]))
	}
	return result, nil
}

func (s *MemoryStore) ListReservationsByPhone(_ context.Context, phone string) ([]domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Reservation, 0)
	id, ok := s.state.phones[phone]
	if !ok {
		return result, nil
	}
	for _, r := range s.state.reservations {
		if r.CustomerID == id {
			result = append(result, s.state.decorate(r))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].TravelDate.Equal(result[j].TravelDate) {
			return result[i].TravelDate.After(result[j].TravelDate)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (s *MemoryStore) DeleteWaitingEntriesBefore(_ context.Context, date time.Time) ([]domain.WaitingListEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := domain.DateOf(date)
	var removed []domain.WaitingListEntry
	kept := s.state.waiting[:0:0]
	for _, e := range s.state.waiting {
		if e.TravelDate.Before(cutoff) {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	s.state.waiting = kept
	return removed, nil
}

type memTx struct {
	state *memState
	now   func() time.Time
}

func (t *memTx) GetFlight(_ context.Context, flightCode int64) (*domain.Flight, error) {
	f, ok := t.state.flights[flightCode]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &f, nil
}

func (t *memTx) GetFlightSeatCapacity(_ context.Context, flightCode int64, class domain.SeatClass) (int, error) {
	f, ok := t.state.flights[flightCode]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return f.Capacity(class), nil
}

func (t *memTx) GetConfirmedSeatNumbers(_ context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time) ([]int, error) {
	return t.state.confirmedSeats(flightCode, class, domain.DateOf(travelDate)), nil
}

func (t *memTx) UpsertCustomerByPhone(_ context.Context, c domain.Customer) (int64, error) {
	if id, ok := t.state.phones[c.Phone]; ok {
		return id, nil
	}
	t.state.nextCustomer++
	c.ID = t.state.nextCustomer
	t.state.customers[c.ID] = c
	t.state.phones[c.Phone] = c.ID
	return c.ID, nil
}

func (t *memTx) GetCustomer(_ context.Context, customerID int64) (*domain.Customer, error) {
	c, ok := t.state.customers[customerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (t *memTx) PNRExists(_ context.Context, pnr string) (bool, error) {
	for _, r := range t.state.reservations {
		if r.PNR == pnr {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertReservation(_ context.Context, res *domain.Reservation) (int64, error) {
	travelDate := domain.DateOf(res.TravelDate)
	for _, r := range t.state.reservations {
		if r.PNR == res.PNR {
			return 0, fmt.Errorf("duplicate pnr %s: %w", res.PNR, domain.ErrConflict)
		}
		if r.Status == domain.ReservationStatusConfirmed && res.Status == domain.ReservationStatusConfirmed &&
			r.FlightCode == res.FlightCode && r.SeatClass == res.SeatClass &&
			r.SeatNumber == res.SeatNumber && r.TravelDate.Equal(travelDate) {
			return 0, fmt.Errorf("seat %d already confirmed: %w", res.SeatNumber, domain.ErrConflict)
		}
	}
	t.state.nextRes++
	res.ID = t.state.nextRes
	res.TravelDate = travelDate
	res.CreatedAt = t.now()
	t.state.reservations = append(t.state.reservations, *res)
	return res.ID, nil
}

func (t *memTx) UpdateReservationStatus(_ context.Context, reservationID int64, status domain.ReservationStatus) error {
	for i := range t.state.reservations {
		if t.state.reservations[i].ID != reservationID {
			continue
		}
		if t.state.reservations[i].Status == status {
			return fmt.Errorf("reservation %d already %s: %w", reservationID, status, domain.ErrConflict)
		}
		t.state.reservations[i].Status = status
		return nil
	}
	return domain.ErrNotFound
}

func (t *memTx) GetConfirmedReservationByPNR(_ context.Context, pnr string) (*domain.Reservation, error) {
	for _, r := range t.state.reservations {
		if r.PNR == pnr && r.Status == domain.ReservationStatusConfirmed {
			res := t.state.decorate(r)
			return &res, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *memTx) InsertCancellationRecord(_ context.Context, rec domain.CancellationRecord) error {
	for _, c := range t.state.cancellations {
		if c.ReservationID == rec.ReservationID {
			return fmt.Errorf("reservation %d already has a cancellation record: %w", rec.ReservationID, domain.ErrConflict)
		}
	}
	t.state.cancellations = append(t.state.cancellations, rec)
	return nil
}

func (t *memTx) GetNextWaitingNumber(_ context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time) (int, error) {
	highest := 0
	for _, e := range t.state.scopeEntries(flightCode, class, travelDate) {
		if e.WaitingNumber > highest {
			highest = e.WaitingNumber
		}
	}
	return highest + 1, nil
}

func (t *memTx) InsertWaitingListEntry(_ context.Context, e *domain.WaitingListEntry) error {
	for _, existing := range t.state.scopeEntries(e.FlightCode, e.SeatClass, e.TravelDate) {
		if existing.WaitingNumber == e.WaitingNumber {
			return fmt.Errorf("waiting number %d taken: %w", e.WaitingNumber, domain.ErrConflict)
		}
	}
	t.state.nextWait++
	e.ID = t.state.nextWait
	e.TravelDate = domain.DateOf(e.TravelDate)
	e.CreatedAt = t.now()
	t.state.waiting = append(t.state.waiting, *e)
	return nil
}

func (t *memTx) GetFrontOfWaitingList(_ context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time) (*domain.WaitingListEntry, error) {
	entries := t.state.scopeEntries(flightCode, class, travelDate)
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (t *memTx) RemoveWaitingListEntry(_ context.Context, entryID int64) error {
	for i, e := range t.state.waiting {
		if e.ID == entryID {
			t.state.waiting = append(t.state.waiting[:i], t.state.waiting[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memState) clone() *memState {
	c := *s
	c.flights = make(map[int64]domain.Flight, len(s.flights))
	for k, v := range s.flights {
		c.flights[k] = v
	}
	c.customers = make(map[int64]domain.Customer, len(s.customers))
	for k, v := range s.customers {
		c.customers[k] = v
	}
	c.phones = make(map[string]int64, len(s.phones))
	for k, v := range s.phones {
		c.phones[k] = v
	}
	c.reservations = append([]domain.Reservation(nil), s.reservations...)
	c.waiting = append([]domain.WaitingListEntry(nil), s.waiting...)
	c.cancellations = append([]domain.CancellationRecord(nil), s.cancellations...)
	return &c
}

func (s *memState) confirmedSeats(flightCode int64, class domain.SeatClass, travelDate time.Time) []int {
	seats := make([]int, 0)
	for _, r := range s.reservations {
		if r.FlightCode == flightCode && r.SeatClass == class && r.TravelDate.Equal(travelDate) &&
			r.Status == domain.ReservationStatusConfirmed {
			seats = append(seats, r.SeatNumber)
		}
	}
	sort.Ints(seats)
	return seats
}

func (s *memState) scopeEntries(flightCode int64, class domain.SeatClass, travelDate time.Time) []domain.WaitingListEntry {
	travelDate = domain.DateOf(travelDate)
	entries := make([]domain.WaitingListEntry, 0)
	for _, e := range s.waiting {
		if e.FlightCode == flightCode && e.SeatClass == class && e.TravelDate.Equal(travelDate) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].WaitingNumber < entries[j].WaitingNumber })
	return entries
}

func (s *memState) decorate(r domain.Reservation) domain.Reservation {
	r.CustomerName = s.customers[r.CustomerID].Name
	r.FlightName = s.flights[r.FlightCode].Name
	return r
}

var (
	_ ReservationStore = (*MemoryStore)(nil)
	_ ReservationTx    = (*memTx)(nil)
)
