package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airreservation/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

type PGReservationStore struct {
	db *pgxpool.Pool
}

func NewReservationStore(db *pgxpool.Pool) *PGReservationStore {
	return &PGReservationStore{db: db}
}

// ApplySchema creates the reservation tables when they do not exist yet.
func (r *PGReservationStore) ApplySchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return mapError("apply schema", err)
	}
	return nil
}

// CreateFlight stores a flight and fills in its generated code.
func (r *PGReservationStore) CreateFlight(ctx context.Context, f *domain.Flight) error {
	err := r.db.QueryRow(ctx, `INSERT INTO flights (flight_name, total_eco_seats, total_exe_seats, eco_fare, exe_fare, source_place, dest_place, depart_time, arrival_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING flight_code`,
		f.Name, f.EconomySeats, f.BusinessSeats, f.EconomyFare, f.BusinessFare, f.Source, f.Destination, nullTime(f.DepartureTime), nullTime(f.ArrivalTime)).
		Scan(&f.Code)
	return mapError("create flight", err)
}

// WithTx runs fn at READ COMMITTED. Callers take the flight row lock first;
// every later statement then sees what the previous lock holder committed.
// The partial unique indexes still turn a lost race into ErrConflict.
func (r *PGReservationStore) WithTx(ctx context.Context, fn func(tx ReservationTx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return mapError("commit", tx.Commit(ctx))
}

func (r *PGReservationStore) SearchFlights(ctx context.Context, filter FlightFilter) ([]domain.FlightAvailability, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+flightColumns+`, COALESCE(r.reserved, 0)
		FROM flights f
		LEFT JOIN (
			SELECT flight_code, COUNT(*) AS reserved
			FROM reservations
			WHERE travel_date = $1 AND seat_class = $2 AND status = 'Confirmed'
			GROUP BY flight_code
		) r ON r.flight_code = f.flight_code
		WHERE ($3::text = '' OR f.source_place = $3) AND ($4::text = '' OR f.dest_place = $4)
		ORDER BY f.flight_name, f.flight_code`,
		domain.DateOf(filter.TravelDate), filter.SeatClass, filter.Source, filter.Destination)
	if err != nil {
		return nil, mapError("search flights", err)
	}
	defer rows.Close()

	result := make([]domain.FlightAvailability, 0)
	for rows.Next() {
		var (
			f        domain.Flight
			reserved int
		)
		if err := scanFlight(rows, &f, &reserved); err != nil {
			return nil, mapError("scan flight", err)
		}
		total := f.Capacity(filter.SeatClass)
		result = append(result, domain.FlightAvailability{
			Flight:         f,
			SeatClass:      filter.SeatClass,
			TravelDate:     domain.DateOf(filter.TravelDate),
			TotalSeats:     total,
			AvailableSeats: total - reserved,
			BaseFare:       f.BaseFare(filter.SeatClass),
		})
	}
	return result, mapError("search flights", rows.Err())
}

func (r *PGReservationStore) GetFlight(ctx context.Context, flightCode int64) (*domain.Flight, error) {
	var f domain.Flight
	row := r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights f WHERE f.flight_code = $1`, flightCode)
	if err := scanFlight(row, &f); err != nil {
		return nil, mapError("get flight", err)
	}
	return &f, nil
}

func (r *PGReservationStore) GetReservationByPNR(ctx context.Context, pnr string) (*domain.Reservation, error) {
	row := r.db.QueryRow(ctx, reservationSelect+` WHERE r.pnr = $1`, pnr)
	var res domain.Reservation
	if err := scanReservation(row, &res); err != nil {
		return nil, mapError("get reservation", err)
	}
	return &res, nil
}

func (r *PGReservationStore) ListReservations(ctx context.Context, offset, limit int) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, reservationSelect+` ORDER BY r.reservation_id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, mapError("list reservations", err)
	}
	return collectReservations(rows)
}

func (r *PGReservationStore) ListReservationsByPhone(ctx context.Context, phone string) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, reservationSelect+` WHERE c.tel_no = $1 ORDER BY r.travel_date DESC, r.reservation_id DESC`, phone)
	if err != nil {
		return nil, mapError("list reservations by phone", err)
	}
	return collectReservations(rows)
}

func (r *PGReservationStore) DeleteWaitingEntriesBefore(ctx context.Context, date time.Time) ([]domain.WaitingListEntry, error) {
	rows, err := r.db.Query(ctx, `DELETE FROM waiting_list WHERE travel_date < $1 RETURNING `+waitingColumns, domain.DateOf(date))
	if err != nil {
		return nil, mapError("delete stale waiting entries", err)
	}
	defer rows.Close()

	var removed []domain.WaitingListEntry
	for rows.Next() {
		var e domain.WaitingListEntry
		if err := scanWaitingEntry(rows, &e); err != nil {
			return nil, mapError("scan waiting entry", err)
		}
		removed = append(removed, e)
	}
	return removed, mapError("delete stale waiting entries", rows.Err())
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetFlight(ctx context.Context, flightCode int64) (*domain.Flight, error) {
	var f domain.Flight
	row := t.tx.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights f WHERE f.flight_code = $1 FOR UPDATE`, flightCode)
	if err := scanFlight(row, &f); err != nil {
		return nil, mapError("lock flight", err)
	}
	return &f, nil
}

func (t *pgTx) GetFlightSeatCapacity(ctx context.Context, flightCode int64, class domain.SeatClass) (int, error) {
	var total int
	err := t.tx.QueryRow(ctx, `SELECT CASE WHEN $1 = 'Business' THEN total_exe_seats ELSE total_eco_seats END
		FROM flights WHERE flight_code = $2`, string(class), flightCode).Scan(&total)
	if err != nil {
		return 0, mapError("get seat capacity", err)
	}
	return total, nil
}

func (t *pgTx) GetConfirmedSeatNumbers(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time) ([]int, error) {
	rows, err := t.tx.Query(ctx, `SELECT seat_number FROM reservations
		WHERE flight_code = $1 AND seat_class = $2 AND travel_date = $3 AND status = 'Confirmed'
		ORDER BY seat_number`, flightCode, class, domain.DateOf(travelDate))
	if err != nil {
		return nil, mapError("get confirmed seats", err)
	}
	seats, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, mapError("get confirmed seats", err)
	}
	return seats, nil
}

func (t *pgTx) UpsertCustomerByPhone(ctx context.Context, c domain.Customer) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO customer_details (cust_name, father_name, gender, dob, address, tel_no, profession, concession)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tel_no) DO UPDATE SET tel_no = EXCLUDED.tel_no
		RETURNING cust_id`,
		c.Name, c.FatherName, c.Gender, nullDate(c.DateOfBirth), c.Address, c.Phone, c.Profession, c.Concession).Scan(&id)
	if err != nil {
		return 0, mapError("upsert customer", err)
	}
	return id, nil
}

func (t *pgTx) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	var (
		c   domain.Customer
		dob *time.Time
	)
	err := t.tx.QueryRow(ctx, `SELECT cust_id, cust_name, father_name, gender, dob, address, tel_no, profession, concession
		FROM customer_details WHERE cust_id = $1`, customerID).
		Scan(&c.ID, &c.Name, &c.FatherName, &c.Gender, &dob, &c.Address, &c.Phone, &c.Profession, &c.Concession)
	if err != nil {
		return nil, mapError("get customer", err)
	}
	if dob != nil {
		c.DateOfBirth = *dob
	}
	return &c, nil
}

func (t *pgTx) PNRExists(ctx context.Context, pnr string) (bool, error) {
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE pnr = $1)`, pnr).Scan(&exists); err != nil {
		return false, mapError("check pnr", err)
	}
	return exists, nil
}

func (t *pgTx) InsertReservation(ctx context.Context, res *domain.Reservation) (int64, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO reservations (cust_id, flight_code, seat_class, seat_number, status, fare, travel_date, pnr)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING reservation_id, created_at`,
		res.CustomerID, res.FlightCode, res.SeatClass, res.SeatNumber, res.Status, res.Fare, domain.DateOf(res.TravelDate), res.PNR).
		Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return 0, mapError("insert reservation", err)
	}
	return res.ID, nil
}

func (t *pgTx) UpdateReservationStatus(ctx context.Context, reservationID int64, status domain.ReservationStatus) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE reservations SET status = $1 WHERE reservation_id = $2 AND status <> $1`, status, reservationID)
	if err != nil {
		return mapError("update reservation status", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("reservation %d already %s: %w", reservationID, status, domain.ErrConflict)
	}
	return nil
}

func (t *pgTx) GetConfirmedReservationByPNR(ctx context.Context, pnr string) (*domain.Reservation, error) {
	row := t.tx.QueryRow(ctx, reservationSelect+` WHERE r.pnr = $1 AND r.status = 'Confirmed' FOR UPDATE OF r`, pnr)
	var res domain.Reservation
	if err := scanReservation(row, &res); err != nil {
		return nil, mapError("get confirmed reservation", err)
	}
	return &res, nil
}

func (t *pgTx) InsertCancellationRecord(ctx context.Context, rec domain.CancellationRecord) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO cancellations (reservation_id, cancel_date, refund_amount, cancellation_fee)
		VALUES ($1, $2, $3, $4)`, rec.ReservationID, rec.CancelledAt, rec.RefundAmount, rec.CancellationFee)
	return mapError("insert cancellation", err)
}

func (t *pgTx) GetNextWaitingNumber(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time) (int, error) {
	var next int
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(waiting_no), 0) + 1 FROM waiting_list
		WHERE flight_code = $1 AND seat_class = $2 AND travel_date = $3`, flightCode, class, domain.DateOf(travelDate)).Scan(&next)
	if err != nil {
		return 0, mapError("next waiting number", err)
	}
	return next, nil
}

func (t *pgTx) InsertWaitingListEntry(ctx context.Context, e *domain.WaitingListEntry) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO waiting_list (flight_code, cust_id, seat_class, waiting_no, travel_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING wait_id, created_at`, e.FlightCode, e.CustomerID, e.SeatClass, e.WaitingNumber, domain.DateOf(e.TravelDate)).
		Scan(&e.ID, &e.CreatedAt)
	return mapError("insert waiting entry", err)
}

func (t *pgTx) GetFrontOfWaitingList(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time) (*domain.WaitingListEntry, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+waitingColumns+` FROM waiting_list
		WHERE flight_code = $1 AND seat_class = $2 AND travel_date = $3
		ORDER BY waiting_no
		LIMIT 1
		FOR UPDATE`, flightCode, class, domain.DateOf(travelDate))
	var e domain.WaitingListEntry
	if err := scanWaitingEntry(row, &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError("front of waiting list", err)
	}
	return &e, nil
}

func (t *pgTx) RemoveWaitingListEntry(ctx context.Context, entryID int64) error {
	cmd, err := t.tx.Exec(ctx, `DELETE FROM waiting_list WHERE wait_id = $1`, entryID)
	if err != nil {
		return mapError("remove waiting entry", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const (
	flightColumns = `f.flight_code, f.flight_name, f.total_eco_seats, f.total_exe_seats, f.eco_fare, f.exe_fare,
		f.source_place, f.dest_place, f.depart_time, f.arrival_time`

	waitingColumns = `wait_id, cust_id, flight_code, seat_class, waiting_no, travel_date, created_at`

	reservationSelect = `SELECT r.reservation_id, r.pnr, r.cust_id, c.cust_name, r.flight_code, f.flight_name,
		r.seat_class, r.seat_number, r.status, r.fare, r.travel_date, r.created_at
		FROM reservations r
		JOIN flights f ON r.flight_code = f.flight_code
		JOIN customer_details c ON r.cust_id = c.cust_id`
)

func scanFlight(row pgx.Row, f *domain.Flight, extra ...any) error {
	var depart, arrive *time.Time
	dest := append([]any{&f.Code, &f.Name, &f.EconomySeats, &f.BusinessSeats, &f.EconomyFare, &f.BusinessFare,
		&f.Source, &f.Destination, &depart, &arrive}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	if depart != nil {
		f.DepartureTime = *depart
	}
	if arrive != nil {
		f.ArrivalTime = *arrive
	}
	return nil
}

func scanReservation(row pgx.Row, r *domain.Reservation) error {
	return row.Scan(&r.ID, &r.PNR, &r.CustomerID, &r.CustomerName, &r.FlightCode, &r.FlightName,
		&r.SeatClass, &r.SeatNumber, &r.Status, &r.Fare, &r.TravelDate, &r.CreatedAt)
}

func scanWaitingEntry(row pgx.Row, e *domain.WaitingListEntry) error {
	return row.Scan(&e.ID, &e.CustomerID, &e.FlightCode, &e.SeatClass, &e.WaitingNumber, &e.TravelDate, &e.CreatedAt)
}

func collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	defer rows.Close()

	result := make([]domain.Reservation, 0)
	for rows.Next() {
		var res domain.Reservation
		if err := scanReservation(rows, &res); err != nil {
			return nil, mapError("scan reservation", err)
		}
		result = append(result, res)
	}
	return result, mapError("list reservations", rows.Err())
}

// mapError translates driver errors into the domain taxonomy: missing rows
// become ErrNotFound, serialization failures, deadlocks and unique
// violations become ErrConflict, anything else a StorageError.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505", "55P03":
			return fmt.Errorf("%s: %s: %w", op, pgErr.Code, domain.ErrConflict)
		}
	}
	return &domain.StorageError{Op: op, Err: err}
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := domain.DateOf(t)
	return &d
}

var (
	_ ReservationStore = (*PGReservationStore)(nil)
	_ ReservationTx    = (*pgTx)(nil)
)
