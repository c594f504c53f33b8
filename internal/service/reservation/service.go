package reservation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/Domenick1991/airreservation/internal/cancellation"
	"github.com/Domenick1991/airreservation/internal/domain"
	"github.com/Domenick1991/airreservation/internal/fare"
	"github.com/Domenick1991/airreservation/internal/kafka"
	"github.com/Domenick1991/airreservation/internal/logging"
	"github.com/Domenick1991/airreservation/internal/metrics"
	"github.com/Domenick1991/airreservation/internal/repository"
	"github.com/Domenick1991/airreservation/internal/seat"
	"github.com/Domenick1991/airreservation/internal/waitlist"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

const (
	opMakeReservation   = "make_reservation"
	opCancelReservation = "cancel_reservation"

	maxPNRAttempts = 10
)

var errScopeLocked = fmt.Errorf("scope is locked by another booking: %w", domain.ErrConflict)

type UseCase interface {
	MakeReservation(ctx context.Context, input MakeReservationInput) (*domain.ReservationResult, error)
	CancelReservation(ctx context.Context, pnr string) (*domain.CancellationResult, error)
	SearchAvailableFlights(ctx context.Context, input SearchInput) ([]domain.FlightAvailability, error)
	GetReservation(ctx context.Context, pnr string) (*domain.Reservation, error)
	ListReservations(ctx context.Context, offset, limit int) ([]domain.Reservation, error)
	CustomerReservations(ctx context.Context, phone string) ([]domain.Reservation, error)
	QuoteFare(ctx context.Context, flightCode int64, seatClass, concession string) (fare.Quote, error)
	PreviewRefund(ctx context.Context, pnr string) (*cancellation.Refund, error)
	ExpireWaitingList(ctx context.Context) ([]domain.WaitingListEntry, error)
}

type Cache interface {
	AcquireScopeLock(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time, ttl time.Duration) (string, bool, error)
	ReleaseScopeLock(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time, token string) error
	GetFlights(ctx context.Context, travelDate time.Time, class domain.SeatClass) ([]domain.FlightAvailability, error)
	// FlightsGeneration counts the invalidations of travelDate. SetFlights
	// must skip the write once it moved past the given generation.
	FlightsGeneration(ctx context.Context, travelDate time.Time) (int64, error)
	SetFlights(ctx context.Context, travelDate time.Time, class domain.SeatClass, generation int64, flights []domain.FlightAvailability) error
	InvalidateFlights(ctx context.Context, travelDate time.Time) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Service struct {
	store    repository.ReservationStore
	cache    Cache
	lockTTL  time.Duration
	producer Producer
	// eventsTopic receives every event; notificationsTopic, when set, gets a
	// copy for the notification worker.
	eventsTopic        string
	notificationsTopic string
	publishTimeout     time.Duration
	metrics            *metrics.Reservations
	logger             logrus.FieldLogger
	now                func() time.Time
	newPNR             func() string
	maxRetries         int
	retryDelay         time.Duration
	defaultFares       map[domain.SeatClass]float64
	recomputePromotion bool
}

type Option func(*Service)

// WithCache enables the search cache and the per-scope booking lock.
func WithCache(cache Cache, lockTTL time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.lockTTL = lockTTL
	}
}

func WithProducer(producer Producer, eventsTopic string) Option {
	return func(s *Service) {
		s.producer = producer
		s.eventsTopic = eventsTopic
	}
}

func WithNotificationsTopic(topic string) Option {
	return func(s *Service) {
		s.notificationsTopic = topic
	}
}

// WithPublishTimeout caps the time one operation spends publishing its
// events after the change has committed.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Reservations) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithPNRGenerator(gen func() string) Option {
	return func(s *Service) {
		s.newPNR = gen
	}
}

// WithMaxConflictRetries bounds how often a transaction that lost a race is
// run again. Zero disables retrying.
func WithMaxConflictRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithRetryDelay sets the base of the linear backoff between retries.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) {
		s.retryDelay = d
	}
}

// WithDefaultFares sets the base fares used for flights without a positive
// stored fare.
func WithDefaultFares(economy, business float64) Option {
	return func(s *Service) {
		s.defaultFares = map[domain.SeatClass]float64{
			domain.SeatClassEconomy:  economy,
			domain.SeatClassBusiness: business,
		}
	}
}

// WithPromotionFareRecompute charges a promoted waiting customer their own
// concession fare instead of the fare of the cancelled booking.
func WithPromotionFareRecompute(enabled bool) Option {
	return func(s *Service) {
		s.recomputePromotion = enabled
	}
}

func NewReservationService(store repository.ReservationStore, opts ...Option) *Service {
	s := &Service{
		store:          store,
		lockTTL:        10 * time.Second,
		publishTimeout: 2 * time.Second,
		logger:         logging.Discard(),
		now:            time.Now,
		newPNR:         RandomPNR,
		maxRetries:     3,
		retryDelay:     50 * time.Millisecond,
		defaultFares: map[domain.SeatClass]float64{
			domain.SeatClassEconomy:  850,
			domain.SeatClassBusiness: 2040,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RandomPNR returns "PNR" followed by six random digits.
func RandomPNR() string {
	return fmt.Sprintf("PNR%06d", rand.IntN(1_000_000))
}

func (s *Service) MakeReservation(ctx context.Context, input MakeReservationInput) (*domain.ReservationResult, error) {
	req, err := s.validateReservation(input)
	if err != nil {
		return nil, err
	}
	concession, known := fare.ParseConcession(req.customer.Concession)
	if !known && strings.TrimSpace(req.customer.Concession) != "" {
		s.logger.WithField("concession", req.customer.Concession).Warn("unknown concession, charging full fare")
	}
	req.customer.Concession = string(concession)

	started := time.Now()
	defer func() { s.metrics.ObserveDuration(opMakeReservation, time.Since(started).Seconds()) }()

	var (
		result *domain.ReservationResult
		flight *domain.Flight
	)
	err = s.withRetry(ctx, opMakeReservation, func() error {
		return s.withScopeLock(ctx, req.scope, func() error {
			return s.store.WithTx(ctx, func(tx repository.ReservationTx) error {
				var err error
				flight, err = tx.GetFlight(ctx, req.scope.FlightCode)
				if err != nil {
					return fmt.Errorf("flight %d: %w", req.scope.FlightCode, err)
				}
				result, err = s.reserve(ctx, tx, req, flight, concession)
				return err
			})
		})
	})
	if err != nil {
		s.metrics.Booked(metrics.OutcomeFailed, string(req.scope.SeatClass))
		s.logger.WithError(err).WithFields(logrus.Fields{
			"flight_code": req.scope.FlightCode,
			"class":       req.scope.SeatClass,
			"travel_date": req.scope.TravelDate.Format(time.DateOnly),
		}).Error("make reservation failed")
		return nil, err
	}

	s.invalidateSearch(ctx, req.scope.TravelDate)

	event := s.newEvent(kafka.EventReservationConfirmed)
	outcome := metrics.OutcomeConfirmed
	if !result.Confirmed {
		event.Type = kafka.EventReservationWaitlisted
		outcome = metrics.OutcomeWaitlisted
	}
	s.metrics.Booked(outcome, string(req.scope.SeatClass))
	event.PNR = result.PNR
	event.CustomerID = result.CustomerID
	event.CustomerName = req.customer.Name
	event.Phone = req.customer.Phone
	event.FlightCode = flight.Code
	event.SeatClass = string(req.scope.SeatClass)
	event.SeatNumber = result.SeatNumber
	event.WaitingNumber = result.WaitingNumber
	event.TravelDate = req.scope.TravelDate
	event.Fare = result.Fare
	s.publish(ctx, event)

	s.logger.WithFields(logrus.Fields{
		"customer_id":    result.CustomerID,
		"flight_code":    flight.Code,
		"class":          req.scope.SeatClass,
		"travel_date":    req.scope.TravelDate.Format(time.DateOnly),
		"pnr":            result.PNR,
		"seat":           result.SeatNumber,
		"waiting_number": result.WaitingNumber,
	}).Info("reservation " + outcome)
	return result, nil
}

func (s *Service) reserve(ctx context.Context, tx repository.ReservationTx, req reservationRequest, flight *domain.Flight, concession fare.Concession) (*domain.ReservationResult, error) {
	customerID, err := tx.UpsertCustomerByPhone(ctx, req.customer)
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}

	capacity, err := tx.GetFlightSeatCapacity(ctx, flight.Code, req.scope.SeatClass)
	if err != nil {
		return nil, fmt.Errorf("seat capacity: %w", err)
	}
	taken, err := tx.GetConfirmedSeatNumbers(ctx, flight.Code, req.scope.SeatClass, req.scope.TravelDate)
	if err != nil {
		return nil, fmt.Errorf("confirmed seats: %w", err)
	}

	seatNumber, ok := seat.Assign(capacity, seat.Taken(taken), req.preference)
	if !ok {
		entry, err := waitlist.New(tx).Enqueue(ctx, req.scope, customerID)
		if err != nil {
			return nil, err
		}
		return &domain.ReservationResult{
			Confirmed:     false,
			CustomerID:    customerID,
			WaitingNumber: entry.WaitingNumber,
		}, nil
	}

	quote := fare.Compute(s.baseFare(*flight, req.scope.SeatClass), concession)
	pnr, err := s.uniquePNR(ctx, tx)
	if err != nil {
		return nil, err
	}
	reservation := &domain.Reservation{
		PNR:        pnr,
		CustomerID: customerID,
		FlightCode: flight.Code,
		SeatClass:  req.scope.SeatClass,
		SeatNumber: seatNumber,
		Status:     domain.ReservationStatusConfirmed,
		Fare:       quote.FinalFare,
		TravelDate: req.scope.TravelDate,
	}
	if _, err := tx.InsertReservation(ctx, reservation); err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}

	return &domain.ReservationResult{
		Confirmed:  true,
		CustomerID: customerID,
		PNR:        pnr,
		SeatNumber: seatNumber,
		Fare:       quote.FinalFare,
		Discount:   quote.Discount,
	}, nil
}

func (s *Service) CancelReservation(ctx context.Context, pnr string) (*domain.CancellationResult, error) {
	pnr, err := normalizePNR(pnr)
	if err != nil {
		return nil, err
	}

	// The scope is needed for the lock before the transaction starts; the
	// transaction re-reads the reservation and only trusts that copy.
	current, err := s.store.GetReservationByPNR(ctx, pnr)
	if err != nil {
		return nil, fmt.Errorf("reservation %s: %w", pnr, err)
	}
	if current.Status != domain.ReservationStatusConfirmed {
		return nil, fmt.Errorf("reservation %s is %s: %w", pnr, strings.ToLower(string(current.Status)), domain.ErrNotFound)
	}
	scope := waitlist.Scope{FlightCode: current.FlightCode, SeatClass: current.SeatClass, TravelDate: current.TravelDate}

	started := time.Now()
	defer func() { s.metrics.ObserveDuration(opCancelReservation, time.Since(started).Seconds()) }()

	var (
		result    *domain.CancellationResult
		cancelled *domain.Reservation
	)
	err = s.withRetry(ctx, opCancelReservation, func() error {
		return s.withScopeLock(ctx, scope, func() error {
			return s.store.WithTx(ctx, func(tx repository.ReservationTx) error {
				// Same row lock as booking, so seat and queue reads below see
				// every booking of the flight committed before this one.
				if _, err := tx.GetFlight(ctx, scope.FlightCode); err != nil {
					return fmt.Errorf("flight %d: %w", scope.FlightCode, err)
				}
				var err error
				cancelled, err = tx.GetConfirmedReservationByPNR(ctx, pnr)
				if err != nil {
					return fmt.Errorf("reservation %s: %w", pnr, err)
				}
				result, err = s.cancel(ctx, tx, cancelled)
				return err
			})
		})
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WithError(err).WithField("pnr", pnr).Error("cancel reservation failed")
		}
		return nil, err
	}

	s.invalidateSearch(ctx, scope.TravelDate)
	s.metrics.Cancelled(string(scope.SeatClass), result.RefundAmount)

	event := s.newEvent(kafka.EventReservationCancelled)
	event.PNR = pnr
	event.CustomerID = cancelled.CustomerID
	event.CustomerName = cancelled.CustomerName
	event.FlightCode = cancelled.FlightCode
	event.SeatClass = string(cancelled.SeatClass)
	event.SeatNumber = cancelled.SeatNumber
	event.TravelDate = cancelled.TravelDate
	event.Fare = cancelled.Fare
	event.RefundAmount = result.RefundAmount
	event.CancellationFee = result.CancellationFee
	s.publish(ctx, event)

	fields := logrus.Fields{
		"pnr":    pnr,
		"refund": fare.Round2(result.RefundAmount),
		"fee":    fare.Round2(result.CancellationFee),
	}
	if p := result.Promoted; p != nil {
		s.metrics.Promoted(string(scope.SeatClass))
		promoted := s.newEvent(kafka.EventWaitlistPromoted)
		promoted.PNR = p.PNR
		promoted.CustomerID = p.CustomerID
		promoted.FlightCode = cancelled.FlightCode
		promoted.SeatClass = string(cancelled.SeatClass)
		promoted.SeatNumber = p.SeatNumber
		promoted.WaitingNumber = p.WaitingNumber
		promoted.TravelDate = cancelled.TravelDate
		promoted.Fare = p.Fare
		s.publish(ctx, promoted)
		fields["promoted_pnr"] = p.PNR
	}
	s.logger.WithFields(fields).Info("reservation cancelled")
	return result, nil
}

func (s *Service) cancel(ctx context.Context, tx repository.ReservationTx, res *domain.Reservation) (*domain.CancellationResult, error) {
	now := s.now()
	refund := cancellation.ComputeRefund(res.Fare, res.TravelDate, now, res.Status)

	if err := tx.UpdateReservationStatus(ctx, res.ID, domain.ReservationStatusCancelled); err != nil {
		return nil, fmt.Errorf("cancel reservation %s: %w", res.PNR, err)
	}
	err := tx.InsertCancellationRecord(ctx, domain.CancellationRecord{
		ReservationID:   res.ID,
		CancelledAt:     now,
		RefundAmount:    refund.RefundAmount,
		CancellationFee: refund.CancellationFee,
	})
	if err != nil {
		return nil, fmt.Errorf("record cancellation %s: %w", res.PNR, err)
	}

	promoted, err := s.promote(ctx, tx, res)
	if err != nil {
		return nil, err
	}

	return &domain.CancellationResult{
		Success:         true,
		PNR:             res.PNR,
		RefundAmount:    refund.RefundAmount,
		CancellationFee: refund.CancellationFee,
		Promoted:        promoted,
	}, nil
}

// promote moves the front of the waiting list of res's scope into the seat
// pool freed by res. It returns nil when nobody is waiting.
func (s *Service) promote(ctx context.Context, tx repository.ReservationTx, res *domain.Reservation) (*domain.Promotion, error) {
	scope := waitlist.Scope{FlightCode: res.FlightCode, SeatClass: res.SeatClass, TravelDate: res.TravelDate}
	queue := waitlist.New(tx)

	front, err := queue.DequeueFront(ctx, scope)
	if err != nil || front == nil {
		return nil, err
	}

	capacity, err := tx.GetFlightSeatCapacity(ctx, res.FlightCode, res.SeatClass)
	if err != nil {
		return nil, fmt.Errorf("seat capacity: %w", err)
	}
	taken, err := tx.GetConfirmedSeatNumbers(ctx, res.FlightCode, res.SeatClass, res.TravelDate)
	if err != nil {
		return nil, fmt.Errorf("confirmed seats: %w", err)
	}
	seatNumber, ok := seat.Assign(capacity, seat.Taken(taken), seat.PreferenceAny)
	if !ok {
		// Only reachable when capacity shrank below the confirmed count.
		s.logger.WithField("scope", scope.String()).Warn("no seat free after cancellation, waiting list left as is")
		return nil, nil
	}

	charged := res.Fare
	if s.recomputePromotion {
		charged, err = s.promotionFare(ctx, tx, res, front.CustomerID)
		if err != nil {
			return nil, err
		}
	}

	pnr, err := s.uniquePNR(ctx, tx)
	if err != nil {
		return nil, err
	}
	_, err = tx.InsertReservation(ctx, &domain.Reservation{
		PNR:        pnr,
		CustomerID: front.CustomerID,
		FlightCode: res.FlightCode,
		SeatClass:  res.SeatClass,
		SeatNumber: seatNumber,
		Status:     domain.ReservationStatusConfirmed,
		Fare:       charged,
		TravelDate: res.TravelDate,
	})
	if err != nil {
		return nil, fmt.Errorf("insert promoted reservation: %w", err)
	}
	if err := queue.Remove(ctx, front.ID); err != nil {
		return nil, err
	}

	return &domain.Promotion{
		CustomerID:    front.CustomerID,
		WaitingNumber: front.WaitingNumber,
		PNR:           pnr,
		SeatNumber:    seatNumber,
		Fare:          charged,
	}, nil
}

func (s *Service) promotionFare(ctx context.Context, tx repository.ReservationTx, res *domain.Reservation, customerID int64) (float64, error) {
	customer, err := tx.GetCustomer(ctx, customerID)
	if err != nil {
		return 0, fmt.Errorf("waiting customer %d: %w", customerID, err)
	}
	flight, err := tx.GetFlight(ctx, res.FlightCode)
	if err != nil {
		return 0, fmt.Errorf("flight %d: %w", res.FlightCode, err)
	}
	concession, _ := fare.ParseConcession(customer.Concession)
	return fare.Compute(s.baseFare(*flight, res.SeatClass), concession).FinalFare, nil
}

func (s *Service) SearchAvailableFlights(ctx context.Context, input SearchInput) ([]domain.FlightAvailability, error) {
	travelDate, class, err := s.validateSearch(input)
	if err != nil {
		return nil, err
	}

	flights, err := s.cachedAvailability(ctx, travelDate, class)
	if err != nil {
		return nil, err
	}

	route := strings.TrimSpace(input.Route)
	anyRoute := route == "" || strings.EqualFold(route, AnyRoute)
	return lo.Filter(flights, func(f domain.FlightAvailability, _ int) bool {
		return f.AvailableSeats > 0 && (anyRoute || f.Flight.Route() == route)
	}), nil
}

func (s *Service) cachedAvailability(ctx context.Context, travelDate time.Time, class domain.SeatClass) ([]domain.FlightAvailability, error) {
	var (
		generation int64
		cacheable  bool
	)
	if s.cache != nil {
		cached, err := s.cache.GetFlights(ctx, travelDate, class)
		if err != nil {
			s.logger.WithError(err).Warn("flights cache read failed")
		} else if cached != nil {
			return cached, nil
		}

		// Read before the store so a booking committed meanwhile makes the
		// write below a no-op.
		generation, err = s.cache.FlightsGeneration(ctx, travelDate)
		if err != nil {
			s.logger.WithError(err).Warn("flights cache generation read failed")
		} else {
			cacheable = true
		}
	}

	flights, err := s.store.SearchFlights(ctx, repository.FlightFilter{TravelDate: travelDate, SeatClass: class})
	if err != nil {
		return nil, fmt.Errorf("search flights: %w", err)
	}
	flights = lo.Map(flights, func(f domain.FlightAvailability, _ int) domain.FlightAvailability {
		f.BaseFare = s.baseFare(f.Flight, class)
		return f
	})

	if cacheable {
		if err := s.cache.SetFlights(ctx, travelDate, class, generation, flights); err != nil {
			s.logger.WithError(err).Warn("flights cache write failed")
		}
	}
	return flights, nil
}

func (s *Service) GetReservation(ctx context.Context, pnr string) (*domain.Reservation, error) {
	pnr, err := normalizePNR(pnr)
	if err != nil {
		return nil, err
	}
	res, err := s.store.GetReservationByPNR(ctx, pnr)
	if err != nil {
		return nil, fmt.Errorf("reservation %s: %w", pnr, err)
	}
	return res, nil
}

func (s *Service) ListReservations(ctx context.Context, offset, limit int) ([]domain.Reservation, error) {
	if offset < 0 {
		return nil, domain.NewValidationError("offset", "must not be negative")
	}
	if limit <= 0 || limit > MaxPageSize {
		return nil, domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", MaxPageSize))
	}
	return s.store.ListReservations(ctx, offset, limit)
}

func (s *Service) CustomerReservations(ctx context.Context, phone string) ([]domain.Reservation, error) {
	normalized, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}
	return s.store.ListReservationsByPhone(ctx, normalized)
}

func (s *Service) QuoteFare(ctx context.Context, flightCode int64, seatClass, concession string) (fare.Quote, error) {
	if flightCode <= 0 {
		return fare.Quote{}, domain.NewValidationError("flight_code", "must be positive")
	}
	class, ok := domain.ParseSeatClass(seatClass)
	if !ok {
		return fare.Quote{}, domain.NewValidationError("seat_class", fmt.Sprintf("unknown class %q", seatClass))
	}
	flight, err := s.store.GetFlight(ctx, flightCode)
	if err != nil {
		return fare.Quote{}, fmt.Errorf("flight %d: %w", flightCode, err)
	}
	c, _ := fare.ParseConcession(concession)
	return fare.Compute(s.baseFare(*flight, class), c), nil
}

func (s *Service) PreviewRefund(ctx context.Context, pnr string) (*cancellation.Refund, error) {
	res, err := s.GetReservation(ctx, pnr)
	if err != nil {
		return nil, err
	}
	refund := cancellation.ComputeRefund(res.Fare, res.TravelDate, s.now(), res.Status)
	return &refund, nil
}

// ExpireWaitingList drops waiting entries whose travel date has passed. They
// can no longer be promoted.
func (s *Service) ExpireWaitingList(ctx context.Context) ([]domain.WaitingListEntry, error) {
	expired, err := s.store.DeleteWaitingEntriesBefore(ctx, domain.DateOf(s.now()))
	if err != nil {
		return nil, fmt.Errorf("expire waiting list: %w", err)
	}
	s.metrics.Expired(len(expired))
	for _, e := range expired {
		event := s.newEvent(kafka.EventWaitlistExpired)
		event.CustomerID = e.CustomerID
		event.FlightCode = e.FlightCode
		event.SeatClass = string(e.SeatClass)
		event.WaitingNumber = e.WaitingNumber
		event.TravelDate = e.TravelDate
		s.publish(ctx, event)
	}
	return expired, nil
}

func (s *Service) baseFare(f domain.Flight, class domain.SeatClass) float64 {
	if stored := f.BaseFare(class); stored > 0 {
		return stored
	}
	return s.defaultFares[class]
}

func (s *Service) uniquePNR(ctx context.Context, tx repository.ReservationTx) (string, error) {
	for i := 0; i < maxPNRAttempts; i++ {
		pnr := s.newPNR()
		exists, err := tx.PNRExists(ctx, pnr)
		if err != nil {
			return "", fmt.Errorf("check pnr: %w", err)
		}
		if !exists {
			return pnr, nil
		}
	}
	return "", fmt.Errorf("no free pnr after %d attempts: %w", maxPNRAttempts, domain.ErrConflict)
}

// withRetry runs fn again while it fails with domain.ErrConflict, at most
// maxRetries more times, sleeping retryDelay*attempt in between.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, domain.ErrConflict) || attempt >= s.maxRetries {
			return err
		}

		s.metrics.ConflictRetry(op)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"operation": op,
			"attempt":   attempt + 1,
		}).Debug("conflict, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * s.retryDelay):
		}
	}
}

func (s *Service) withScopeLock(ctx context.Context, scope waitlist.Scope, fn func() error) error {
	if s.cache == nil {
		return fn()
	}

	token, ok, err := s.cache.AcquireScopeLock(ctx, scope.FlightCode, scope.SeatClass, scope.TravelDate, s.lockTTL)
	if err != nil {
		// The database transaction still serializes the scope.
		s.logger.WithError(err).WithField("scope", scope.String()).Warn("scope lock unavailable")
		return fn()
	}
	if !ok {
		return errScopeLocked
	}
	defer func() {
		if err := s.cache.ReleaseScopeLock(context.WithoutCancel(ctx), scope.FlightCode, scope.SeatClass, scope.TravelDate, token); err != nil {
			s.logger.WithError(err).WithField("scope", scope.String()).Warn("scope lock release failed")
		}
	}()
	return fn()
}

func (s *Service) invalidateSearch(ctx context.Context, travelDate time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx, travelDate); err != nil {
		s.logger.WithError(err).Warn("flights cache invalidation failed")
	}
}

func (s *Service) newEvent(eventType string) kafka.ReservationEvent {
	return kafka.NewReservationEvent(eventType, s.now())
}

// publish never fails the caller: the change is already committed.
func (s *Service) publish(ctx context.Context, event kafka.ReservationEvent) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	// Outlives a cancelled request, bounded by publishTimeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.producer.Publish(ctx, s.eventsTopic, event.Key(), event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"event": event.Type, "pnr": event.PNR}).Warn("failed to publish event")
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, event.Key(), event); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{"event": event.Type, "pnr": event.PNR}).Warn("failed to publish notification")
		}
	}
}

var _ UseCase = (*Service)(nil)
