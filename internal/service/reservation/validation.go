package reservation

import (
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/airreservation/internal/domain"
	"github.com/Domenick1991/airreservation/internal/seat"
	"github.com/Domenick1991/airreservation/internal/waitlist"
)

const (
	// AnyRoute disables the route filter of a search.
	AnyRoute    = "Any Route"
	MaxPageSize = 100

	minPhoneDigits   = 7
	maxPhoneDigits   = 15
	minPassengerAge  = 12
	maxCustomerField = 100
)

type MakeReservationInput struct {
	Name        string
	FatherName  string
	Gender      string
	DateOfBirth time.Time
	Address     string
	Phone       string
	Profession  string
	Concession  string

	FlightCode     int64
	SeatClass      string
	SeatPreference string
	TravelDate     time.Time
}

type SearchInput struct {
	TravelDate time.Time
	SeatClass  string
	// Route is "source → destination"; empty or AnyRoute matches every flight.
	Route string
}

type reservationRequest struct {
	customer   domain.Customer
	scope      waitlist.Scope
	preference seat.Preference
}

func (s *Service) validateReservation(in MakeReservationInput) (reservationRequest, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return reservationRequest{}, domain.NewValidationError("name", "is required")
	}
	if len(name) > maxCustomerField {
		return reservationRequest{}, domain.NewValidationError("name", fmt.Sprintf("must be at most %d characters", maxCustomerField))
	}
	phone, err := normalizePhone(in.Phone)
	if err != nil {
		return reservationRequest{}, err
	}
	if in.FlightCode <= 0 {
		return reservationRequest{}, domain.NewValidationError("flight_code", "must be positive")
	}
	class, ok := domain.ParseSeatClass(in.SeatClass)
	if !ok {
		return reservationRequest{}, domain.NewValidationError("seat_class", fmt.Sprintf("unknown class %q", in.SeatClass))
	}

	today := domain.DateOf(s.now())
	if in.TravelDate.IsZero() {
		return reservationRequest{}, domain.NewValidationError("travel_date", "is required")
	}
	travelDate := domain.DateOf(in.TravelDate)
	if travelDate.Before(today) {
		return reservationRequest{}, domain.NewValidationError("travel_date", "must not be in the past")
	}

	if !in.DateOfBirth.IsZero() {
		dob := domain.DateOf(in.DateOfBirth)
		if dob.After(today) {
			return reservationRequest{}, domain.NewValidationError("date_of_birth", "must not be in the future")
		}
		if ageOn(dob, today) < minPassengerAge {
			return reservationRequest{}, domain.NewValidationError("date_of_birth", fmt.Sprintf("customer must be at least %d years old", minPassengerAge))
		}
	}

	return reservationRequest{
		customer: domain.Customer{
			Name:        name,
			FatherName:  strings.TrimSpace(in.FatherName),
			Gender:      strings.TrimSpace(in.Gender),
			DateOfBirth: in.DateOfBirth,
			Address:     strings.TrimSpace(in.Address),
			Phone:       phone,
			Profession:  strings.TrimSpace(in.Profession),
			Concession:  in.Concession,
		},
		scope: waitlist.Scope{
			FlightCode: in.FlightCode,
			SeatClass:  class,
			TravelDate: travelDate,
		},
		preference: seat.ParsePreference(in.SeatPreference),
	}, nil
}

func (s *Service) validateSearch(in SearchInput) (time.Time, domain.SeatClass, error) {
	if in.TravelDate.IsZero() {
		return time.Time{}, "", domain.NewValidationError("travel_date", "is required")
	}
	class, ok := domain.ParseSeatClass(in.SeatClass)
	if !ok {
		return time.Time{}, "", domain.NewValidationError("seat_class", fmt.Sprintf("unknown class %q", in.SeatClass))
	}
	return domain.DateOf(in.TravelDate), class, nil
}

// normalizePhone keeps the digits of phone. Spaces, dashes, dots, brackets
// and a leading plus are accepted as separators.
func normalizePhone(phone string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		case r == '+' && i == 0:
		default:
			return "", domain.NewValidationError("phone", fmt.Sprintf("unexpected character %q", r))
		}
	}
	digits := b.String()
	if digits == "" {
		return "", domain.NewValidationError("phone", "is required")
	}
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", domain.NewValidationError("phone", fmt.Sprintf("must have %d to %d digits", minPhoneDigits, maxPhoneDigits))
	}
	return digits, nil
}

func normalizePNR(pnr string) (string, error) {
	pnr = strings.ToUpper(strings.TrimSpace(pnr))
	if pnr == "" {
		return "", domain.NewValidationError("pnr", "is required")
	}
	return pnr, nil
}

func ageOn(dob, day time.Time) int {
	age := day.Year() - dob.Year()
	if day.Month() < dob.Month() || (day.Month() == dob.Month() && day.Day() < dob.Day()) {
		age--
	}
	return age
}
