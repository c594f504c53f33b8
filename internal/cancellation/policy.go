// Package cancellation holds the refund policy applied when a booking is cancelled.
package cancellation

import (
	"time"

	"github.com/Domenick1991/airreservation/internal/domain"
)

const (
	sameDayFeeRate = 0.25
	advanceFeeRate = 0.10
)

type Refund struct {
	CancellationFee float64 `json:"cancellation_fee"`
	RefundAmount    float64 `json:"refund_amount"`
	DaysUntilTravel int     `json:"days_until_travel"`
}

// ComputeRefund splits fare into a cancellation fee and a refund. The fee is
// the whole fare once the travel date has passed or the booking is already
// cancelled, a quarter of it on the travel date itself and a tenth otherwise.
// The two parts always add up to fare.
func ComputeRefund(fare float64, travelDate, today time.Time, status domain.ReservationStatus) Refund {
	days := DaysBetween(today, travelDate)

	var fee float64
	switch {
	case status == domain.ReservationStatusCancelled:
		fee = fare
	case days < 0:
		fee = fare
	case days < 1:
		fee = fare * sameDayFeeRate
	default:
		fee = fare * advanceFeeRate
	}

	return Refund{
		CancellationFee: fee,
		RefundAmount:    fare - fee,
		DaysUntilTravel: days,
	}
}

// DaysBetween counts whole calendar days from one date to another; negative
// when to is before from.
func DaysBetween(from, to time.Time) int {
	return int(domain.DateOf(to).Sub(domain.DateOf(from)).Hours() / 24)
}
