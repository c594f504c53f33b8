package kafka

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventReservationConfirmed  = "reservation_confirmed"
	EventReservationWaitlisted = "reservation_waitlisted"
	EventReservationCancelled  = "reservation_cancelled"
	EventWaitlistPromoted      = "waitlist_promoted"
	EventWaitlistExpired       = "waitlist_expired"
)

// ReservationEvent is published after a reservation change has been committed.
type ReservationEvent struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	PNR             string    `json:"pnr,omitempty"`
	CustomerID      int64     `json:"customer_id"`
	CustomerName    string    `json:"customer_name,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	FlightCode      int64     `json:"flight_code"`
	SeatClass       string    `json:"seat_class"`
	SeatNumber      int       `json:"seat_number,omitempty"`
	WaitingNumber   int       `json:"waiting_number,omitempty"`
	TravelDate      time.Time `json:"travel_date"`
	Fare            float64   `json:"fare,omitempty"`
	RefundAmount    float64   `json:"refund_amount,omitempty"`
	CancellationFee float64   `json:"cancellation_fee,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func NewReservationEvent(eventType string, occurredAt time.Time) ReservationEvent {
	return ReservationEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: occurredAt,
	}
}

// Key is the partition key: events of one booking reference stay ordered.
func (e ReservationEvent) Key() string {
	if e.PNR != "" {
		return e.PNR
	}
	return e.ID
}
