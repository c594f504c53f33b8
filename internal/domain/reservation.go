package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusConfirmed ReservationStatus = "Confirmed"
	ReservationStatusCancelled ReservationStatus = "Cancelled"
)

type Reservation struct {
	ID           int64
	PNR          string
	CustomerID   int64
	CustomerName string
	FlightCode   int64
	FlightName   string
	SeatClass    SeatClass
	SeatNumber   int
	Status       ReservationStatus
	Fare         float64
	TravelDate   time.Time
	CreatedAt    time.Time
}

type WaitingListEntry struct {
	ID            int64
	CustomerID    int64
	FlightCode    int64
	SeatClass     SeatClass
	TravelDate    time.Time
	WaitingNumber int
	CreatedAt     time.Time
}

type CancellationRecord struct {
	ReservationID   int64
	CancelledAt     time.Time
	RefundAmount    float64
	CancellationFee float64
}

// ReservationResult is the outcome of a booking attempt: either a confirmed
// seat or a place on the waiting list.
type ReservationResult struct {
	Confirmed     bool    `json:"confirmed"`
	CustomerID    int64   `json:"customer_id"`
	PNR           string  `json:"pnr,omitempty"`
	SeatNumber    int     `json:"seat_number,omitempty"`
	Fare          float64 `json:"fare,omitempty"`
	Discount      float64 `json:"discount,omitempty"`
	WaitingNumber int     `json:"waiting_number,omitempty"`
}

// Promotion describes the waiting customer who received the seat freed by a cancellation.
type Promotion struct {
	CustomerID    int64   `json:"customer_id"`
	WaitingNumber int     `json:"waiting_number"`
	PNR           string  `json:"pnr"`
	SeatNumber    int     `json:"seat_number"`
	Fare          float64 `json:"fare"`
}

type CancellationResult struct {
	Success         bool       `json:"success"`
	PNR             string     `json:"pnr"`
	RefundAmount    float64    `json:"refund_amount"`
	CancellationFee float64    `json:"cancellation_fee"`
	Promoted        *Promotion `json:"promoted,omitempty"`
}

// DateOf truncates t to its calendar date at UTC midnight. All travel dates
// are compared in this form.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
