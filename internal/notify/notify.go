// Package notify turns reservation events into customer notifications.
package notify

import (
	"context"
	"fmt"

	"github.com/Domenick1991/airreservation/internal/fare"
	"github.com/Domenick1991/airreservation/internal/kafka"
	"github.com/sirupsen/logrus"
)

// Sender delivers notifications. Delivery is logged; a gateway can be plugged
// in behind the same method.
type Sender struct {
	logger logrus.FieldLogger
}

func NewSender(logger logrus.FieldLogger) *Sender {
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event kafka.ReservationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	message, ok := Message(event)
	if !ok {
		s.logger.WithField("event", event.Type).Debug("no notification for event")
		return nil
	}
	s.logger.WithFields(logrus.Fields{
		"event":       event.Type,
		"customer_id": event.CustomerID,
		"phone":       event.Phone,
		"pnr":         event.PNR,
	}).Info(message)
	return nil
}

// Message renders the text sent for event; false for event types customers
// are not notified about.
func Message(event kafka.ReservationEvent) (string, bool) {
	date := event.TravelDate.Format("02 Jan 2006")
	switch event.Type {
	case kafka.EventReservationConfirmed:
		return fmt.Sprintf("Booking %s confirmed: flight %d, %s seat %d on %s, fare %.2f",
			event.PNR, event.FlightCode, event.SeatClass, event.SeatNumber, date, fare.Round2(event.Fare)), true
	case kafka.EventReservationWaitlisted:
		return fmt.Sprintf("Flight %d %s on %s is full, you are number %d on the waiting list",
			event.FlightCode, event.SeatClass, date, event.WaitingNumber), true
	case kafka.EventReservationCancelled:
		return fmt.Sprintf("Booking %s cancelled, refund %.2f (fee %.2f)",
			event.PNR, fare.Round2(event.RefundAmount), fare.Round2(event.CancellationFee)), true
	case kafka.EventWaitlistPromoted:
		return fmt.Sprintf("Good news: a seat opened up. Booking %s confirmed on flight %d, %s seat %d on %s",
			event.PNR, event.FlightCode, event.SeatClass, event.SeatNumber, date), true
	case kafka.EventWaitlistExpired:
		return fmt.Sprintf("Your waiting list request for flight %d on %s has expired", event.FlightCode, date), true
	default:
		return "", false
	}
}
