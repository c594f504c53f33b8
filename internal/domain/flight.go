package domain

import (
	"fmt"
	"strings"
	"time"
)

type SeatClass string

const (
	SeatClassEconomy  SeatClass = "Economy"
	SeatClassBusiness SeatClass = "Business"
)

// ParseSeatClass accepts "Economy" and "Business", with "Executive" as the
// legacy name of the business cabin.
func ParseSeatClass(s string) (SeatClass, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "economy", "eco":
		return SeatClassEconomy, true
	case "business", "executive", "exe":
		return SeatClassBusiness, true
	default:
		return "", false
	}
}

type Flight struct {
	Code          int64
	Name          string
	EconomySeats  int
	BusinessSeats int
	EconomyFare   float64
	BusinessFare  float64
	Source        string
	Destination   string
	DepartureTime time.Time
	ArrivalTime   time.Time
}

// Capacity returns the fixed seat inventory of the given class.
func (f Flight) Capacity(class SeatClass) int {
	if class == SeatClassBusiness {
		return f.BusinessSeats
	}
	return f.EconomySeats
}

// BaseFare returns the stored fare of the given class; zero means no fare is on file.
func (f Flight) BaseFare(class SeatClass) float64 {
	if class == SeatClassBusiness {
		return f.BusinessFare
	}
	return f.EconomyFare
}

func (f Flight) Route() string {
	return FormatRoute(f.Source, f.Destination)
}

func FormatRoute(source, destination string) string {
	return fmt.Sprintf("%s → %s", source, destination)
}

// FlightAvailability is a flight as seen by a search for one class and travel date.
type FlightAvailability struct {
	Flight         Flight
	SeatClass      SeatClass
	TravelDate     time.Time
	TotalSeats     int
	AvailableSeats int
	BaseFare       float64
}
