package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/airreservation/internal/domain"
	"github.com/Domenick1991/airreservation/internal/service/reservation"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type FlightHandler struct {
	service reservation.UseCase
	logger  logrus.FieldLogger
}

type flightResponse struct {
	Code           int64   `json:"code"`
	Name           string  `json:"name"`
	Route          string  `json:"route"`
	SeatClass      string  `json:"seat_class"`
	TravelDate     string  `json:"travel_date"`
	TotalSeats     int     `json:"total_seats"`
	AvailableSeats int     `json:"available_seats"`
	BaseFare       float64 `json:"base_fare"`
	DepartureTime  string  `json:"departure_time,omitempty"`
	ArrivalTime    string  `json:"arrival_time,omitempty"`
}

func NewFlightHandler(service reservation.UseCase, logger logrus.FieldLogger) *FlightHandler {
	return &FlightHandler{service: service, logger: logger}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("/flights", h.search)
	router.GET("/fares/quote", h.quote)
}

// search serves GET /flights?date=2026-03-15&class=Economy&route=Maseru → Johannesburg.
func (h *FlightHandler) search(c *gin.Context) {
	date, err := time.Parse(time.DateOnly, c.Query("date"))
	if err != nil {
		badRequest(c, "date", "date must be YYYY-MM-DD")
		return
	}

	flights, err := h.service.SearchAvailableFlights(c.Request.Context(), reservation.SearchInput{
		TravelDate: date,
		SeatClass:  c.DefaultQuery("class", string(domain.SeatClassEconomy)),
		Route:      c.Query("route"),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(flights, func(f domain.FlightAvailability, _ int) flightResponse {
		return toFlightResponse(f)
	}))
}

func (h *FlightHandler) quote(c *gin.Context) {
	code, err := strconv.ParseInt(c.Query("flight"), 10, 64)
	if err != nil {
		badRequest(c, "flight", "invalid flight code")
		return
	}
	quote, err := h.service.QuoteFare(c.Request.Context(), code, c.DefaultQuery("class", string(domain.SeatClassEconomy)), c.Query("concession"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func toFlightResponse(f domain.FlightAvailability) flightResponse {
	return flightResponse{
		Code:           f.Flight.Code,
		Name:           f.Flight.Name,
		Route:          f.Flight.Route(),
		SeatClass:      string(f.SeatClass),
		TravelDate:     f.TravelDate.Format(time.DateOnly),
		TotalSeats:     f.TotalSeats,
		AvailableSeats: f.AvailableSeats,
		BaseFare:       f.BaseFare,
		DepartureTime:  formatClock(f.Flight.DepartureTime),
		ArrivalTime:    formatClock(f.Flight.ArrivalTime),
	}
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04")
}
