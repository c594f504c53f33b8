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

const defaultPageSize = 20

type ReservationHandler struct {
	service reservation.UseCase
	logger  logrus.FieldLogger
}

type createReservationRequest struct {
	Name           string `json:"name" binding:"required"`
	FatherName     string `json:"father_name"`
	Gender         string `json:"gender"`
	DateOfBirth    string `json:"date_of_birth"`
	Address        string `json:"address"`
	Phone          string `json:"phone" binding:"required"`
	Profession     string `json:"profession"`
	Concession     string `json:"concession"`
	FlightCode     int64  `json:"flight_code" binding:"required"`
	SeatClass      string `json:"seat_class"`
	SeatPreference string `json:"seat_preference"`
	TravelDate     string `json:"travel_date" binding:"required"`
}

type reservationResponse struct {
	ID           int64   `json:"id"`
	PNR          string  `json:"pnr"`
	CustomerID   int64   `json:"customer_id"`
	CustomerName string  `json:"customer_name"`
	FlightCode   int64   `json:"flight_code"`
	FlightName   string  `json:"flight_name"`
	SeatClass    string  `json:"seat_class"`
	SeatNumber   int     `json:"seat_number"`
	Status       string  `json:"status"`
	Fare         float64 `json:"fare"`
	TravelDate   string  `json:"travel_date"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

func NewReservationHandler(service reservation.UseCase, logger logrus.FieldLogger) *ReservationHandler {
	return &ReservationHandler{service: service, logger: logger}
}

func (h *ReservationHandler) Register(router *gin.RouterGroup) {
	router.POST("/reservations", h.create)
	router.GET("/reservations", h.list)
	router.GET("/reservations/:pnr", h.get)
	router.GET("/reservations/:pnr/refund", h.refund)
	router.DELETE("/reservations/:pnr", h.cancel)
	router.GET("/customers/:phone/reservations", h.history)
}

// create answers 201 for a confirmed seat and 202 for a waiting-list place.
func (h *ReservationHandler) create(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "", err.Error())
		return
	}
	travelDate, err := time.Parse(time.DateOnly, req.TravelDate)
	if err != nil {
		badRequest(c, "travel_date", "travel_date must be YYYY-MM-DD")
		return
	}
	var dob time.Time
	if req.DateOfBirth != "" {
		if dob, err = time.Parse(time.DateOnly, req.DateOfBirth); err != nil {
			badRequest(c, "date_of_birth", "date_of_birth must be YYYY-MM-DD")
			return
		}
	}

	result, err := h.service.MakeReservation(c.Request.Context(), reservation.MakeReservationInput{
		Name:           req.Name,
		FatherName:     req.FatherName,
		Gender:         req.Gender,
		DateOfBirth:    dob,
		Address:        req.Address,
		Phone:          req.Phone,
		Profession:     req.Profession,
		Concession:     req.Concession,
		FlightCode:     req.FlightCode,
		SeatClass:      req.SeatClass,
		SeatPreference: req.SeatPreference,
		TravelDate:     travelDate,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	status := http.StatusCreated
	if !result.Confirmed {
		status = http.StatusAccepted
	}
	c.JSON(status, result)
}

func (h *ReservationHandler) list(c *gin.Context) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		badRequest(c, "offset", "offset must be a number")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil {
		badRequest(c, "limit", "limit must be a number")
		return
	}

	reservations, err := h.service.ListReservations(c.Request.Context(), offset, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponses(reservations))
}

func (h *ReservationHandler) get(c *gin.Context) {
	res, err := h.service.GetReservation(c.Request.Context(), c.Param("pnr"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(*res))
}

func (h *ReservationHandler) refund(c *gin.Context) {
	refund, err := h.service.PreviewRefund(c.Request.Context(), c.Param("pnr"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, refund)
}

func (h *ReservationHandler) cancel(c *gin.Context) {
	result, err := h.service.CancelReservation(c.Request.Context(), c.Param("pnr"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReservationHandler) history(c *gin.Context) {
	reservations, err := h.service.CustomerReservations(c.Request.Context(), c.Param("phone"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponses(reservations))
}

func toReservationResponses(reservations []domain.Reservation) []reservationResponse {
	return lo.Map(reservations, func(r domain.Reservation, _ int) reservationResponse {
		return toReservationResponse(r)
	})
}

func toReservationResponse(r domain.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:           r.ID,
		PNR:          r.PNR,
		CustomerID:   r.CustomerID,
		CustomerName: r.CustomerName,
		FlightCode:   r.FlightCode,
		FlightName:   r.FlightName,
		SeatClass:    string(r.SeatClass),
		SeatNumber:   r.SeatNumber,
		Status:       string(r.Status),
		Fare:         r.Fare,
		TravelDate:   r.TravelDate.Format(time.DateOnly),
	}
	if !r.CreatedAt.IsZero() {
		resp.CreatedAt = r.CreatedAt.Format(time.RFC3339)
	}
	return resp
}
