package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/groupavia/allotment-backend/internal/middleware"
	"github.com/groupavia/allotment-backend/internal/models"
	"github.com/groupavia/allotment-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// BookingHandler handles booking lifecycle HTTP requests
type BookingHandler struct {
	bookingService *services.BookingService
	logger         *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookingService *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{bookingService: bookingService, logger: logger}
}

// Create handles POST /api/v1/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.bookingService.CreateBooking(actor, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Get handles GET /api/v1/bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	resp, err := h.bookingService.GetBooking(actor, bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List handles GET /api/v1/bookings for the caller's agency.
func (h *BookingHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	bookings, err := h.bookingService.ListAgencyBookings(actor.AgencyID, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "limit": limit, "offset": offset})
}

// Approve handles POST /api/v1/bookings/:id/approve (operator only)
func (h *BookingHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookingService.Approve(actor, bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// Reject handles POST /api/v1/bookings/:id/reject (operator only)
func (h *BookingHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req models.RejectBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	booking, err := h.bookingService.Reject(actor, bookingID, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// StartPayment handles POST /api/v1/bookings/:id/start-payment
func (h *BookingHandler) StartPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookingService.StartPayment(actor, bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// MarkPaid handles POST /api/v1/bookings/:id/mark-paid (operator only)
func (h *BookingHandler) MarkPaid(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req models.MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	booking, err := h.bookingService.MarkPaid(actor, bookingID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// Issue handles POST /api/v1/bookings/:id/issue (operator only)
func (h *BookingHandler) Issue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	resp, err := h.bookingService.Issue(actor, bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookingService.Cancel(actor, bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// respondError maps domain errors to HTTP status codes.
func (h *BookingHandler) respondError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	var transitionErr *models.InvalidStatusTransitionError
	var availabilityErr *models.InsufficientAvailabilityError
	var exhaustedErr *models.IdentifierExhaustedError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{"error": transitionErr.Error()})
	case errors.As(err, &availabilityErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":          availabilityErr.Error(),
			"passenger_type": availabilityErr.PassengerType,
			"requested":      availabilityErr.Requested,
			"available":      availabilityErr.Available,
		})
	case errors.As(err, &exhaustedErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": exhaustedErr.Error()})
	case errors.Is(err, models.ErrBookingNotFound), errors.Is(err, models.ErrFlightGroupNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("Unhandled booking error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// actorFromContext rebuilds the authenticated actor set by the auth middleware.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	userID, ok1 := c.Get(middleware.ContextUserID)
	agencyID, ok2 := c.Get(middleware.ContextAgencyID)
	role, ok3 := c.Get(middleware.ContextRole)
	if !ok1 || !ok2 || !ok3 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return models.Actor{}, false
	}
	return models.Actor{
		UserID:   userID.(uuid.UUID),
		AgencyID: agencyID.(uuid.UUID),
		Role:     models.Role(role.(string)),
	}, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 50
	offset = 0
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
