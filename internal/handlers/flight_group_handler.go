package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/groupavia/allotment-backend/internal/database"
	"github.com/groupavia/allotment-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// FlightGroupHandler handles flight group and availability HTTP requests
type FlightGroupHandler struct {
	groupRepo       *database.FlightGroupRepository
	bucketRepo      *database.SeatBucketRepository
	defaultCurrency string
	logger          *logrus.Logger
}

// NewFlightGroupHandler creates a new FlightGroupHandler
func NewFlightGroupHandler(
	groupRepo *database.FlightGroupRepository,
	bucketRepo *database.SeatBucketRepository,
	defaultCurrency string,
	logger *logrus.Logger,
) *FlightGroupHandler {
	return &FlightGroupHandler{
		groupRepo:       groupRepo,
		bucketRepo:      bucketRepo,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// Create handles POST /api/v1/flight-groups (operator only). The group starts
// in "draft" and must be published before agencies can book against it.
func (h *FlightGroupHandler) Create(c *gin.Context) {
	var req models.CreateFlightGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(c, err)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = h.defaultCurrency
	}

	group := &models.FlightGroup{
		GroupCode:    req.GroupCode,
		Origin:       req.Origin,
		Destination:  req.Destination,
		CarrierCode:  req.CarrierCode,
		FlightNumber: req.FlightNumber,
		DepartureAt:  req.DepartureAt,
		ReturnAt:     req.ReturnAt,
		SalesOpenAt:  req.SalesOpenAt,
		SalesCloseAt: req.SalesCloseAt,
		CodeMode:     req.CodeMode,
		Currency:     currency,
	}
	if err := h.groupRepo.Create(group); err != nil {
		h.respondError(c, err)
		return
	}

	buckets := make([]models.SeatBucket, 0, len(req.Buckets))
	for _, b := range req.Buckets {
		bucket := models.SeatBucket{
			FlightGroupID: group.ID,
			PassengerType: b.PassengerType,
			TotalSeats:    b.TotalSeats,
			BaseFare:      b.BaseFare,
			TaxAmount:     b.TaxAmount,
			Currency:      currency,
		}
		if err := h.bucketRepo.Create(&bucket); err != nil {
			h.respondError(c, err)
			return
		}
		buckets = append(buckets, bucket)
	}

	h.logger.WithFields(logrus.Fields{
		"flight_group_id": group.ID,
		"group_code":      group.GroupCode,
		"buckets":         len(buckets),
	}).Info("Flight group created")

	c.JSON(http.StatusCreated, models.FlightGroupResponse{FlightGroup: group, Buckets: buckets})
}

// Get handles GET /api/v1/flight-groups/:id
func (h *FlightGroupHandler) Get(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	group, err := h.groupRepo.GetByID(groupID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if group == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": models.ErrFlightGroupNotFound.Error()})
		return
	}

	buckets, err := h.bucketRepo.ListByFlightGroup(group.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.FlightGroupResponse{FlightGroup: group, Buckets: buckets})
}

// List handles GET /api/v1/flight-groups, returning groups open for sales.
func (h *FlightGroupHandler) List(c *gin.Context) {
	limit, offset := pagination(c)
	groups, err := h.groupRepo.ListOpenForSales(limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flight_groups": groups, "limit": limit, "offset": offset})
}

// Availability handles GET /api/v1/flight-groups/:id/availability, returning
// per-type remaining seats without locking anything.
func (h *FlightGroupHandler) Availability(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	buckets, err := h.bucketRepo.ListByFlightGroup(groupID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(buckets) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": models.ErrFlightGroupNotFound.Error()})
		return
	}

	availability := make([]gin.H, 0, len(buckets))
	for _, b := range buckets {
		availability = append(availability, gin.H{
			"passenger_type": b.PassengerType,
			"total_seats":    b.TotalSeats,
			"seats_on_hold":  b.SeatsOnHold,
			"seats_issued":   b.SeatsIssued,
			"available":      b.Available(),
			"fare_per_seat":  b.FarePerSeat(),
			"currency":       b.Currency,
		})
	}
	c.JSON(http.StatusOK, gin.H{"flight_group_id": groupID, "availability": availability})
}

// UpdateStatus handles PATCH /api/v1/flight-groups/:id/status (operator only).
func (h *FlightGroupHandler) UpdateStatus(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status models.FlightGroupStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	switch req.Status {
	case models.FlightGroupStatusDraft, models.FlightGroupStatusPublished,
		models.FlightGroupStatusClosed, models.FlightGroupStatusDeparted:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown flight group status: " + string(req.Status)})
		return
	}

	if err := h.groupRepo.UpdateStatus(groupID, req.Status); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flight_group_id": groupID, "status": req.Status})
}

func (h *FlightGroupHandler) respondError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.Is(err, models.ErrFlightGroupNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("Unhandled flight group error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
