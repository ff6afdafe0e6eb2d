package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staynest/hostel-booking-backend/internal/models"
	"github.com/staynest/hostel-booking-backend/internal/utils"
)

const dateLayout = "2006-01-02"

// BookingService is the booking lifecycle as seen by the HTTP layer
type BookingService interface {
	CreateBooking(ctx context.Context, cmd models.CreateBookingCommand) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error)
	ListStudentBookings(ctx context.Context, studentID uuid.UUID, q models.ListBookingsQuery) (*models.BookingListResponse, error)
	ListHostelBookings(ctx context.Context, hostelID uuid.UUID, actor models.Actor, q models.ListBookingsQuery) (*models.BookingListResponse, error)
	Confirm(ctx context.Context, bookingID string, ownerID uuid.UUID) (*models.Booking, error)
	Reject(ctx context.Context, cmd models.RejectBookingCommand) (*models.Booking, error)
	CheckIn(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error)
	Activate(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error)
	CheckOut(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error)
	Complete(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error)
	Cancel(ctx context.Context, cmd models.CancelBookingCommand) (*models.Booking, error)
	QuoteRefund(req models.RefundQuoteRequest) (*models.RefundQuoteResponse, error)
	InitiatePayment(ctx context.Context, bookingID string, studentID uuid.UUID) (*models.PaymentOrderResponse, error)
	ConfirmPayment(ctx context.Context, cmd models.ConfirmPaymentCommand) (*models.Booking, error)
	HandleWebhook(ctx context.Context, wh models.PaymentWebhook) error
	GetInventory(ctx context.Context, hostelID uuid.UUID) (*models.InventoryResponse, error)
	SetInventory(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType, req models.SetInventoryRequest, actor models.Actor) (*models.RoomInventory, error)
}

// BookingHandler handles booking-related HTTP requests
type BookingHandler struct {
	bookings BookingService
	logger   *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookings BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		logger:   logger,
	}
}

// ============================================================================
// STUDENT
// ============================================================================

// CreateBooking handles POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	hostelID, err := uuid.Parse(req.HostelID)
	if err != nil {
		badRequest(c, "Invalid hostel ID format")
		return
	}
	checkIn, err := time.Parse(dateLayout, req.CheckInDate)
	if err != nil {
		badRequest(c, "Invalid check_in_date, expected YYYY-MM-DD")
		return
	}
	checkOut, err := time.Parse(dateLayout, req.CheckOutDate)
	if err != nil {
		badRequest(c, "Invalid check_out_date, expected YYYY-MM-DD")
		return
	}

	booking, err := h.bookings.CreateBooking(c.Request.Context(), models.CreateBookingCommand{
		StudentID:                userCtx.UserID,
		HostelID:                 hostelID,
		RoomType:                 models.RoomType(req.RoomType),
		CheckInDate:              checkIn,
		CheckOutDate:             checkOut,
		DurationMonths:           req.DurationMonths,
		FoodPlan:                 req.FoodPlan,
		EmergencyContactName:     req.EmergencyContactName,
		EmergencyContactPhone:    req.EmergencyContactPhone,
		EmergencyContactRelation: req.EmergencyContactRelation,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Booking created, awaiting owner confirmation",
		"booking": booking,
	})
}

// GetMyBookings handles GET /api/v1/bookings/mine
func (h *BookingHandler) GetMyBookings(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}
	q, ok := listQuery(c)
	if !ok {
		return
	}

	resp, err := h.bookings.ListStudentBookings(c.Request.Context(), userCtx.UserID, q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), c.Param("id"), userCtx.Actor())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.ReasonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	booking, err := h.bookings.Cancel(c.Request.Context(), models.CancelBookingCommand{
		BookingID: c.Param("id"),
		ActorID:   userCtx.UserID,
		ActorRole: userCtx.Role,
		Reason:    req.Reason,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Booking cancelled",
		"booking": booking,
	})
}

// ============================================================================
// OWNER
// ============================================================================

// ConfirmBooking handles POST /api/v1/bookings/:id/confirm
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	booking, err := h.bookings.Confirm(c.Request.Context(), c.Param("id"), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Booking confirmed, awaiting payment",
		"booking": booking,
	})
}

// RejectBooking handles POST /api/v1/bookings/:id/reject
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	booking, err := h.bookings.Reject(c.Request.Context(), models.RejectBookingCommand{
		BookingID: c.Param("id"),
		OwnerID:   userCtx.UserID,
		Reason:    req.Reason,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Booking rejected",
		"booking": booking,
	})
}

// CheckIn handles POST /api/v1/bookings/:id/check-in
func (h *BookingHandler) CheckIn(c *gin.Context) {
	h.occupancy(c, h.bookings.CheckIn, "Student checked in")
}

// Activate handles POST /api/v1/bookings/:id/activate
func (h *BookingHandler) Activate(c *gin.Context) {
	h.occupancy(c, h.bookings.Activate, "Stay activated")
}

// CheckOut handles POST /api/v1/bookings/:id/check-out
func (h *BookingHandler) CheckOut(c *gin.Context) {
	h.occupancy(c, h.bookings.CheckOut, "Student checked out")
}

// Complete handles POST /api/v1/bookings/:id/complete
func (h *BookingHandler) Complete(c *gin.Context) {
	h.occupancy(c, h.bookings.Complete, "Booking completed")
}

func (h *BookingHandler) occupancy(
	c *gin.Context,
	op func(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error),
	message string,
) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	booking, err := op(c.Request.Context(), c.Param("id"), userCtx.Actor())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"booking": booking,
	})
}

// GetHostelBookings handles GET /api/v1/hostels/:id/bookings
func (h *BookingHandler) GetHostelBookings(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}
	hostelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	q, ok := listQuery(c)
	if !ok {
		return
	}

	resp, err := h.bookings.ListHostelBookings(c.Request.Context(), hostelID, userCtx.Actor(), q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ============================================================================
// PAYMENT
// ============================================================================

// CreatePaymentOrder handles POST /api/v1/bookings/:id/payment/order
func (h *BookingHandler) CreatePaymentOrder(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	order, err := h.bookings.InitiatePayment(c.Request.Context(), c.Param("id"), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// VerifyPayment handles POST /api/v1/bookings/:id/payment/verify
func (h *BookingHandler) VerifyPayment(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	booking, err := h.bookings.ConfirmPayment(c.Request.Context(), models.ConfirmPaymentCommand{
		BookingID: c.Param("id"),
		StudentID: userCtx.UserID,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		ClientIP:  utils.ClientIP(c),
		UserAgent: utils.SummarizeUserAgent(c.Request.UserAgent()),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Payment verified",
		"booking": booking,
	})
}

// QuoteRefund handles POST /api/v1/refunds/quote
func (h *BookingHandler) QuoteRefund(c *gin.Context) {
	var req models.RefundQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	quote, err := h.bookings.QuoteRefund(req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// ============================================================================
// INVENTORY
// ============================================================================

// GetInventory handles GET /api/v1/hostels/:id/inventory
func (h *BookingHandler) GetInventory(c *gin.Context) {
	hostelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	inv, err := h.bookings.GetInventory(c.Request.Context(), hostelID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// SetInventory handles PUT /api/v1/hostels/:id/inventory/:room_type
func (h *BookingHandler) SetInventory(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}
	hostelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.SetInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	inv, err := h.bookings.SetInventory(c.Request.Context(), hostelID, models.RoomType(c.Param("room_type")), req, userCtx.Actor())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}
