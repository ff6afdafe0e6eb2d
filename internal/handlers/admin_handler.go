package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/staynest/hostel-booking-backend/internal/models"
)

// JobRunner exposes the background jobs for manual runs
type JobRunner interface {
	RunExpireBookingsNow() map[string]interface{}
	RunProcessRefundsNow() map[string]interface{}
	RunReconcileInventoryNow() map[string]interface{}
	GetJobStatus() map[string]interface{}
}

// RefundRetrier re-attempts failed refunds
type RefundRetrier interface {
	RetryFailedRefund(ctx context.Context, bookingID string) (*models.Booking, error)
}

// AdminHandler handles admin-only maintenance endpoints
type AdminHandler struct {
	jobs    JobRunner
	refunds RefundRetrier
	logger  *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(jobs JobRunner, refunds RefundRetrier, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		jobs:    jobs,
		refunds: refunds,
		logger:  logger,
	}
}

// GetJobStatus handles GET /api/v1/admin/jobs/status
func (h *AdminHandler) GetJobStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobs.GetJobStatus())
}

// RunExpireBookings handles POST /api/v1/admin/jobs/expire-bookings
func (h *AdminHandler) RunExpireBookings(c *gin.Context) {
	h.runJob(c, h.jobs.RunExpireBookingsNow)
}

// RunProcessRefunds handles POST /api/v1/admin/jobs/process-refunds
func (h *AdminHandler) RunProcessRefunds(c *gin.Context) {
	h.runJob(c, h.jobs.RunProcessRefundsNow)
}

// RunReconcileInventory handles POST /api/v1/admin/jobs/reconcile-inventory
func (h *AdminHandler) RunReconcileInventory(c *gin.Context) {
	h.runJob(c, h.jobs.RunReconcileInventoryNow)
}

func (h *AdminHandler) runJob(c *gin.Context, run func() map[string]interface{}) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	result := run()
	h.logger.WithFields(logrus.Fields{
		"admin_id": userCtx.UserID,
		"job":      result["job"],
	}).Info("Job triggered manually")

	status := http.StatusOK
	if errMsg, _ := result["error"].(string); errMsg != "" {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

// RetryRefund handles POST /api/v1/admin/refunds/:id/retry
func (h *AdminHandler) RetryRefund(c *gin.Context) {
	booking, err := h.refunds.RetryFailedRefund(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"booking_id":    booking.BookingID,
		"refund_status": booking.RefundStatus,
		"booking":       booking,
	})
}
