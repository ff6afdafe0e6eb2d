package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staynest/hostel-booking-backend/internal/middleware"
	"github.com/staynest/hostel-booking-backend/internal/models"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// statusForKind maps booking error kinds to HTTP status codes
var statusForKind = map[models.ErrorKind]int{
	models.KindValidation:          http.StatusBadRequest,
	models.KindNotFound:            http.StatusNotFound,
	models.KindForbidden:           http.StatusForbidden,
	models.KindConflict:            http.StatusConflict,
	models.KindPaymentVerification: http.StatusPaymentRequired,
	models.KindExternalService:     http.StatusBadGateway,
}

// respondError writes err as an ErrorResponse. Errors outside the booking
// taxonomy are logged and reported as 500 without their details.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var be *models.BookingError
	if errors.As(err, &be) {
		status := statusForKind[be.Kind]
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if status >= http.StatusInternalServerError {
			logger.WithFields(logrus.Fields{
				"path": c.FullPath(),
				"code": be.Code,
			}).WithError(err).Error("Request failed")
		}
		c.JSON(status, ErrorResponse{
			Error:   string(be.Kind),
			Message: be.Message,
			Code:    be.Code,
		})
		return
	}

	logger.WithField("path", c.FullPath()).WithError(err).Error("Unexpected error")
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An unexpected error occurred",
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: message,
		Code:    models.ErrValidation.Code,
	})
}

// currentUser returns the authenticated user, writing a 401 if there is none
func currentUser(c *gin.Context) (middleware.UserContext, bool) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "User not authenticated",
		})
	}
	return userCtx, ok
}

// uuidParam parses a path parameter as a UUID, writing a 400 on failure
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+strings.ReplaceAll(name, "_", " ")+" format")
		return uuid.Nil, false
	}
	return id, true
}

// listQuery binds status and paging parameters
func listQuery(c *gin.Context) (models.ListBookingsQuery, bool) {
	var q models.ListBookingsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "Invalid query parameters: "+err.Error())
		return q, false
	}
	return q, true
}
