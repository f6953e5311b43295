// Package handler implements the HTTP endpoints.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/justscrape/models"
)

type errorEnvelope struct {
	Error *models.ErrorDetail `json:"error"`
}

// statusForCode maps internal error codes to HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case models.ErrCodeNavigation, models.ErrCodeSearch:
		return http.StatusBadGateway
	case models.ErrCodeBrowserStart:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a typed error envelope with the mapped status.
func respondError(c *gin.Context, err error) {
	var rerr *models.RetrieveError
	if errors.As(err, &rerr) {
		c.JSON(statusForCode(rerr.Code), errorEnvelope{Error: rerr.ToDetail()})
		return
	}
	c.JSON(http.StatusInternalServerError, errorEnvelope{Error: &models.ErrorDetail{
		Code:    models.ErrCodeInternal,
		Message: err.Error(),
	}})
}

// badRequest writes an INVALID_INPUT envelope.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorEnvelope{Error: &models.ErrorDetail{
		Code:    models.ErrCodeInvalidInput,
		Message: msg,
	}})
}
