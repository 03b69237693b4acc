package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"care-planner/internal/reconcile"
	"care-planner/internal/repository"
	"care-planner/internal/service"
	"care-planner/internal/timeofday"
)

// writeError maps service and reconciler errors onto HTTP responses.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		fieldErr   *reconcile.FieldError
		validErr   *reconcile.ValidationError
		parseErr   *timeofday.ParseError
		rangeErr   *timeofday.InvalidRangeError
		lockedErr  *reconcile.FieldLockedError
		backendErr *service.ExternalServiceError
	)

	switch {
	case errors.As(err, &backendErr):
		s.log.Errorw("backend failure", "path", c.FullPath(), "op", backendErr.Op, "error", backendErr.Err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "retryable": backendErr.Retryable()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, reconcile.ErrPlanLocked),
		errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrInviteUsed),
		errors.As(err, &lockedErr):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &fieldErr):
		body := gin.H{"error": err.Error(), "field": fieldErr.Field, "row": fieldErr.Row}
		if fieldErr.Added {
			body["added"] = true
		}
		if fieldErr.ID != "" {
			body["id"] = fieldErr.ID
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.As(err, &validErr), errors.As(err, &parseErr), errors.As(err, &rangeErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "field": nil, "row": nil})
	default:
		s.log.Errorw("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
