package respond

import (
	"errors"
	"net/http"

	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/gin-gonic/gin"
)

// Status maps the error taxonomy to an HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, store.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrVoteUnsupported),
		errors.Is(err, store.ErrPermissionDenied),
		errors.Is(err, store.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error writes a JSON error body for err. Retryable failures carry "retryable": true so
// clients can show a retry affordance.
func Error(c *gin.Context, err error) {
	status := Status(err)
	body := gin.H{"error": err.Error()}
	if status == http.StatusServiceUnavailable || status == http.StatusConflict || status == http.StatusInternalServerError {
		body["retryable"] = true
	}
	c.JSON(status, body)
}
