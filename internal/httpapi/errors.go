package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridsentry/gridchaos/internal/chaos"
	"github.com/gridsentry/gridchaos/internal/controller"
)

// ErrReadOnly indicates a write operation was attempted while the server is
// running in read-only mode.
var ErrReadOnly = errors.New("server is running in read-only mode")

// statusForError maps control-plane errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, chaos.ErrScenarioNotFound):
		return http.StatusNotFound

	case errors.Is(err, controller.ErrInvalidExecutionMode),
		errors.Is(err, controller.ErrInvalidLossThreshold):
		return http.StatusBadRequest

	case errors.Is(err, controller.ErrExperimentActive),
		errors.Is(err, chaos.ErrAlreadyApplied):
		return http.StatusConflict

	case errors.Is(err, ErrReadOnly):
		return http.StatusForbidden

	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}
