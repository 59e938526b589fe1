package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// statusFor maps an application error onto an HTTP status and deny reason
func statusFor(err error) (int, domainwf.DenyReason) {
	if reason, ok := domainwf.ReasonOf(err); ok {
		switch reason {
		case domainwf.ReasonForbiddenRole, domainwf.ReasonSelfApproval:
			return http.StatusForbidden, reason
		case domainwf.ReasonMissingRequiredField:
			return http.StatusBadRequest, reason
		default:
			return http.StatusUnprocessableEntity, reason
		}
	}

	switch {
	case errors.Is(err, domainwf.ErrConflict):
		return http.StatusConflict, ""
	case errors.Is(err, domainwf.ErrNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, domainwf.ErrForbidden):
		return http.StatusForbidden, domainwf.ReasonForbiddenRole
	case errors.Is(err, domainwf.ErrMissingRequiredField), errors.Is(err, domainwf.ErrInvalidStatus):
		return http.StatusBadRequest, domainwf.ReasonMissingRequiredField
	case errors.Is(err, domainwf.ErrMissingPrecondition):
		return http.StatusUnprocessableEntity, domainwf.ReasonMissingPrecondition
	case errors.Is(err, domainwf.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, domainwf.ReasonInvalidTransition
	default:
		return http.StatusInternalServerError, ""
	}
}

// errorBody renders err for a client. Internal errors are not echoed.
func errorBody(err error) (int, Response) {
	status, reason := statusFor(err)
	msg := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		msg = "internal server error"
	case status == http.StatusConflict:
		msg = domainwf.ErrConflict.Error()
	}
	return status, Response{Success: false, Error: msg, Reason: string(reason)}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"path", c.Request.URL.Path,
			"actor_id", actorID(c),
			"error", err)
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}
