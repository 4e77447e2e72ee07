package http

import (
	"errors"
	"net/http"
	"strings"

	"pocket/internal/core"
	"pocket/internal/services"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// errorStatus maps a service error to its HTTP status.
func errorStatus(err error) int {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateCategory), errors.Is(err, core.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrCommitFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrNothingSelected),
		errors.Is(err, core.ErrSentinelCategory),
		errors.Is(err, core.ErrReservedName),
		errors.Is(err, core.ErrInvalidColor),
		errors.Is(err, core.ErrEmptyCategoryName),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrUnknownCategory),
		errors.Is(err, core.ErrTitleRequired),
		errors.Is(err, core.ErrTitleTooLong),
		errors.Is(err, core.ErrAmountRequired),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, services.ErrNotEditing),
		errors.Is(err, services.ErrNotConfirming):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse builds the response for err. Internal failures are not
// described to the caller.
func errorResponse(err error) *ResponseBuilder {
	status := errorStatus(err)
	switch {
	case status == http.StatusInternalServerError:
		return InternalServerError("internal error")
	case status == http.StatusServiceUnavailable:
		return ErrorResponse(status, "the change could not be saved, please retry")
	case status == http.StatusNotFound:
		return NotFoundError("not found")
	}
	if focus := core.FocusOf(err); focus != core.FocusNone {
		var ve *core.ValidationError
		errors.As(err, &ve)
		return ValidationErrorResponse(ve.Err.Error(), focus)
	}
	return ErrorResponse(status, rootMessage(err))
}

// rootMessage returns the message of the innermost wrapped error.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
