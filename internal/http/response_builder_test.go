package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pocket/internal/core"
	"pocket/internal/services"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		JSON(map[string]int{"n": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "application/json") {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Error("custom header not set")
	}
	if strings.TrimSpace(w.Body.String()) != `{"n":1}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponseBuilder_RawBody(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().Body("text/plain", []byte("hi")).Write(w)

	if w.Header().Get("Content-Type") != "text/plain" || w.Body.String() != "hi" {
		t.Errorf("got %q %q", w.Header().Get("Content-Type"), w.Body.String())
	}
}

func TestResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().JSON(map[string]any{"ch": make(chan int)}).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name    string
		builder *ResponseBuilder
		status  int
	}{
		{"bad request", BadRequestError("bad"), http.StatusBadRequest},
		{"unprocessable", UnprocessableEntityError("nope"), http.StatusUnprocessableEntity},
		{"internal", InternalServerError("boom"), http.StatusInternalServerError},
		{"not found", NotFoundError("missing"), http.StatusNotFound},
		{"too many", TooManyRequestsError(), http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.status {
				t.Errorf("Status code = %d, want %d", w.Code, tt.status)
			}
			if !strings.Contains(w.Body.String(), `"error":`) {
				t.Errorf("Body = %q", w.Body.String())
			}
		})
	}
}

func TestValidationErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	ValidationErrorResponse("title is required", core.FocusTitle).Write(w)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status code = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"focus":"title"`) {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &core.ValidationError{Field: core.FocusAmount, Err: core.ErrAmountRequired}, http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("record: %w", core.ErrNotFound), http.StatusNotFound},
		{"duplicate", core.ErrDuplicateCategory, http.StatusConflict},
		{"commit failed", fmt.Errorf("save: %w: %w", core.ErrCommitFailed, errors.New("io")), http.StatusServiceUnavailable},
		{"nothing selected", core.ErrNothingSelected, http.StatusUnprocessableEntity},
		{"sentinel", errors.Join(core.ErrSentinelCategory), http.StatusUnprocessableEntity},
		{"unknown category", fmt.Errorf("category x: %w", core.ErrUnknownCategory), http.StatusUnprocessableEntity},
		{"editor state", services.ErrNotConfirming, http.StatusUnprocessableEntity},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorResponse_HidesInternalCause(t *testing.T) {
	w := httptest.NewRecorder()
	errorResponse(errors.New("password=hunter2")).Write(w)

	if strings.Contains(w.Body.String(), "hunter2") {
		t.Errorf("internal error leaked: %s", w.Body.String())
	}
}

func TestErrorResponse_UnwrapsMessage(t *testing.T) {
	w := httptest.NewRecorder()
	errorResponse(fmt.Errorf("category 123: %w", core.ErrUnknownCategory)).Write(w)

	if !strings.Contains(w.Body.String(), core.ErrUnknownCategory.Error()) {
		t.Errorf("Body = %s", w.Body.String())
	}
}
