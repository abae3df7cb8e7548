package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/affinity/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrInvalidID     = errors.New("profile id must be a UUID")
	ErrMissingParam  = errors.New("missing query parameter")
	ErrInvalidParam  = errors.New("invalid query parameter")
	ErrBodyTooLarge  = errors.New("request body too large")
	ErrMalformedBody = errors.New("malformed JSON body")
)

// Error codes returned in errorResponse.Code.
const (
	codeBadRequest  = "bad_request"
	codeNotFound    = "not_found"
	codeDependency  = "dependency_failure"
	codeUnavailable = "unavailable"
	codeInternal    = "internal_error"
)

// statusFor maps a service error onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, model.ErrDependency):
		return http.StatusBadGateway, codeDependency
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, codeUnavailable
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}
