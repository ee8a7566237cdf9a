package handlers

import (
	"errors"
	"net/http"

	"github.com/nfrund/signin/internal/domain"
	"github.com/nfrund/signin/internal/validation"
	"github.com/nfrund/signin/internal/view"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalid         = "invalid"
	CodeBusy            = "busy"
	CodeCooldown        = "cooldown"
	CodeCodeEntryHidden = "code_entry_hidden"
	CodeFinished        = "finished"
	CodeNotFound        = "not_found"
	CodeBadRequest      = "bad_request"
	CodeRateLimited     = "rate_limited"
	CodeInternal        = "internal"
)

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AttemptResponse is the body of every sign-in endpoint. Error is set when
// the action was rejected; the attempt view is still current.
type AttemptResponse struct {
	view.Attempt
	Error *ErrorResponse `json:"error,omitempty"`
}

// errorStatus maps a rejection returned by the controller to an HTTP status.
func errorStatus(err error) (int, *ErrorResponse) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity, &ErrorResponse{Code: CodeInvalid, Message: err.Error()}
	case errors.Is(err, domain.ErrBusy):
		return http.StatusConflict, &ErrorResponse{Code: CodeBusy, Message: err.Error()}
	case errors.Is(err, domain.ErrCooldownActive):
		return http.StatusConflict, &ErrorResponse{Code: CodeCooldown, Message: err.Error()}
	case errors.Is(err, domain.ErrCodeEntryHidden):
		return http.StatusConflict, &ErrorResponse{Code: CodeCodeEntryHidden, Message: err.Error()}
	case errors.Is(err, domain.ErrAttemptFinished):
		return http.StatusGone, &ErrorResponse{Code: CodeFinished, Message: err.Error()}
	case errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusNotFound, &ErrorResponse{Code: CodeNotFound, Message: err.Error()}
	default:
		return http.StatusInternalServerError, &ErrorResponse{Code: CodeInternal, Message: "Something went wrong."}
	}
}
