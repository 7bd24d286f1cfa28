package apicontract

import (
	"errors"

	"github.com/algojudge/corejudge/errs"
)

// ErrorResponse is the user-visible failure shape every public
// endpoint returns on error (§7: "User-visible failures are a {code,
// message, retryable} triple").
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// FromError adapts a core *errs.Error into the wire error shape. Any
// other error is reported as a non-retryable, unclassified failure so
// a boundary handler always has something to serialize.
func FromError(err error) ErrorResponse {
	var e *errs.Error
	if errors.As(err, &e) {
		return ErrorResponse{Code: string(e.Kind), Message: e.Message, Retryable: e.Retryable}
	}
	return ErrorResponse{Code: "unknown", Message: err.Error(), Retryable: false}
}
