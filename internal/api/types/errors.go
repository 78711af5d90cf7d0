package types

import (
	"errors"
	"net/http"

	appErr "github.com/dealdocs/engine/pkg/errors"
)

func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var e *appErr.AppError
	if errors.As(err, &e) {
		return &APIError{Code: string(e.Code), Message: e.Message}
	}
	return &APIError{Code: string(appErr.CodeUnknown), Message: err.Error()}
}

// HTTPStatus maps an error code onto a response status.
func HTTPStatus(err error) int {
	switch appErr.CodeOf(err) {
	case appErr.CodeInvalid:
		return http.StatusBadRequest
	case appErr.CodeUnauthorized:
		return http.StatusUnauthorized
	case appErr.CodeForbidden:
		return http.StatusForbidden
	case appErr.CodeNotFound:
		return http.StatusNotFound
	case appErr.CodeConflict, appErr.CodeAlreadyExists:
		return http.StatusConflict
	case appErr.CodeFailedPrecondition:
		return http.StatusUnprocessableEntity
	case appErr.CodeUnavailable:
		return http.StatusServiceUnavailable
	case appErr.CodeDeadline:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
