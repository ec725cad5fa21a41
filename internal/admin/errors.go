package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/arcade-judge/internal/model"
	"github.com/mcoot/arcade-judge/internal/scheduler"
)

// APIError is the body of an error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Error codes
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeRunInProgress  = "RUN_IN_PROGRESS"
	CodeNotFound       = "NOT_FOUND"
	CodeUnavailable    = "STORE_UNAVAILABLE"
	CodeInternalError  = "INTERNAL_ERROR"
)

// httpError pairs a status code with the error body
type httpError struct {
	status   int
	apiError APIError
}

func (e *httpError) Error() string {
	return e.apiError.Message
}

func invalidRequest(message string) error {
	return &httpError{status: http.StatusBadRequest, apiError: APIError{Code: CodeInvalidRequest, Message: message}}
}

func notFound(message string) error {
	return &httpError{status: http.StatusNotFound, apiError: APIError{Code: CodeNotFound, Message: message}}
}

func unavailable(err error) error {
	return &httpError{status: http.StatusServiceUnavailable, apiError: APIError{Code: CodeUnavailable, Message: err.Error()}}
}

func writeError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	writeJSON(w, he.status, ErrorResponse{Error: he.apiError})
}

func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		return &httpError{status: http.StatusConflict, apiError: APIError{Code: CodeRunInProgress, Message: err.Error()}}
	case errors.Is(err, model.ErrUnknownPeriod):
		return &httpError{status: http.StatusBadRequest, apiError: APIError{Code: CodeInvalidRequest, Message: err.Error()}}
	default:
		return &httpError{status: http.StatusInternalServerError, apiError: APIError{Code: CodeInternalError, Message: "internal error"}}
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func panicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	writeError(w, errors.New("panic"))
}
