package web

// errors.go maps service errors onto HTTP responses.
//
// The technical error is logged server-side with the request ID, and the
// client receives a JSON body carrying the message plus any structured
// detail the error type exposes (header reports, capacity numbers).

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/crmkit/importer/internal/core"
	"github.com/crmkit/importer/internal/delim"
	"github.com/crmkit/importer/internal/logging"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// respondError logs err and writes the mapped JSON error response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, details := classifyError(err)

	logger := logging.FromContext(r.Context())
	logger.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error(), Details: details}); encErr != nil {
		logger.Error("json encode error", "error", encErr.Error())
	}
}

// classifyError picks the HTTP status for a service error and extracts any
// structured detail worth returning to the client.
func classifyError(err error) (int, interface{}) {
	var headerErr *core.HeaderError
	if errors.As(err, &headerErr) {
		return http.StatusBadRequest, headerErr.Report
	}

	var tooLarge *core.FileTooLargeError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, nil
	}

	var tooManyRows *core.TooManyRowsError
	if errors.As(err, &tooManyRows) {
		return http.StatusBadRequest, nil
	}

	var capacity *core.CapacityError
	if errors.As(err, &capacity) {
		return http.StatusConflict, map[string]int{
			"current":  capacity.Current,
			"incoming": capacity.Incoming,
			"limit":    capacity.Limit,
		}
	}

	switch {
	case errors.Is(err, core.ErrUnknownKind):
		return http.StatusNotFound, nil
	case errors.Is(err, core.ErrNoRecords):
		return http.StatusNotFound, nil
	case errors.Is(err, core.ErrImportInProgress):
		return http.StatusConflict, nil
	case errors.Is(err, delim.ErrInsufficientRows):
		return http.StatusBadRequest, nil
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, nil
	case errors.Is(err, context.Canceled):
		// Client went away mid-import
		return 499, nil
	}

	return http.StatusInternalServerError, nil
}
