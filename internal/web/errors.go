package web

// errors.go turns handler errors into JSON responses.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls s.respondError(w, r, err)
//  3. The status code is chosen from the error's sentinel (statusFor)
//  4. The error is mapped via core.MapError to a user-friendly message
//  5. The technical error is logged with the request id; only the mapped
//     message reaches the client

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/creature-etl/internal/core"
	"github.com/JonMunkholm/creature-etl/internal/logging"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusRules are checked in order with errors.Is.
var statusRules = []struct {
	err    error
	status int
}{
	{core.ErrCreatureNotFound, http.StatusNotFound},
	{core.ErrNotFound, http.StatusNotFound},
	{core.ErrDuplicateName, http.StatusConflict},
	{core.ErrInvalidCreature, http.StatusBadRequest},
	{core.ErrInvalidParam, http.StatusBadRequest},
	{core.ErrUnknownSink, http.StatusBadRequest},
	{core.ErrParse, http.StatusBadRequest},
	{core.ErrIntegrity, http.StatusBadRequest},
	{core.ErrBusy, http.StatusTooManyRequests},
	{core.ErrNoDatabase, http.StatusServiceUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// statusFor returns the HTTP status for err.
func statusFor(err error) int {
	for _, rule := range statusRules {
		if errors.Is(err, rule.err) {
			return rule.status
		}
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes its user-facing form.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// badParam wraps core.ErrInvalidParam with the parameter name.
func badParam(name, value string) error {
	return &paramError{name: name, value: value}
}

type paramError struct {
	name, value string
}

func (e *paramError) Error() string {
	return "invalid " + e.name + ": " + e.value
}

func (e *paramError) Unwrap() error {
	return core.ErrInvalidParam
}
