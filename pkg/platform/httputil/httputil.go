// Package httputil holds the JSON response helpers shared by every handler.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "cinelog/pkg/domain-errors"
)

// ErrorResponse is the error envelope written for every failed request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into a status and envelope.
// Authentication failures collapse into one "unauthorized" response whose
// description never reveals which check failed. Internal errors carry no
// description at all.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)

	resp := ErrorResponse{Error: string(code)}
	switch {
	case dErrors.IsAuthFailure(code):
		resp.Error = string(dErrors.CodeUnauthorized)
		resp.ErrorDescription = unauthorizedDescription(code)
	case code == dErrors.CodeInternal:
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
	}
	WriteJSON(w, status, resp)
}

// StatusFor maps a domain code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeMissingToken, dErrors.CodeTokenMalformed, dErrors.CodeTokenSignatureInvalid,
		dErrors.CodeTokenExpired, dErrors.CodeUserNotFound, dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeOwnershipViolation:
		return http.StatusForbidden
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func unauthorizedDescription(code dErrors.Code) string {
	switch code {
	case dErrors.CodeMissingToken:
		return "Missing access token"
	case dErrors.CodeUnauthorized:
		return "Invalid credentials"
	default:
		return "Invalid token"
	}
}
