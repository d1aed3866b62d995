package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/and161185/docportal/internal/errs"
)

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Message: msg})
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// writeServiceError maps a service error to its HTTP status. Unknown errors
// are store failures and carry the underlying message.
func writeServiceError(w http.ResponseWriter, err error, storeMsg string) {
	switch {
	case errors.Is(err, errs.ErrRevoked):
		writeMessage(w, http.StatusForbidden, "Token has been invalidated")
	case errors.Is(err, errs.ErrUnauthorized):
		writeMessage(w, http.StatusForbidden, "Token expired or invalid")
	case errors.Is(err, errs.ErrUnauthorizedRole):
		writeMessage(w, http.StatusForbidden, "Unauthorized role")
	case errors.Is(err, errs.ErrAccessDenied):
		writeMessage(w, http.StatusForbidden, "You don't have access to this document")
	case errors.Is(err, errs.ErrInvalidOrExpired):
		writeMessage(w, http.StatusForbidden, "Invalid or expired PDF token")
	case errors.Is(err, errs.ErrNoLongerValid):
		writeMessage(w, http.StatusForbidden, "PDF token no longer valid")
	case errors.Is(err, errs.ErrNotFoundOrDenied):
		writeMessage(w, http.StatusNotFound, "PDF not found or access denied")
	case errors.Is(err, errs.ErrRateLimited):
		writeMessage(w, http.StatusTooManyRequests, "Too many attempts, try again later")
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: storeMsg, Error: err.Error()})
	}
}

// extractBearerToken reads "Authorization: Bearer <token>".
func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}

// contentDisposition builds an inline disposition with a sanitised filename.
func contentDisposition(name string) string {
	clean := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '"' || r == '\\' {
			return -1
		}
		return r
	}, name)
	return `inline; filename="` + clean + `"`
}
