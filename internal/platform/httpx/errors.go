// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/agristock/agristock/internal/shared"
)

// ErrUnauthorized signals a request without an authenticated viewer.
var ErrUnauthorized = errors.New("unauthorized")

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, r, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, r, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, r, http.StatusUnauthorized, "Unauthorized", "")
	default:
		Problem(w, r, http.StatusInternalServerError, "Internal Error", "")
	}
}
