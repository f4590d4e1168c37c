// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors the domain layers return across the HTTP boundary.
// Handlers wrap them with context (`fmt.Errorf("%w: ...")`) and
// RespondError maps them back to a status.
var (
	ErrNotFound     = errors.New("httpx: not found")
	ErrDuplicate    = errors.New("httpx: duplicate")
	ErrValidation   = errors.New("httpx: validation failed")
	ErrForbidden    = errors.New("httpx: forbidden")
	ErrUnauthorized = errors.New("httpx: unauthorized")
)

type errorMapping struct {
	sentinel error
	status   int
	title    string
}

var errorMappings = []errorMapping{
	{ErrNotFound, http.StatusNotFound, "Not Found"},
	{ErrDuplicate, http.StatusConflict, "Duplicate"},
	{ErrValidation, http.StatusBadRequest, "Validation Failed"},
	{ErrForbidden, http.StatusForbidden, "Forbidden"},
	{ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
}

// RespondError renders a domain error as an RFC 7807 problem. Unknown
// errors become an opaque 500; their detail never reaches the client.
func RespondError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			Problem(w, m.status, m.title, err.Error())
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
