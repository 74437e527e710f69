package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ScopeMiddleware wraps a handler so that it runs with a database scope.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ParsePageParams reads the limit and page query parameters.
// limit defaults to DefaultPageSize, non-positive or unparseable values fall
// back to it, and values above MaxPageSize are clamped. page defaults to 0 and
// negative or unparseable values become 0.
func ParsePageParams(r *http.Request) (limit, page int) {
	q := r.URL.Query()

	limit = DefaultPageSize
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = min(v, MaxPageSize)
	}

	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		page = v
	}

	return limit, page
}

// optionalQuery returns a pointer to the query value, or nil when it is absent.
func optionalQuery(r *http.Request, key string) *string {
	q := r.URL.Query()
	if !q.Has(key) {
		return nil
	}
	v := q.Get(key)
	return &v
}

// decodeBody decodes the JSON request body into dst. On failure it writes a
// 400 response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
