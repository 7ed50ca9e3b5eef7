package web

// handlers_common.go holds request parsing helpers shared by the handlers.

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/creature-etl/internal/core"
)

// Page size limits for list endpoints.
const (
	DefaultPerPage = 50
	MaxPerPage     = 500
)

// MaxBodySize bounds JSON request bodies (bulk create included).
const MaxBodySize = 10 << 20

// intQuery parses an optional integer query parameter.
func intQuery(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, badParam(name, v)
	}
	return i, nil
}

// optInt64Query parses an optional int64 query parameter; absent is nil.
func optInt64Query(r *http.Request, name string) (*int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, badParam(name, v)
	}
	return &i, nil
}

// boolQuery parses an optional boolean query parameter.
func boolQuery(r *http.Request, name string) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return false, nil
	}
	b, ok := core.ParseBool(v)
	if !ok {
		return false, badParam(name, v)
	}
	return b, nil
}

// int64Param parses a required integer path parameter.
func int64Param(r *http.Request, name string) (int64, error) {
	v := chi.URLParam(r, name)
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, badParam(name, v)
	}
	return i, nil
}

// pagination reads page and per_page. page is 1-based.
func pagination(r *http.Request) (page, perPage int, err error) {
	if page, err = intQuery(r, "page", 1); err != nil {
		return 0, 0, err
	}
	if perPage, err = intQuery(r, "per_page", DefaultPerPage); err != nil {
		return 0, 0, err
	}
	if page < 1 {
		return 0, 0, badParam("page", strconv.Itoa(page))
	}
	if perPage < 1 || perPage > MaxPerPage {
		return 0, 0, badParam("per_page", strconv.Itoa(perPage))
	}
	return page, perPage, nil
}

// decodeJSON reads a JSON body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: empty request body", core.ErrInvalidParam)
		}
		return fmt.Errorf("%w: request body: %v", core.ErrInvalidParam, err)
	}
	return nil
}
