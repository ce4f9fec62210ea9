// Package http exposes the ledger as a JSON API.
//
// This file holds the request parsing helpers shared by the handlers: JSON
// bodies, path ids and query parameters. Parse failures are returned as
// typed errors so writeError can map them to a status code.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"moneywise/internal/core"
)

const maxBodyBytes = 1 << 20

// errMalformed marks a body that is not the JSON the handler expects.
// It maps to 400 rather than 422.
type errMalformed struct{ err error }

func (e errMalformed) Error() string { return "malformed request body: " + e.err.Error() }
func (e errMalformed) Unwrap() error { return e.err }

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// decodeJSON reads one JSON object into dst, rejecting unknown fields and
// trailing data. Field-level validation errors raised by the core types
// (amounts, dates) are passed through unchanged.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var typed *core.Error
		if errors.As(err, &typed) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return errMalformed{errors.New("empty body")}
		}
		return errMalformed{err}
	}
	if dec.More() {
		return errMalformed{errors.New("unexpected data after JSON object")}
	}
	return nil
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NotFound("", "no resource with id %q", raw)
	}
	return id, nil
}

// queryInt64 reads an optional positive integer query parameter; absent
// means 0.
func queryInt64(query url.Values, key string) (int64, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, core.Validation("", "%s must be a positive integer", key)
	}
	return n, nil
}

func queryInt(query url.Values, key string) (int, bool, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, core.Validation("", "%s must be an integer", key)
	}
	return n, true, nil
}

// ParseMonthParams extracts year and month from the query, defaulting to the
// current month of now. Values that are present but not integers are
// rejected; range checks are left to the budget service.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if y, ok, err := queryInt(query, "year"); err != nil {
		return MonthParams{}, err
	} else if ok {
		params.Year = y
	}
	if m, ok, err := queryInt(query, "month"); err != nil {
		return MonthParams{}, err
	} else if ok {
		params.Month = m
	}
	return params, nil
}

// ParseListFilter reads the optional year/month filter of a budget listing.
// Missing values are 0, meaning any.
func ParseListFilter(query url.Values) (MonthParams, error) {
	var params MonthParams
	var err error
	if params.Year, _, err = queryInt(query, "year"); err != nil {
		return MonthParams{}, err
	}
	if params.Month, _, err = queryInt(query, "month"); err != nil {
		return MonthParams{}, err
	}
	return params, nil
}
