// This file implements utilities for parsing and validating HTTP request
// data: owner extraction, JSON body decoding with a size cap, and the
// common month/id parameter patterns.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"moneta/internal/core"
)

// errBadRequest marks malformed requests (as opposed to well-formed
// requests carrying invalid domain values, which surface core sentinels).
var errBadRequest = errors.New("bad request")

const maxBodyBytes = 1 << 20 // 1MB

// ownerHeader carries the caller identity. The core does not authenticate;
// the surrounding deployment is expected to terminate auth and inject this.
const ownerHeader = "X-Owner"

func ownerFromRequest(r *http.Request) (string, error) {
	owner := strings.TrimSpace(r.Header.Get(ownerHeader))
	if owner == "" {
		return "", fmt.Errorf("%w: missing %s header", errBadRequest, ownerHeader)
	}
	return owner, nil
}

// decodeJSON decodes the request body into v, rejecting unknown fields and
// oversized bodies.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// monthFromQuery reads the month query parameter ("YYYY-MM"). When absent,
// fallback (usually the clock's current month) is returned.
func monthFromQuery(r *http.Request, fallback core.MonthKey) (core.MonthKey, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		return fallback, nil
	}
	key := core.MonthKey(v)
	if err := key.Validate(); err != nil {
		return "", fmt.Errorf("%w: invalid month %q", errBadRequest, v)
	}
	return key, nil
}

func limitFromQuery(r *http.Request, fallback int) int {
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func idFromPath(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, r.PathValue("id"))
	}
	return id, nil
}

// parseDate parses a date string in YYYY-MM-DD format.
func parseDate(dateStr string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", errBadRequest, dateStr)
	}
	return t, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
