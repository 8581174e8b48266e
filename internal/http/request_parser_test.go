package http

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOwnerFromRequest(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/summary", nil)
		r.Header.Set("X-Owner", "  alice  ")
		owner, err := ownerFromRequest(r)
		if err != nil {
			t.Fatalf("ownerFromRequest() error = %v", err)
		}
		if owner != "alice" {
			t.Errorf("owner = %q, want alice", owner)
		}
	})

	t.Run("missing", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/summary", nil)
		if _, err := ownerFromRequest(r); !errors.Is(err, errBadRequest) {
			t.Errorf("ownerFromRequest() error = %v, want errBadRequest", err)
		}
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"x"}`))
		var p payload
		if err := decodeJSON(r, &p); err != nil {
			t.Fatalf("decodeJSON() error = %v", err)
		}
		if p.Name != "x" {
			t.Errorf("Name = %q, want x", p.Name)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"x","extra":1}`))
		var p payload
		if err := decodeJSON(r, &p); !errors.Is(err, errBadRequest) {
			t.Errorf("decodeJSON() error = %v, want errBadRequest", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{`))
		var p payload
		if err := decodeJSON(r, &p); !errors.Is(err, errBadRequest) {
			t.Errorf("decodeJSON() error = %v, want errBadRequest", err)
		}
	})
}

func TestMonthFromQuery(t *testing.T) {
	t.Run("explicit", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/summary?month=2025-03", nil)
		key, err := monthFromQuery(r, "2001-01")
		if err != nil {
			t.Fatalf("monthFromQuery() error = %v", err)
		}
		if key != "2025-03" {
			t.Errorf("key = %q, want 2025-03", key)
		}
	})

	t.Run("fallback", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/summary", nil)
		key, err := monthFromQuery(r, "2001-01")
		if err != nil {
			t.Fatalf("monthFromQuery() error = %v", err)
		}
		if key != "2001-01" {
			t.Errorf("key = %q, want fallback 2001-01", key)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/summary?month=2025-13", nil)
		if _, err := monthFromQuery(r, "2001-01"); !errors.Is(err, errBadRequest) {
			t.Errorf("monthFromQuery() error = %v, want errBadRequest", err)
		}
	})
}

func TestLimitFromQuery(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 5},
		{"?limit=3", 3},
		{"?limit=0", 5},
		{"?limit=-2", 5},
		{"?limit=abc", 5},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/api/expenses/top-categories"+tt.query, nil)
		if got := limitFromQuery(r, 5); got != tt.want {
			t.Errorf("limitFromQuery(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2025-03-14")
	if err != nil {
		t.Fatalf("parseDate() error = %v", err)
	}
	if d.Year() != 2025 || d.Month() != 3 || d.Day() != 14 {
		t.Errorf("parseDate() = %v", d)
	}

	for _, bad := range []string{"", "14/03/2025", "2025-03", "2025-03-32"} {
		if _, err := parseDate(bad); !errors.Is(err, errBadRequest) {
			t.Errorf("parseDate(%q) error = %v, want errBadRequest", bad, err)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  plain  ", "plain"},
		{"with\x00control\x07chars", "withcontrolchars"},
		{"keeps\ttabs and\nnewlines", "keeps\ttabs and\nnewlines"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
