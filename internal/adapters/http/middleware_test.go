package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDMiddlewareGeneratesAndPropagates(t *testing.T) {
	var seen string
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if seen == "" {
		t.Fatalf("expected generated request id")
	}
	if got := rec.Header().Get(requestIDHeader); got != seen {
		t.Fatalf("header %q, context %q", got, seen)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	handler.ServeHTTP(rec, req)
	if seen != "req-42" {
		t.Fatalf("incoming request id not honored, got %q", seen)
	}
}

func TestIsAuthorizedBearerHeader(t *testing.T) {
	cases := []struct {
		header string
		want   bool
	}{
		{"Bearer secreto", true},
		{"  Bearer secreto  ", true},
		{"Bearer otro", false},
		{"secreto", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isAuthorizedBearerHeader(tc.header, "secreto"); got != tc.want {
			t.Fatalf("isAuthorizedBearerHeader(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}
