package watch

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQueryLimit(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/history?limit=5", nil)
	if got := queryLimit(r, defaultLimit); got != 5 {
		t.Fatalf("got %d, want 5", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/history", nil)
	if got := queryLimit(r, defaultLimit); got != defaultLimit {
		t.Fatalf("got %d, want default %d", got, defaultLimit)
	}

	r = httptest.NewRequest(http.MethodGet, "/history?limit=-3", nil)
	if got := queryLimit(r, defaultLimit); got != defaultLimit {
		t.Fatalf("negative limit should fall back, got %d", got)
	}
}
