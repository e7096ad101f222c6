package library

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestPathInt64ParsesURLParam(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "42")
	r := httptest.NewRequest(http.MethodGet, "/item/42", nil)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	id, ok := pathInt64(w, r, "id")
	if !ok || id != 42 {
		t.Fatalf("pathInt64 = (%d, %v), want (42, true)", id, ok)
	}
}

func TestPathInt64RejectsNonNumeric(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "not-a-number")
	r := httptest.NewRequest(http.MethodGet, "/item/not-a-number", nil)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	if _, ok := pathInt64(w, r, "id"); ok {
		t.Fatal("pathInt64 should reject a non-numeric id")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
