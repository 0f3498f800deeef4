package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientNotConfigured(t *testing.T) {
	c := New("", "", 1000)
	_, err := c.Enrich(context.Background(), "https://example.com", "scan")
	var te *Error
	if !errorsAs(err, &te) || te.Kind != KindNotConfigured {
		t.Fatalf("expected tools-not-configured, got %v", err)
	}
}

func TestClientEnrichHTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limited upstream"})
	}))
	defer server.Close()

	c := New(server.URL, "key", 1000)
	_, err := c.Enrich(context.Background(), "https://example.com", "scan")
	var te *Error
	if !errorsAs(err, &te) || te.Kind != "tools-http-429" {
		t.Fatalf("expected tools-http-429, got %v", err)
	}
	if te.Message != "rate limited upstream" {
		t.Fatalf("expected upstream error message surfaced, got %q", te.Message)
	}
}

func TestClientEnrichEmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	c := New(server.URL, "key", 1000)
	_, err := c.Enrich(context.Background(), "https://example.com", "scan")
	var te *Error
	if !errorsAs(err, &te) || te.Kind != KindEnrichEmpty {
		t.Fatalf("expected tools-enrich-empty, got %v", err)
	}
}

func TestClientSearchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("expected bearer auth header, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer server.Close()

	c := New(server.URL, "key", 1000)
	data, err := c.Search(context.Background(), "chat tools")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := data["results"]; !ok {
		t.Fatalf("expected results key in response, got %v", data)
	}
}

func errorsAs(err error, target **Error) bool {
	te, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = te
	return true
}
