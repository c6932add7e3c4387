package translator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestPostJSON_HeadersAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if got := r.Header.Get("X-Key"); got != "secret" {
			t.Errorf("expected custom header, got %q", got)
		}
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		w.Write([]byte(payload["q"]))
	}))
	defer server.Close()

	body, pe := postJSON(context.Background(), server.Client(), "p", server.URL, map[string]string{"q": "数据"}, map[string]string{"X-Key": "secret"})
	if pe != nil {
		t.Fatalf("unexpected error: %v", pe)
	}
	if string(body) != "数据" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestPostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		w.Write([]byte(r.PostForm.Get("q")))
	}))
	defer server.Close()

	body, pe := postForm(context.Background(), server.Client(), "p", server.URL, url.Values{"q": {"模型"}})
	if pe != nil {
		t.Fatalf("unexpected error: %v", pe)
	}
	if string(body) != "模型" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestSend_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusUnauthorized, KindAuthFailure},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusGatewayTimeout, KindTimeout},
		{http.StatusInternalServerError, KindTransient},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))
		_, pe := get(context.Background(), server.Client(), "p", server.URL)
		server.Close()
		if pe == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		if pe.Kind != tt.want || pe.Provider != "p" {
			t.Errorf("status %d: got %s/%s", tt.status, pe.Provider, pe.Kind)
		}
	}
}

func TestSend_DeadlineIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, pe := get(ctx, server.Client(), "p", server.URL)
	if pe == nil || !errors.Is(pe, &ProviderError{Kind: KindTimeout}) {
		t.Errorf("expected timeout, got %v", pe)
	}
}

func TestNewRequest_BadURL(t *testing.T) {
	if _, pe := get(context.Background(), http.DefaultClient, "p", "://bad"); pe == nil || pe.Kind != KindTransient {
		t.Errorf("expected transient build error, got %v", pe)
	}
}
