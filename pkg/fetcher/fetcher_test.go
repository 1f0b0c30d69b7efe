package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "Mozilla/") {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("<html><body><p>hi</p></body></html>"))
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)

	body, err := f.GetHTML(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("GetHTML: %v", err)
	}
	if !strings.Contains(body, "<p>hi</p>") {
		t.Errorf("unexpected body %q", body)
	}

	if _, err := f.GetHTML(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected an error for a 404")
	}
}

func TestGetHTMLCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFetcher(0).GetHTML(ctx, srv.URL); err == nil {
		t.Error("expected an error for a canceled context")
	}
}
