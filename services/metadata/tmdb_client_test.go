package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestTMDBClient_V4KeyUsesBearer(t *testing.T) {
	var (
		gotAuth  atomic.Value
		gotQuery atomic.Value
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		gotQuery.Store(r.URL.RawQuery)
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer srv.Close()

	client := newTMDBClient("eyJhbGciOi.token", srv.URL, "en-US", nil, 0)
	if _, err := client.searchMovies(context.Background(), "x", 1); err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if gotAuth.Load().(string) != "Bearer eyJhbGciOi.token" {
		t.Fatalf("expected bearer header, got %q", gotAuth.Load())
	}
	if strings.Contains(gotQuery.Load().(string), "api_key") {
		t.Fatalf("v4 key must not be sent as api_key: %s", gotQuery.Load())
	}
}

func TestTMDBClient_MissingKey(t *testing.T) {
	client := newTMDBClient("", "http://127.0.0.1:0", "en-US", nil, 0)
	_, err := client.searchMovies(context.Background(), "x", 1)
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusInternalServerError {
		t.Fatalf("expected UpstreamError 500, got %v", err)
	}
}
