package imdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Client: srv.Client()})
}

func TestLookupParsesRatingAndPlot(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("tt") != "tt0133093" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		w.Write([]byte(`{"short":{"description":"Neo &amp; friends.","aggregateRating":{"ratingValue":8.7}}}`))
	})

	info, err := client.Lookup(context.Background(), "tt0133093")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if info.Rating != 8.7 {
		t.Errorf("rating: got %v, want 8.7", info.Rating)
	}
	if info.Plot != "Neo & friends." {
		t.Errorf("plot: got %q", info.Plot)
	}
}

func TestLookupMissingFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"short":{}}`))
	})

	info, err := client.Lookup(context.Background(), "tt1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if info.Rating != 0 || info.Plot != "" {
		t.Fatalf("expected empty info, got %+v", info)
	}
}

func TestLookupEmptyIDSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	if _, err := client.Lookup(context.Background(), "  "); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("calls: got %d, want 0", calls.Load())
	}
}

func TestLookupClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"Error":"not found"}`, http.StatusNotFound)
	})

	if _, err := client.Lookup(context.Background(), "tt404"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls: got %d, want 1", calls.Load())
	}
}
