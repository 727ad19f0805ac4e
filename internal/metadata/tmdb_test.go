package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"watchsource/internal/domain"
)

func TestIMDBIDResolution(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/27205/external_ids" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("missing api key")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"imdb_id":"tt1375666"}`))
	}))
	defer upstream.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: upstream.URL})
	id, err := client.IMDBID(context.Background(), domain.MediaTypeMovie, "27205")
	if err != nil {
		t.Fatalf("IMDBID: %v", err)
	}
	if id != "tt1375666" {
		t.Fatalf("id = %q", id)
	}
}

func TestIMDBIDNotFoundIsNotAnError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: upstream.URL})
	id, err := client.IMDBID(context.Background(), domain.MediaTypeMovie, "0")
	if err != nil {
		t.Fatalf("IMDBID: %v", err)
	}
	if id != "" {
		t.Fatalf("id = %q, want empty", id)
	}
}

func TestIMDBIDUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: upstream.URL})
	if _, err := client.IMDBID(context.Background(), domain.MediaTypeMovie, "27205"); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}

func TestDisabledWithoutAPIKey(t *testing.T) {
	client := NewClient(Config{})
	if client.Enabled() {
		t.Fatal("client without api key must report disabled")
	}
}
