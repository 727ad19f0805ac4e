package embed

import (
	"reflect"
	"strings"
	"testing"

	"watchsource/internal/domain"
)

func TestBuildSourcesMovie(t *testing.T) {
	registry := MustRegistry(DefaultProviders)

	sources := registry.BuildSources(domain.MediaTypeMovie, "27205", 0, 0)
	if len(sources) != registry.Len() {
		t.Fatalf("got %d sources, want registry size %d", len(sources), registry.Len())
	}

	for i, source := range sources {
		if source.Provider != DefaultProviders[i].Name {
			t.Errorf("position %d: got provider %q, want %q (declaration order)", i, source.Provider, DefaultProviders[i].Name)
		}
		if source.OriginKind != domain.OriginEmbed {
			t.Errorf("source %s: origin %q", source.ID, source.OriginKind)
		}
		if source.PlaybackType != domain.PlaybackEmbed {
			t.Errorf("source %s: playbackType %q", source.ID, source.PlaybackType)
		}
		if !strings.Contains(source.Locator, "27205") {
			t.Errorf("source %s: locator %q does not carry the external id", source.ID, source.Locator)
		}
		if strings.Contains(source.Locator, "{") {
			t.Errorf("source %s: locator %q has an unreplaced placeholder", source.ID, source.Locator)
		}
	}
}

func TestBuildSourcesDeterministic(t *testing.T) {
	registry := MustRegistry(DefaultProviders)

	first := registry.BuildSources(domain.MediaTypeTV, "1399", 2, 5)
	second := registry.BuildSources(domain.MediaTypeTV, "1399", 2, 5)
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !reflect.DeepEqual(first[i], second[i]) {
			t.Errorf("position %d differs between identical calls", i)
		}
	}
}

func TestBuildSourcesTVDefaults(t *testing.T) {
	registry := MustRegistry([]Provider{{
		Key:              "probe",
		Name:             "Probe",
		Quality:          "1080p",
		MovieURLTemplate: "https://probe.example/movie/{id}",
		TVURLTemplate:    "https://probe.example/tv/{id}/{season}/{episode}",
	}})

	sources := registry.BuildSources(domain.MediaTypeTV, "1399", 0, 0)
	if got := sources[0].Locator; got != "https://probe.example/tv/1399/1/1" {
		t.Fatalf("missing season/episode must default to 1, got %q", got)
	}

	sources = registry.BuildSources(domain.MediaTypeMovie, "1399", 4, 2)
	if got := sources[0].Locator; got != "https://probe.example/movie/1399" {
		t.Fatalf("movie build must ignore season/episode, got %q", got)
	}
}

func TestNewRegistryRejectsBadTemplates(t *testing.T) {
	cases := []struct {
		name     string
		provider Provider
	}{
		{"missing id placeholder", Provider{Key: "a", Name: "A", MovieURLTemplate: "https://a.example/movie", TVURLTemplate: "https://a.example/tv/{id}/{season}/{episode}"}},
		{"missing episode placeholder", Provider{Key: "a", Name: "A", MovieURLTemplate: "https://a.example/movie/{id}", TVURLTemplate: "https://a.example/tv/{id}/{season}"}},
		{"not https", Provider{Key: "a", Name: "A", MovieURLTemplate: "ftp://a.example/{id}", TVURLTemplate: "https://a.example/tv/{id}/{season}/{episode}"}},
		{"empty key", Provider{Name: "A", MovieURLTemplate: "https://a.example/movie/{id}", TVURLTemplate: "https://a.example/tv/{id}/{season}/{episode}"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRegistry([]Provider{tc.provider}); err == nil {
				t.Fatal("invalid provider accepted")
			}
		})
	}

	duplicate := []Provider{
		{Key: "a", Name: "A", MovieURLTemplate: "https://a.example/movie/{id}", TVURLTemplate: "https://a.example/tv/{id}/{season}/{episode}"},
		{Key: "a", Name: "B", MovieURLTemplate: "https://b.example/movie/{id}", TVURLTemplate: "https://b.example/tv/{id}/{season}/{episode}"},
	}
	if _, err := NewRegistry(duplicate); err == nil {
		t.Fatal("duplicate key accepted")
	}
}

func TestDefaultProvidersValid(t *testing.T) {
	if _, err := NewRegistry(DefaultProviders); err != nil {
		t.Fatalf("built-in table invalid: %v", err)
	}
}
