// Package embed synthesizes third-party iframe sources from a static
// provider registry. Building is pure: no I/O, no failure mode.
package embed

import (
	"fmt"
	"net/url"
	"strings"
)

// Placeholders recognized in provider URL templates.
const (
	placeholderID      = "{id}"
	placeholderSeason  = "{season}"
	placeholderEpisode = "{episode}"
)

// Provider describes one embed vendor. Adding a provider is a table edit.
type Provider struct {
	Key              string
	Name             string
	Quality          string
	MovieURLTemplate string
	TVURLTemplate    string
}

// Registry is an ordered provider table. Declaration order is a contract:
// built sources follow it, and clients rely on it for default selection.
type Registry struct {
	providers []Provider
}

// DefaultProviders is the built-in vendor table.
var DefaultProviders = []Provider{
	{
		Key:              "vidsrc",
		Name:             "VidSrc",
		Quality:          "1080p",
		MovieURLTemplate: "https://vidsrc.xyz/embed/movie/{id}",
		TVURLTemplate:    "https://vidsrc.xyz/embed/tv/{id}/{season}/{episode}",
	},
	{
		Key:              "vidsrcme",
		Name:             "VidSrc.me",
		Quality:          "1080p",
		MovieURLTemplate: "https://vidsrc.me/embed/movie?tmdb={id}",
		TVURLTemplate:    "https://vidsrc.me/embed/tv?tmdb={id}&season={season}&episode={episode}",
	},
	{
		Key:              "embedsu",
		Name:             "Embed.su",
		Quality:          "1080p",
		MovieURLTemplate: "https://embed.su/embed/movie/{id}",
		TVURLTemplate:    "https://embed.su/embed/tv/{id}/{season}/{episode}",
	},
	{
		Key:              "smashystream",
		Name:             "SmashyStream",
		Quality:          "720p",
		MovieURLTemplate: "https://player.smashy.stream/movie/{id}",
		TVURLTemplate:    "https://player.smashy.stream/tv/{id}?s={season}&e={episode}",
	},
	{
		Key:              "multiembed",
		Name:             "MultiEmbed",
		Quality:          "720p",
		MovieURLTemplate: "https://multiembed.mov/?video_id={id}&tmdb=1",
		TVURLTemplate:    "https://multiembed.mov/?video_id={id}&tmdb=1&s={season}&e={episode}",
	},
	{
		Key:              "2embed",
		Name:             "2Embed",
		Quality:          "720p",
		MovieURLTemplate: "https://www.2embed.cc/embed/{id}",
		TVURLTemplate:    "https://www.2embed.cc/embedtv/{id}&s={season}&e={episode}",
	},
}

// NewRegistry validates the provider table and returns it in declaration
// order. Validation runs once at startup so malformed templates cannot reach
// request handling.
func NewRegistry(providers []Provider) (*Registry, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("embed registry requires at least one provider")
	}
	seen := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		key := strings.TrimSpace(p.Key)
		if key == "" {
			return nil, fmt.Errorf("embed provider %q: key is required", p.Name)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("embed provider %q: duplicate key", key)
		}
		seen[key] = struct{}{}
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("embed provider %q: name is required", key)
		}
		if err := validateTemplate(p.MovieURLTemplate, placeholderID); err != nil {
			return nil, fmt.Errorf("embed provider %q: movie template: %w", key, err)
		}
		if err := validateTemplate(p.TVURLTemplate, placeholderID, placeholderSeason, placeholderEpisode); err != nil {
			return nil, fmt.Errorf("embed provider %q: tv template: %w", key, err)
		}
	}
	return &Registry{providers: append([]Provider(nil), providers...)}, nil
}

// MustRegistry panics on an invalid table. Intended for the built-in table.
func MustRegistry(providers []Provider) *Registry {
	registry, err := NewRegistry(providers)
	if err != nil {
		panic(err)
	}
	return registry
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.providers)
}

func validateTemplate(template string, required ...string) error {
	value := strings.TrimSpace(template)
	if value == "" {
		return fmt.Errorf("template is required")
	}
	for _, placeholder := range required {
		if !strings.Contains(value, placeholder) {
			return fmt.Errorf("template is missing %s", placeholder)
		}
	}
	probe := strings.NewReplacer(
		placeholderID, "1",
		placeholderSeason, "1",
		placeholderEpisode, "1",
	).Replace(value)
	parsed, err := url.Parse(probe)
	if err != nil {
		return fmt.Errorf("template does not parse as a URL: %w", err)
	}
	if parsed.Scheme != "https" || parsed.Host == "" {
		return fmt.Errorf("template must be an absolute https URL")
	}
	return nil
}
