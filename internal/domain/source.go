package domain

import "errors"

// MediaType identifies the kind of media a source plays.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// ParseMediaType validates a raw path segment into a MediaType.
func ParseMediaType(raw string) (MediaType, error) {
	switch MediaType(raw) {
	case MediaTypeMovie, MediaTypeTV:
		return MediaType(raw), nil
	default:
		return "", errors.New("media type must be movie or tv")
	}
}

// OriginKind identifies which producer tier a source came from.
type OriginKind string

const (
	OriginCurated OriginKind = "curated"
	OriginEmbed   OriginKind = "embed"
	OriginTorrent OriginKind = "torrent"
)

// PlaybackType determines which player branch handles a source. The
// aggregator assigns it authoritatively at construction time; clients
// dispatch on it and never inspect locators.
type PlaybackType string

const (
	PlaybackEmbed           PlaybackType = "embed"
	PlaybackAdaptiveStream  PlaybackType = "adaptive-stream"
	PlaybackExternalHandoff PlaybackType = "external-handoff"
)

func ValidPlaybackType(t PlaybackType) bool {
	switch t {
	case PlaybackEmbed, PlaybackAdaptiveStream, PlaybackExternalHandoff:
		return true
	default:
		return false
	}
}

// Source is the unified playable-source representation produced by the
// aggregator. IDs are unique within one aggregation response; for embed and
// torrent kinds they are synthesized per request and carry no cross-response
// stability guarantee.
type Source struct {
	ID           string       `json:"id"`
	OriginKind   OriginKind   `json:"originKind"`
	Provider     string       `json:"provider"`
	Title        string       `json:"title"`
	Quality      string       `json:"quality,omitempty"`
	PlaybackType PlaybackType `json:"playbackType"`
	Locator      string       `json:"url"`
	Region       []string     `json:"region,omitempty"`
	Status       SourceStatus `json:"status,omitempty"`

	// Torrent-kind ranking hints, informational only.
	SizeHint string `json:"size,omitempty"`
	SeedHint int    `json:"seeds,omitempty"`
	PeerHint int    `json:"peers,omitempty"`
}

// AllowedInRegion reports whether a source may be served to a caller in the
// given region. An empty allowlist means unrestricted; an empty caller region
// is treated as caller-unrestricted.
func (s Source) AllowedInRegion(region string) bool {
	if len(s.Region) == 0 || region == "" {
		return true
	}
	for _, allowed := range s.Region {
		if allowed == region {
			return true
		}
	}
	return false
}
