package torrentindex

import (
	"net/url"
	"strings"
)

// NormalizeInfoHash strips the urn prefix and lowercases a raw info hash.
func NormalizeInfoHash(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(strings.ToLower(value), "urn:btih:")
	return value
}

// BuildMagnet assembles a magnet URI from an info hash, a display name and a
// tracker list. The display name is urlencoded; trackers are appended as
// repeated tr parameters. An empty hash yields an empty URI.
func BuildMagnet(infoHash, name string, trackers []string) string {
	hash := NormalizeInfoHash(infoHash)
	if hash == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("magnet:?xt=urn:btih:")
	builder.WriteString(hash)
	if strings.TrimSpace(name) != "" {
		builder.WriteString("&dn=")
		builder.WriteString(url.QueryEscape(strings.TrimSpace(name)))
	}
	for _, tracker := range trackers {
		value := strings.TrimSpace(tracker)
		if value == "" {
			continue
		}
		builder.WriteString("&tr=")
		builder.WriteString(url.QueryEscape(value))
	}
	return builder.String()
}
