package embed

import (
	"fmt"
	"strconv"
	"strings"

	"watchsource/internal/domain"
)

// BuildSources maps (media type, external id, season, episode) onto one
// source per registered provider, in registry declaration order. It is total:
// for tv requests with a missing season or episode it substitutes 1 rather
// than failing, keeping the aggregator non-blocking.
func (r *Registry) BuildSources(mediaType domain.MediaType, externalID string, season, episode int) []domain.Source {
	if season < 1 {
		season = 1
	}
	if episode < 1 {
		episode = 1
	}

	replacer := strings.NewReplacer(
		placeholderID, externalID,
		placeholderSeason, strconv.Itoa(season),
		placeholderEpisode, strconv.Itoa(episode),
	)

	sources := make([]domain.Source, 0, len(r.providers))
	for _, provider := range r.providers {
		template := provider.MovieURLTemplate
		if mediaType == domain.MediaTypeTV {
			template = provider.TVURLTemplate
		}
		sources = append(sources, domain.Source{
			ID:           fmt.Sprintf("embed-%s-%s", provider.Key, externalID),
			OriginKind:   domain.OriginEmbed,
			Provider:     provider.Name,
			Title:        "Watch on " + provider.Name,
			Quality:      provider.Quality,
			PlaybackType: domain.PlaybackEmbed,
			Locator:      replacer.Replace(template),
		})
	}
	return sources
}
