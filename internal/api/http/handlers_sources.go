package apihttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"watchsource/internal/aggregate"
	"watchsource/internal/domain"
)

func (s *Server) handleSourcesRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/sources" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.handleCreateSource(w, r)
}

// handleSourcesSubtree dispatches everything under /sources/ by shape:
//
//	GET   /sources/reports/open        moderation queue (operator)
//	POST  /sources/{id}/reports        file a report (public)
//	GET   /sources/{mediaType}/{id}    resolve the composite source list
//	PATCH /sources/{id}                update a curated source (operator)
func (s *Server) handleSourcesSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/sources/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 2 && parts[0] == "reports" && parts[1] == "open":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.handleListOpenReports(w, r)
	case len(parts) == 2 && parts[1] == "reports":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.handleFileReport(w, r, parts[0])
	case len(parts) == 2:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.handleResolve(w, r, parts[0], parts[1])
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.handleUpdateSource(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request, rawMediaType, mediaID string) {
	mediaType, err := domain.ParseMediaType(rawMediaType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(mediaID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "media id is required")
		return
	}
	season, err := parseNonNegativeInt(r, "season", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid season")
		return
	}
	episode, err := parseNonNegativeInt(r, "episode", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid episode")
		return
	}

	result, err := s.aggregator.Resolve(r.Context(), aggregate.Request{
		MediaType: mediaType,
		MediaID:   mediaID,
		Region:    strings.TrimSpace(r.URL.Query().Get("region")),
		Season:    season,
		Episode:   episode,
		IMDBID:    strings.TrimSpace(r.URL.Query().Get("imdbId")),
	})
	if err != nil {
		// Only request-shape problems surface here; producer failures are
		// already folded into the partial flag.
		switch {
		case errors.Is(err, aggregate.ErrInvalidMediaID), errors.Is(err, domain.ErrValidation):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			s.logger.Error("resolve failed",
				slog.String("mediaType", string(mediaType)),
				slog.String("mediaId", mediaID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "internal_error", "resolve failed")
		}
		return
	}

	if result.Partial {
		s.logger.Warn("resolve degraded",
			slog.String("mediaType", string(mediaType)),
			slog.String("mediaId", mediaID),
			slog.Any("tiers", result.Tiers),
		)
	}
	writeJSON(w, http.StatusOK, result)
}

type createSourceRequest struct {
	MediaID         string   `json:"mediaId"`
	MediaType       string   `json:"mediaType"`
	Title           string   `json:"title"`
	Provider        string   `json:"provider"`
	Quality         string   `json:"quality"`
	PlaybackType    string   `json:"playbackType"`
	URL             string   `json:"url"`
	LicenseType     string   `json:"licenseType"`
	LicenseProofURL string   `json:"licenseProofUrl"`
	RegionAllowlist []string `json:"regionAllowlist"`
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireOperator(w, r)
	if !ok {
		return
	}
	if s.sources == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "source store is not configured")
		return
	}

	var body createSourceRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	record := domain.CuratedSourceRecord{
		MediaID:         strings.TrimSpace(body.MediaID),
		MediaType:       domain.MediaType(strings.TrimSpace(body.MediaType)),
		Title:           strings.TrimSpace(body.Title),
		Provider:        strings.TrimSpace(body.Provider),
		Quality:         strings.TrimSpace(body.Quality),
		PlaybackType:    domain.PlaybackType(strings.TrimSpace(body.PlaybackType)),
		URL:             strings.TrimSpace(body.URL),
		LicenseType:     domain.LicenseType(strings.TrimSpace(body.LicenseType)),
		LicenseProofURL: strings.TrimSpace(body.LicenseProofURL),
		RegionAllowlist: body.RegionAllowlist,
		CreatedBy:       user.ID,
	}
	if record.PlaybackType == "" {
		record.PlaybackType = defaultPlaybackType(record.URL)
	}

	created, err := s.sources.Create(r.Context(), record)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.logger.Info("curated source created",
		slog.String("sourceId", created.ID),
		slog.String("mediaId", created.MediaID),
		slog.String("operator", user.ID),
	)
	writeJSON(w, http.StatusCreated, created.Unified())
}

type updateSourceRequest struct {
	Title           *string   `json:"title"`
	Provider        *string   `json:"provider"`
	Quality         *string   `json:"quality"`
	PlaybackType    *string   `json:"playbackType"`
	URL             *string   `json:"url"`
	LicenseType     *string   `json:"licenseType"`
	LicenseProofURL *string   `json:"licenseProofUrl"`
	RegionAllowlist *[]string `json:"regionAllowlist"`
	Status          *string   `json:"status"`
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request, sourceID string) {
	user, ok := s.requireOperator(w, r)
	if !ok {
		return
	}
	if s.sources == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "source store is not configured")
		return
	}

	var body updateSourceRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	update := domain.CuratedSourceUpdate{
		Title:           body.Title,
		Provider:        body.Provider,
		Quality:         body.Quality,
		URL:             body.URL,
		LicenseProofURL: body.LicenseProofURL,
		RegionAllowlist: body.RegionAllowlist,
	}
	if body.PlaybackType != nil {
		playbackType := domain.PlaybackType(*body.PlaybackType)
		update.PlaybackType = &playbackType
	}
	if body.LicenseType != nil {
		licenseType := domain.LicenseType(*body.LicenseType)
		update.LicenseType = &licenseType
	}
	if body.Status != nil {
		status := domain.SourceStatus(*body.Status)
		update.Status = &status
	}

	updated, err := s.sources.Update(r.Context(), sourceID, update)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.logger.Info("curated source updated",
		slog.String("sourceId", updated.ID),
		slog.String("operator", user.ID),
	)
	writeJSON(w, http.StatusOK, updated.Unified())
}

// defaultPlaybackType assigns the playback mechanism when the operator leaves
// it out. Classification happens here, at construction, so clients dispatch
// on the enum without inspecting locators.
func defaultPlaybackType(url string) domain.PlaybackType {
	lowered := strings.ToLower(url)
	if idx := strings.IndexAny(lowered, "?#"); idx >= 0 {
		lowered = lowered[:idx]
	}
	if strings.HasSuffix(lowered, ".m3u8") || strings.HasSuffix(lowered, ".mpd") {
		return domain.PlaybackAdaptiveStream
	}
	return domain.PlaybackEmbed
}
