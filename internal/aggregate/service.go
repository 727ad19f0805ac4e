// Package aggregate merges the three source producers into one composite
// answer per media item. Producer failures are contained here: the caller
// always gets whatever could be gathered plus a partial flag.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"watchsource/internal/domain"
	"watchsource/internal/metrics"
)

const (
	TierCurated = "curated"
	TierEmbed   = "embed"
	TierTorrent = "torrent"
)

var ErrInvalidMediaID = errors.New("media id is required")

// CuratedLister is the curated-store surface the aggregator reads from.
type CuratedLister interface {
	ListActiveByMedia(ctx context.Context, mediaType domain.MediaType, mediaID string) ([]domain.CuratedSourceRecord, error)
}

// EmbedBuilder produces templated embed sources. Pure, never fails.
type EmbedBuilder interface {
	BuildSources(mediaType domain.MediaType, externalID string, season, episode int) []domain.Source
}

// TorrentLookup queries the external torrent index. Errors are advisory;
// the source list is usable regardless.
type TorrentLookup interface {
	Lookup(ctx context.Context, imdbID string) ([]domain.Source, error)
}

// IMDBResolver maps an internal media id to an IMDB id when the caller
// did not supply one.
type IMDBResolver interface {
	Enabled() bool
	IMDBID(ctx context.Context, mediaType domain.MediaType, mediaID string) (string, error)
}

type Request struct {
	MediaType domain.MediaType
	MediaID   string
	Region    string
	Season    int
	Episode   int
	IMDBID    string
}

// TierStatus reports how one producer fared during a resolve.
type TierStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Count int    `json:"count"`
}

// Result keeps the three tiers separate so callers can label provenance.
// Tier order and intra-tier order are stable; nothing is re-sorted by quality.
type Result struct {
	Curated   []domain.Source `json:"dbSources"`
	Embed     []domain.Source `json:"embedSources"`
	Torrent   []domain.Source `json:"torrentSources"`
	Partial   bool            `json:"partial"`
	Tiers     []TierStatus    `json:"tiers"`
	ElapsedMS int64           `json:"elapsedMs"`
}

type Service struct {
	curated  CuratedLister
	embeds   EmbedBuilder
	torrents TorrentLookup
	resolver IMDBResolver
	logger   *slog.Logger
}

type ServiceOption func(*Service)

func WithIMDBResolver(resolver IMDBResolver) ServiceOption {
	return func(s *Service) {
		s.resolver = resolver
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(curated CuratedLister, embeds EmbedBuilder, torrents TorrentLookup, opts ...ServiceOption) *Service {
	svc := &Service{
		curated:  curated,
		embeds:   embeds,
		torrents: torrents,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Resolve fans out to the curated store, the embed registry and the torrent
// index concurrently and waits for all three to settle. Only request-shape
// problems return an error; producer failures degrade the matching tier and
// set Partial.
func (s *Service) Resolve(ctx context.Context, req Request) (Result, error) {
	req.MediaID = strings.TrimSpace(req.MediaID)
	req.IMDBID = strings.TrimSpace(req.IMDBID)
	if req.MediaID == "" {
		return Result{}, ErrInvalidMediaID
	}
	if req.MediaType != domain.MediaTypeMovie && req.MediaType != domain.MediaTypeTV {
		return Result{}, domain.ErrValidation
	}

	metrics.ResolveRequestsTotal.Inc()
	startedAt := time.Now()

	var (
		mu       sync.Mutex
		statuses = make(map[string]TierStatus, 3)
		result   Result
	)
	setStatus := func(status TierStatus) {
		mu.Lock()
		statuses[status.Name] = status
		mu.Unlock()
	}

	group, runCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		records, err := s.curated.ListActiveByMedia(runCtx, req.MediaType, req.MediaID)
		if err != nil {
			s.logger.Error("curated tier failed",
				slog.String("mediaType", string(req.MediaType)),
				slog.String("mediaId", req.MediaID),
				slog.String("error", err.Error()),
			)
			metrics.TierFailuresTotal.WithLabelValues(TierCurated).Inc()
			setStatus(TierStatus{Name: TierCurated, OK: false, Error: "source store unavailable"})
			return nil
		}
		sources := make([]domain.Source, 0, len(records))
		for _, record := range records {
			source := record.Unified()
			if !source.AllowedInRegion(req.Region) {
				continue
			}
			sources = append(sources, source)
		}
		mu.Lock()
		result.Curated = sources
		mu.Unlock()
		setStatus(TierStatus{Name: TierCurated, OK: true, Count: len(sources)})
		return nil
	})

	group.Go(func() error {
		sources := s.embeds.BuildSources(req.MediaType, req.MediaID, req.Season, req.Episode)
		mu.Lock()
		result.Embed = sources
		mu.Unlock()
		setStatus(TierStatus{Name: TierEmbed, OK: true, Count: len(sources)})
		return nil
	})

	group.Go(func() error {
		sources, status := s.lookupTorrentTier(runCtx, req)
		mu.Lock()
		result.Torrent = sources
		mu.Unlock()
		setStatus(status)
		return nil
	})

	// Tier funcs contain their own failures, so Wait only observes ctx errors.
	_ = group.Wait()

	result.Tiers = []TierStatus{
		statuses[TierCurated],
		statuses[TierEmbed],
		statuses[TierTorrent],
	}
	for _, status := range result.Tiers {
		if !status.OK {
			result.Partial = true
		}
	}
	if result.Curated == nil {
		result.Curated = []domain.Source{}
	}
	if result.Embed == nil {
		result.Embed = []domain.Source{}
	}
	if result.Torrent == nil {
		result.Torrent = []domain.Source{}
	}

	metrics.ResolveTierSources.WithLabelValues(TierCurated).Observe(float64(len(result.Curated)))
	metrics.ResolveTierSources.WithLabelValues(TierEmbed).Observe(float64(len(result.Embed)))
	metrics.ResolveTierSources.WithLabelValues(TierTorrent).Observe(float64(len(result.Torrent)))
	if result.Partial {
		metrics.ResolvePartialTotal.Inc()
	}

	result.ElapsedMS = time.Since(startedAt).Milliseconds()
	return result, nil
}

// Sources flattens a result into tier order. Intra-tier order is preserved.
func (r Result) Sources() []domain.Source {
	merged := make([]domain.Source, 0, len(r.Curated)+len(r.Embed)+len(r.Torrent))
	merged = append(merged, r.Curated...)
	merged = append(merged, r.Embed...)
	merged = append(merged, r.Torrent...)
	return merged
}

func (s *Service) lookupTorrentTier(ctx context.Context, req Request) ([]domain.Source, TierStatus) {
	// Magnet lookups only make sense for movies with an IMDB id.
	if req.MediaType != domain.MediaTypeMovie || s.torrents == nil {
		return nil, TierStatus{Name: TierTorrent, OK: true}
	}

	imdbID := req.IMDBID
	if imdbID == "" && s.resolver != nil && s.resolver.Enabled() {
		resolved, err := s.resolver.IMDBID(ctx, req.MediaType, req.MediaID)
		if err != nil {
			s.logger.Warn("imdb resolution failed",
				slog.String("mediaId", req.MediaID),
				slog.String("error", err.Error()),
			)
			metrics.TierFailuresTotal.WithLabelValues(TierTorrent).Inc()
			return nil, TierStatus{Name: TierTorrent, OK: false, Error: "external id resolution failed"}
		}
		imdbID = resolved
	}
	if imdbID == "" {
		return nil, TierStatus{Name: TierTorrent, OK: true}
	}

	sources, err := s.torrents.Lookup(ctx, imdbID)
	if err != nil {
		s.logger.Warn("torrent tier degraded",
			slog.String("imdbId", imdbID),
			slog.String("error", err.Error()),
		)
		metrics.TierFailuresTotal.WithLabelValues(TierTorrent).Inc()
		return sources, TierStatus{Name: TierTorrent, OK: false, Error: "torrent index unavailable", Count: len(sources)}
	}
	return sources, TierStatus{Name: TierTorrent, OK: true, Count: len(sources)}
}
