// Package torrentindex looks up movie torrents on a YTS-style metadata index
// and normalizes the results into unified sources carrying magnet locators.
// The producer is best-effort: every failure is advisory and the aggregator
// contains it, so a dead index can never fail a resolve request.
package torrentindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"watchsource/internal/domain"
	"watchsource/internal/metrics"
)

const (
	defaultEndpoint  = "https://yts.mx/api/v2/movie_details.json"
	defaultUserAgent = "watchsource/1.0"
	defaultTimeout   = 10 * time.Second

	redisCacheKey   = "watchsource:torrents:"
	defaultCacheTTL = 30 * time.Minute

	maxPayloadBytes = 4 * 1024 * 1024
)

var defaultTrackers = []string{
	"udp://open.demonii.com:1337/announce",
	"udp://tracker.openbittorrent.com:80",
	"udp://tracker.coppersurfer.tk:6969",
	"udp://glotorrents.pw:6969/announce",
	"udp://tracker.opentrackr.org:1337/announce",
}

type Config struct {
	Endpoint  string
	UserAgent string
	Trackers  []string
	Timeout   time.Duration
	Client    *http.Client
	Redis     *redis.Client
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

type Client struct {
	http      *http.Client
	endpoint  string
	userAgent string
	trackers  []string
	redis     *redis.Client
	cacheTTL  time.Duration
	logger    *slog.Logger
}

type detailsResponse struct {
	Status string `json:"status"`
	Data   struct {
		Movie *movieItem `json:"movie"`
	} `json:"data"`
}

type movieItem struct {
	ID       int           `json:"id"`
	Title    string        `json:"title"`
	Year     int           `json:"year"`
	Torrents []torrentItem `json:"torrents"`
}

type torrentItem struct {
	Hash    string `json:"hash"`
	Quality string `json:"quality"`
	Size    string `json:"size"`
	Seeds   int    `json:"seeds"`
	Peers   int    `json:"peers"`
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	trackers := cfg.Trackers
	if len(trackers) == 0 {
		trackers = append([]string(nil), defaultTrackers...)
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:      httpClient,
		endpoint:  endpoint,
		userAgent: userAgent,
		trackers:  trackers,
		redis:     cfg.Redis,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Lookup fetches torrents for an IMDB id and returns them as unified sources.
// On any upstream failure it returns an empty list together with an advisory
// ErrUpstream-wrapped error; callers log and degrade, they never propagate it.
func (c *Client) Lookup(ctx context.Context, imdbID string) ([]domain.Source, error) {
	id := strings.TrimSpace(imdbID)
	if id == "" {
		return nil, nil
	}

	if cached, ok := c.cacheLookup(ctx, id); ok {
		metrics.TorrentIndexCacheHits.Inc()
		return cached, nil
	}

	sources, err := c.fetch(ctx, id)
	if err != nil {
		metrics.TorrentIndexFailures.Inc()
		return nil, fmt.Errorf("%w: %s", domain.ErrUpstream, err.Error())
	}
	c.cacheStore(ctx, id, sources)
	return sources, nil
}

func (c *Client) fetch(ctx context.Context, imdbID string) ([]domain.Source, error) {
	uri, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	query := uri.Query()
	query.Set("imdb_id", imdbID)
	uri.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("index HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, err
	}

	var decoded detailsResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("malformed index payload: %w", err)
	}
	if decoded.Status != "ok" || decoded.Data.Movie == nil {
		return nil, nil
	}

	return c.normalize(*decoded.Data.Movie), nil
}

// normalize maps index records onto unified sources. IDs are composites of
// the index movie id and the quality tag: unique within one response, no
// cross-response stability claimed.
func (c *Client) normalize(movie movieItem) []domain.Source {
	sources := make([]domain.Source, 0, len(movie.Torrents))
	for _, torrent := range movie.Torrents {
		hash := NormalizeInfoHash(torrent.Hash)
		if hash == "" {
			continue
		}
		label := fmt.Sprintf("%s (%d) [%s]", movie.Title, movie.Year, torrent.Quality)
		sources = append(sources, domain.Source{
			ID:           fmt.Sprintf("yts-%d-%s", movie.ID, torrent.Quality),
			OriginKind:   domain.OriginTorrent,
			Provider:     "YTS",
			Title:        movie.Title,
			Quality:      torrent.Quality,
			PlaybackType: domain.PlaybackExternalHandoff,
			Locator:      BuildMagnet(hash, label, c.trackers),
			SizeHint:     torrent.Size,
			SeedHint:     torrent.Seeds,
			PeerHint:     torrent.Peers,
		})
	}
	return sources
}

func (c *Client) cacheLookup(ctx context.Context, imdbID string) ([]domain.Source, bool) {
	if c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, redisCacheKey+imdbID).Bytes()
	if err != nil {
		return nil, false
	}
	var sources []domain.Source
	if err := json.Unmarshal(raw, &sources); err != nil {
		return nil, false
	}
	return sources, true
}

func (c *Client) cacheStore(ctx context.Context, imdbID string, sources []domain.Source) {
	if c.redis == nil || len(sources) == 0 {
		return
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, redisCacheKey+imdbID, raw, c.cacheTTL).Err(); err != nil {
		c.logger.Debug("torrent cache store failed", slog.String("error", err.Error()))
	}
}
