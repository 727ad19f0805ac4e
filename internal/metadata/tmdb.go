// Package metadata is a thin client for the TMDB-style metadata collaborator.
// The aggregator uses it to resolve the IMDB id the torrent tier needs when
// the caller did not supply one.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"watchsource/internal/domain"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	redisCacheKey   = "watchsource:imdb:"
	defaultCacheTTL = 7 * 24 * time.Hour
)

type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	redis    *redis.Client
	cacheTTL time.Duration
}

type Config struct {
	APIKey   string
	BaseURL  string
	Client   *http.Client
	Redis    *redis.Client
	CacheTTL time.Duration
}

type externalIDsResponse struct {
	IMDBID string `json:"imdb_id"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		redis:    cfg.Redis,
		cacheTTL: cacheTTL,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// IMDBID resolves the IMDB id for one media item. Missing mappings resolve to
// an empty id without error; transport and payload failures are ErrUpstream.
func (c *Client) IMDBID(ctx context.Context, mediaType domain.MediaType, mediaID string) (string, error) {
	if !c.Enabled() {
		return "", nil
	}
	cacheKey := redisCacheKey + string(mediaType) + ":" + mediaID
	if c.redis != nil {
		if cached, err := c.redis.Get(ctx, cacheKey).Result(); err == nil {
			return cached, nil
		}
	}

	endpoint := fmt.Sprintf("%s/%s/%s/external_ids?api_key=%s", c.baseURL, mediaType, mediaID, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrUpstream, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: metadata HTTP %d", domain.ErrUpstream, resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrUpstream, err.Error())
	}
	var decoded externalIDsResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("%w: malformed metadata payload", domain.ErrUpstream)
	}

	imdbID := strings.TrimSpace(decoded.IMDBID)
	if c.redis != nil && imdbID != "" {
		_ = c.redis.Set(ctx, cacheKey, imdbID, c.cacheTTL).Err()
	}
	return imdbID, nil
}
