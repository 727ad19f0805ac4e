package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	LogLevel  string
	LogFormat string

	MongoURI     string
	MongoDB      string
	MongoTimeout time.Duration

	RedisURL string

	TorrentIndexEndpoint string
	TorrentIndexTimeout  time.Duration
	TorrentCacheTTL      time.Duration

	TMDBAPIKey   string
	TMDBBaseURL  string
	TMDBCacheTTL time.Duration

	IdentityEndpoint string
	OperatorTokens   map[string]string

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func LoadConfig() Config {
	return Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("MONGO_DB", "watchsource"),
		MongoTimeout: time.Duration(getEnvInt("MONGO_TIMEOUT_SECONDS", 10)) * time.Second,

		RedisURL: getEnv("REDIS_URL", ""),

		TorrentIndexEndpoint: getEnv("TORRENT_INDEX_ENDPOINT", ""),
		TorrentIndexTimeout:  time.Duration(getEnvInt("TORRENT_INDEX_TIMEOUT_SECONDS", 10)) * time.Second,
		TorrentCacheTTL:      time.Duration(getEnvInt("TORRENT_CACHE_TTL_MINUTES", 30)) * time.Minute,

		TMDBAPIKey:   strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL:  getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBCacheTTL: time.Duration(getEnvInt("TMDB_CACHE_TTL_DAYS", 7)) * 24 * time.Hour,

		IdentityEndpoint: getEnv("IDENTITY_ENDPOINT", ""),
		OperatorTokens:   parseOperatorTokens(os.Getenv("OPERATOR_TOKENS")),

		AllowedOrigins: parseCSV(os.Getenv("HTTP_ALLOWED_ORIGINS")),
		RateLimitRPS:   float64(getEnvInt("HTTP_RATE_LIMIT_RPS", 50)),
		RateLimitBurst: getEnvInt("HTTP_RATE_LIMIT_BURST", 100),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if value := strings.TrimSpace(part); value != "" {
			values = append(values, value)
		}
	}
	return values
}

// parseOperatorTokens reads "token:userId" pairs, comma separated. Used for
// the static identity mode when no identity service endpoint is configured.
func parseOperatorTokens(raw string) map[string]string {
	tokens := make(map[string]string)
	for _, pair := range parseCSV(raw) {
		token, userID, found := strings.Cut(pair, ":")
		token = strings.TrimSpace(token)
		userID = strings.TrimSpace(userID)
		if !found || token == "" || userID == "" {
			continue
		}
		tokens[token] = userID
	}
	return tokens
}
