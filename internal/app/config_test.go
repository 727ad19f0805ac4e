package app

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.MongoDB != "watchsource" {
		t.Errorf("MongoDB = %q", cfg.MongoDB)
	}
	if cfg.TorrentIndexTimeout != 10*time.Second {
		t.Errorf("TorrentIndexTimeout = %s", cfg.TorrentIndexTimeout)
	}
	if cfg.RateLimitRPS != 50 || cfg.RateLimitBurst != 100 {
		t.Errorf("rate limit = %.0f/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("TORRENT_CACHE_TTL_MINUTES", "5")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := LoadConfig()
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.MongoURI != "mongodb://db:27017" {
		t.Errorf("MongoURI = %q", cfg.MongoURI)
	}
	if cfg.TorrentCacheTTL != 5*time.Minute {
		t.Errorf("TorrentCacheTTL = %s", cfg.TorrentCacheTTL)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestParseOperatorTokens(t *testing.T) {
	tokens := parseOperatorTokens("abc:op-1, def:op-2, malformed, :nouser, notoken:")
	if len(tokens) != 2 {
		t.Fatalf("tokens = %v", tokens)
	}
	if tokens["abc"] != "op-1" || tokens["def"] != "op-2" {
		t.Fatalf("tokens = %v", tokens)
	}
}
