// Package apihttp exposes source resolution, curation and report intake over
// HTTP. Routing is a plain ServeMux with manual path dispatch under /sources/.
package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"watchsource/internal/aggregate"
	"watchsource/internal/domain"
	"watchsource/internal/identity"
)

// Aggregator resolves the composite source list for one media item.
type Aggregator interface {
	Resolve(ctx context.Context, req aggregate.Request) (aggregate.Result, error)
}

// SourceAdmin is the operator-facing curated store surface.
type SourceAdmin interface {
	Create(ctx context.Context, record domain.CuratedSourceRecord) (domain.CuratedSourceRecord, error)
	Update(ctx context.Context, id string, update domain.CuratedSourceUpdate) (domain.CuratedSourceRecord, error)
}

// ReportService accepts community reports and exposes the moderation queue.
type ReportService interface {
	FileReport(ctx context.Context, sourceID, reason, contactEmail string) (domain.Report, error)
	ListOpenReports(ctx context.Context) ([]domain.FlaggedReport, error)
}

type Server struct {
	aggregator Aggregator
	sources    SourceAdmin
	reports    ReportService
	verifier   identity.Verifier
	logger     *slog.Logger
	wsHub      *wsHub

	allowedOrigins []string
	rateRPS        float64
	rateBurst      int
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithSourceAdmin(sources SourceAdmin) ServerOption {
	return func(s *Server) {
		s.sources = sources
	}
}

func WithReports(reports ReportService) ServerOption {
	return func(s *Server) {
		s.reports = reports
	}
}

func WithVerifier(verifier identity.Verifier) ServerOption {
	return func(s *Server) {
		s.verifier = verifier
	}
}

func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 && burst > 0 {
			s.rateRPS = rps
			s.rateBurst = burst
		}
	}
}

func NewServer(aggregator Aggregator, options ...ServerOption) *Server {
	server := &Server{
		aggregator: aggregator,
		logger:     slog.Default(),
		rateRPS:    50,
		rateBurst:  100,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	server.wsHub = newWSHub(server.logger)
	go server.wsHub.run()
	return server
}

// Close stops the websocket hub and disconnects its clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

// BroadcastFlagged pushes a flag event to connected moderation dashboards.
// Wire it as the moderation service's flag listener.
func (s *Server) BroadcastFlagged(record domain.CuratedSourceRecord) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast("source_flagged", record)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/sources", s.handleSourcesRoot)
	mux.HandleFunc("/sources/", s.handleSourcesSubtree)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "watchsource",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger,
		rateLimitMiddleware(s.rateRPS, s.rateBurst,
			metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// requireOperator authenticates the bearer token and checks the operator
// role. On failure it has already written the response.
func (s *Server) requireOperator(w http.ResponseWriter, r *http.Request) (identity.User, bool) {
	if s.verifier == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "operator access required")
		return identity.User{}, false
	}
	user, err := s.verifier.Verify(r.Context(), bearerToken(r))
	if err != nil {
		s.logger.Warn("operator auth failed",
			slog.String("path", r.URL.Path),
			slog.String("clientIP", clientIP(r)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusUnauthorized, "unauthorized", "operator access required")
		return identity.User{}, false
	}
	if !user.IsOperator() {
		writeError(w, http.StatusUnauthorized, "unauthorized", "operator access required")
		return identity.User{}, false
	}
	return user, true
}
