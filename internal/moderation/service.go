// Package moderation accepts community reports against curated sources and
// drives the source status state machine: active→flagged fires automatically
// on the first report, flagged→active and →removed are operator edges.
package moderation

import (
	"context"
	"log/slog"
	"strings"

	"watchsource/internal/domain"
	"watchsource/internal/metrics"
)

// SourceStore is the curated-source persistence surface the engine needs.
type SourceStore interface {
	Get(ctx context.Context, id string) (domain.CuratedSourceRecord, error)
	Update(ctx context.Context, id string, update domain.CuratedSourceUpdate) (domain.CuratedSourceRecord, error)
	FlagIfActive(ctx context.Context, id string) (bool, error)
}

// ReportStore persists reports.
type ReportStore interface {
	Insert(ctx context.Context, report domain.Report) (domain.Report, error)
	ListOpen(ctx context.Context) ([]domain.FlaggedReport, error)
}

type Service struct {
	sources   SourceStore
	reports   ReportStore
	logger    *slog.Logger
	onFlagged func(domain.CuratedSourceRecord)
}

type Option func(*Service)

// WithFlagListener registers a callback invoked after a source transitions to
// flagged. Used to push moderation events to operator dashboards.
func WithFlagListener(fn func(domain.CuratedSourceRecord)) Option {
	return func(s *Service) {
		s.onFlagged = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(sources SourceStore, reports ReportStore, opts ...Option) *Service {
	s := &Service{sources: sources, reports: reports}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// FileReport validates and records a report, then flags the source if it is
// still active. The flag transition is a compare-and-swap at the persistence
// boundary, so concurrent first reports flag exactly once; later reports are
// recorded without re-triggering anything.
func (s *Service) FileReport(ctx context.Context, sourceID, reason, contactEmail string) (domain.Report, error) {
	report := domain.Report{
		SourceID:     strings.TrimSpace(sourceID),
		Reason:       strings.TrimSpace(reason),
		ContactEmail: strings.TrimSpace(contactEmail),
	}
	if err := report.Validate(); err != nil {
		return domain.Report{}, err
	}

	if _, err := s.sources.Get(ctx, report.SourceID); err != nil {
		return domain.Report{}, err
	}

	stored, err := s.reports.Insert(ctx, report)
	if err != nil {
		return domain.Report{}, err
	}
	metrics.ReportsFiledTotal.Inc()

	flagged, err := s.sources.FlagIfActive(ctx, report.SourceID)
	if err != nil {
		// The report is already persisted; losing the flag edge here is
		// recoverable by the next report, so log instead of failing intake.
		s.logger.Error("flag transition failed",
			slog.String("sourceId", report.SourceID),
			slog.String("error", err.Error()),
		)
		return stored, nil
	}
	if flagged {
		metrics.SourcesFlaggedTotal.Inc()
		s.logger.Info("source flagged by report",
			slog.String("sourceId", report.SourceID),
			slog.String("reportId", stored.ID),
		)
		if s.onFlagged != nil {
			if record, err := s.sources.Get(ctx, report.SourceID); err == nil {
				s.onFlagged(record)
			}
		}
	}
	return stored, nil
}

// ListOpenReports is the operator review surface.
func (s *Service) ListOpenReports(ctx context.Context) ([]domain.FlaggedReport, error) {
	return s.reports.ListOpen(ctx)
}

// Restore moves a flagged source back to active (operator edge).
func (s *Service) Restore(ctx context.Context, sourceID string) (domain.CuratedSourceRecord, error) {
	status := domain.StatusActive
	return s.sources.Update(ctx, sourceID, domain.CuratedSourceUpdate{Status: &status})
}

// Remove permanently retires a source. Removed is terminal: the guarded
// update rejects any later transition away from it.
func (s *Service) Remove(ctx context.Context, sourceID string) (domain.CuratedSourceRecord, error) {
	status := domain.StatusRemoved
	return s.sources.Update(ctx, sourceID, domain.CuratedSourceUpdate{Status: &status})
}
