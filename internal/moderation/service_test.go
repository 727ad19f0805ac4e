package moderation

import (
	"context"
	"errors"
	"testing"

	"watchsource/internal/domain"
)

type fakeSourceStore struct {
	records map[string]domain.CuratedSourceRecord
}

func newFakeSourceStore(records ...domain.CuratedSourceRecord) *fakeSourceStore {
	store := &fakeSourceStore{records: make(map[string]domain.CuratedSourceRecord)}
	for _, record := range records {
		store.records[record.ID] = record
	}
	return store
}

func (f *fakeSourceStore) Get(_ context.Context, id string) (domain.CuratedSourceRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return domain.CuratedSourceRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (f *fakeSourceStore) Update(_ context.Context, id string, update domain.CuratedSourceUpdate) (domain.CuratedSourceRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return domain.CuratedSourceRecord{}, domain.ErrNotFound
	}
	if update.Status != nil {
		if *update.Status != record.Status && !record.Status.CanTransitionTo(*update.Status) {
			return domain.CuratedSourceRecord{}, domain.ErrConflict
		}
		record.Status = *update.Status
	}
	f.records[id] = record
	return record, nil
}

func (f *fakeSourceStore) FlagIfActive(_ context.Context, id string) (bool, error) {
	record, ok := f.records[id]
	if !ok || record.Status != domain.StatusActive {
		return false, nil
	}
	record.Status = domain.StatusFlagged
	f.records[id] = record
	return true, nil
}

type fakeReportStore struct {
	inserted []domain.Report
}

func (f *fakeReportStore) Insert(_ context.Context, report domain.Report) (domain.Report, error) {
	report.ID = "r" + string(rune('1'+len(f.inserted)))
	report.Status = domain.ReportOpen
	f.inserted = append(f.inserted, report)
	return report, nil
}

func (f *fakeReportStore) ListOpen(_ context.Context) ([]domain.FlaggedReport, error) {
	items := make([]domain.FlaggedReport, 0, len(f.inserted))
	for _, report := range f.inserted {
		items = append(items, domain.FlaggedReport{Report: report})
	}
	return items, nil
}

func activeSource(id string) domain.CuratedSourceRecord {
	return domain.CuratedSourceRecord{
		ID:           id,
		MediaID:      "27205",
		MediaType:    domain.MediaTypeMovie,
		Title:        "Inception",
		PlaybackType: domain.PlaybackAdaptiveStream,
		URL:          "https://cdn.example.com/master.m3u8",
		LicenseType:  domain.LicensePublicDomain,
		Status:       domain.StatusActive,
	}
}

func TestFirstReportFlagsSource(t *testing.T) {
	sources := newFakeSourceStore(activeSource("s1"))
	reports := &fakeReportStore{}
	var notified []string
	service := NewService(sources, reports, WithFlagListener(func(record domain.CuratedSourceRecord) {
		notified = append(notified, record.ID)
	}))

	report, err := service.FileReport(context.Background(), "s1", "stream is dead", "")
	if err != nil {
		t.Fatalf("file report: %v", err)
	}
	if report.Status != domain.ReportOpen {
		t.Errorf("report status %q", report.Status)
	}
	if got := sources.records["s1"].Status; got != domain.StatusFlagged {
		t.Errorf("source status after first report: %q, want flagged", got)
	}
	if len(notified) != 1 || notified[0] != "s1" {
		t.Errorf("flag listener calls: %v", notified)
	}

	// Second report: stays flagged, no re-trigger, both reports persisted.
	if _, err := service.FileReport(context.Background(), "s1", "still broken", ""); err != nil {
		t.Fatalf("second report: %v", err)
	}
	if got := sources.records["s1"].Status; got != domain.StatusFlagged {
		t.Errorf("source status after second report: %q", got)
	}
	if len(reports.inserted) != 2 {
		t.Errorf("persisted report count %d, want 2", len(reports.inserted))
	}
	if len(notified) != 1 {
		t.Errorf("flag listener re-triggered: %v", notified)
	}
}

func TestFileReportValidation(t *testing.T) {
	service := NewService(newFakeSourceStore(activeSource("s1")), &fakeReportStore{})

	if _, err := service.FileReport(context.Background(), "s1", "bad", ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("short reason: %v", err)
	}
	if _, err := service.FileReport(context.Background(), "s1", "stream is dead", "not-an-email"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad email: %v", err)
	}
	if _, err := service.FileReport(context.Background(), "missing", "stream is dead", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing source: %v", err)
	}
}

func TestOperatorEdges(t *testing.T) {
	flagged := activeSource("s1")
	flagged.Status = domain.StatusFlagged
	sources := newFakeSourceStore(flagged)
	service := NewService(sources, &fakeReportStore{})

	restored, err := service.Restore(context.Background(), "s1")
	if err != nil || restored.Status != domain.StatusActive {
		t.Fatalf("restore: %v status %q", err, restored.Status)
	}

	removed, err := service.Remove(context.Background(), "s1")
	if err != nil || removed.Status != domain.StatusRemoved {
		t.Fatalf("remove: %v status %q", err, removed.Status)
	}

	// Removing again is idempotent.
	if _, err := service.Remove(context.Background(), "s1"); err != nil {
		t.Errorf("repeat remove: %v", err)
	}

	// Removed is terminal.
	if _, err := service.Restore(context.Background(), "s1"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("restore after remove: %v, want conflict", err)
	}
}
