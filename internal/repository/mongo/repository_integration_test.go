package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo/options"

	"watchsource/internal/domain"
)

// testMongoURI returns the MongoDB connection URI for integration tests.
// Defaults to localhost:27017. Set MONGO_TEST_URI to override.
func testMongoURI() string {
	if uri := os.Getenv("MONGO_TEST_URI"); uri != "" {
		return uri
	}
	return "mongodb://localhost:27017"
}

// setupTestRepos connects to MongoDB and returns repositories backed by a
// unique test database. The cleanup function drops the database and
// disconnects. Calls t.Skip if MongoDB is unreachable.
func setupTestRepos(t *testing.T) (*SourceRepository, *ReportRepository, func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	uri := testMongoURI()
	client, err := Connect(ctx, uri, options.Client().SetConnectTimeout(3*time.Second))
	if err != nil {
		t.Skipf("MongoDB not available at %s: %v", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		t.Skipf("MongoDB ping failed at %s: %v", uri, err)
	}

	dbName := fmt.Sprintf("watchsource_test_%d", time.Now().UnixNano())
	sources := NewSourceRepository(client, dbName)
	reports := NewReportRepository(client, dbName, sources)

	if err := sources.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		t.Fatalf("EnsureIndexes: %v", err)
	}

	cleanup := func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = client.Database(dbName).Drop(ctx2)
		_ = client.Disconnect(ctx2)
	}
	return sources, reports, cleanup
}

func makeRecord(title string) domain.CuratedSourceRecord {
	return domain.CuratedSourceRecord{
		MediaID:      "27205",
		MediaType:    domain.MediaTypeMovie,
		Provider:     "Archive",
		Title:        title,
		Quality:      "1080p",
		PlaybackType: domain.PlaybackAdaptiveStream,
		URL:          "https://cdn.example.com/" + title + "/master.m3u8",
		LicenseType:  domain.LicensePublicDomain,
		CreatedBy:    "op-1",
	}
}

func TestIntegrationListActiveByMedia(t *testing.T) {
	sources, _, cleanup := setupTestRepos(t)
	defer cleanup()
	ctx := context.Background()

	active, err := sources.Create(ctx, makeRecord("active"))
	if err != nil {
		t.Fatalf("create active: %v", err)
	}
	flaggedRec, err := sources.Create(ctx, makeRecord("flagged"))
	if err != nil {
		t.Fatalf("create flagged: %v", err)
	}
	removedRec, err := sources.Create(ctx, makeRecord("removed"))
	if err != nil {
		t.Fatalf("create removed: %v", err)
	}

	if ok, err := sources.FlagIfActive(ctx, flaggedRec.ID); err != nil || !ok {
		t.Fatalf("flag: ok=%v err=%v", ok, err)
	}
	removedStatus := domain.StatusRemoved
	if _, err := sources.Update(ctx, removedRec.ID, domain.CuratedSourceUpdate{Status: &removedStatus}); err != nil {
		t.Fatalf("remove: %v", err)
	}

	listed, err := sources.ListActiveByMedia(ctx, domain.MediaTypeMovie, "27205")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d records, want 2 (active + flagged, removed excluded)", len(listed))
	}
	// Creation order is preserved by the createdAt sort.
	if listed[0].ID != active.ID || listed[1].ID != flaggedRec.ID {
		t.Errorf("listing order: got [%s %s], want [%s %s]", listed[0].ID, listed[1].ID, active.ID, flaggedRec.ID)
	}
	if listed[1].Status != domain.StatusFlagged {
		t.Errorf("flagged record listed with status %q", listed[1].Status)
	}
}

func TestIntegrationStatusTransitionGuards(t *testing.T) {
	sources, _, cleanup := setupTestRepos(t)
	defer cleanup()
	ctx := context.Background()

	record, err := sources.Create(ctx, makeRecord("guarded"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// First flag wins, second observes no transition.
	if ok, err := sources.FlagIfActive(ctx, record.ID); err != nil || !ok {
		t.Fatalf("first flag: ok=%v err=%v", ok, err)
	}
	if ok, err := sources.FlagIfActive(ctx, record.ID); err != nil || ok {
		t.Fatalf("second flag: ok=%v err=%v, want false", ok, err)
	}

	removed := domain.StatusRemoved
	if _, err := sources.Update(ctx, record.ID, domain.CuratedSourceUpdate{Status: &removed}); err != nil {
		t.Fatalf("remove flagged: %v", err)
	}

	// Re-setting the current status is an idempotent no-op.
	stillRemoved := domain.StatusRemoved
	got, err := sources.Update(ctx, record.ID, domain.CuratedSourceUpdate{Status: &stillRemoved})
	if err != nil {
		t.Fatalf("re-set removed: %v", err)
	}
	if got.Status != domain.StatusRemoved {
		t.Fatalf("re-set removed: status %q", got.Status)
	}

	// Removed is terminal.
	activeAgain := domain.StatusActive
	_, err = sources.Update(ctx, record.ID, domain.CuratedSourceUpdate{Status: &activeAgain})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("restore after remove: %v, want conflict", err)
	}
}

func TestIntegrationReportJoin(t *testing.T) {
	sources, reports, cleanup := setupTestRepos(t)
	defer cleanup()
	ctx := context.Background()

	record, err := sources.Create(ctx, makeRecord("reported"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := reports.Insert(ctx, domain.Report{SourceID: record.ID, Reason: "stream is dead"}); err != nil {
		t.Fatalf("insert report: %v", err)
	}
	// A report against a vanished source is skipped by the listing.
	if _, err := reports.Insert(ctx, domain.Report{SourceID: "ffffffffffffffffffffffff", Reason: "orphan"}); err != nil {
		t.Fatalf("insert orphan report: %v", err)
	}

	open, err := reports.ListOpen(ctx)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("open reports %d, want 1 (orphan skipped)", len(open))
	}
	if open[0].Source.ID != record.ID || open[0].Report.Reason != "stream is dead" {
		t.Errorf("joined report mismatch: %+v", open[0])
	}
}
