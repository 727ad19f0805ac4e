package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"watchsource/internal/domain"
)

type ReportRepository struct {
	collection *mongo.Collection
	sources    *SourceRepository
}

type reportDoc struct {
	ID           string    `bson:"_id"`
	SourceID     string    `bson:"sourceId"`
	Reason       string    `bson:"reason"`
	ContactEmail string    `bson:"email,omitempty"`
	Status       string    `bson:"status"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func NewReportRepository(client *mongo.Client, dbName string, sources *SourceRepository) *ReportRepository {
	return &ReportRepository{
		collection: client.Database(dbName).Collection("watch_source_reports"),
		sources:    sources,
	}
}

func (r *ReportRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "sourceId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Insert persists a validated report as open.
func (r *ReportRepository) Insert(ctx context.Context, report domain.Report) (domain.Report, error) {
	report.ID = primitive.NewObjectID().Hex()
	report.Status = domain.ReportOpen
	report.CreatedAt = time.Now().UTC()

	if _, err := r.collection.InsertOne(ctx, toReportDoc(report)); err != nil {
		return domain.Report{}, fmt.Errorf("%w: insert report: %s", domain.ErrPersistence, err.Error())
	}
	return report, nil
}

// ListOpen returns open reports newest first, each joined with its source.
// Reports whose source has since disappeared are skipped rather than failing
// the listing.
func (r *ReportRepository) ListOpen(ctx context.Context) ([]domain.FlaggedReport, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"status": string(domain.ReportOpen)},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list reports: %s", domain.ErrPersistence, err.Error())
	}
	defer cursor.Close(ctx)

	var items []domain.FlaggedReport
	for cursor.Next(ctx) {
		var doc reportDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decode report: %s", domain.ErrPersistence, err.Error())
		}
		report := fromReportDoc(doc)
		source, err := r.sources.Get(ctx, report.SourceID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		items = append(items, domain.FlaggedReport{Report: report, Source: source})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate reports: %s", domain.ErrPersistence, err.Error())
	}
	return items, nil
}

func toReportDoc(report domain.Report) reportDoc {
	return reportDoc{
		ID:           report.ID,
		SourceID:     report.SourceID,
		Reason:       report.Reason,
		ContactEmail: report.ContactEmail,
		Status:       string(report.Status),
		CreatedAt:    report.CreatedAt,
	}
}

func fromReportDoc(doc reportDoc) domain.Report {
	return domain.Report{
		ID:           doc.ID,
		SourceID:     doc.SourceID,
		Reason:       doc.Reason,
		ContactEmail: doc.ContactEmail,
		Status:       domain.ReportStatus(doc.Status),
		CreatedAt:    doc.CreatedAt,
	}
}
