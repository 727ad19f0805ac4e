// Package mongo persists curated watch sources and their community reports.
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

type SourceRepository struct {
	collection *mongo.Collection
}

type sourceDoc struct {
	ID              string    `bson:"_id"`
	MediaID         string    `bson:"mediaId"`
	MediaType       string    `bson:"mediaType"`
	Provider        string    `bson:"provider"`
	Title           string    `bson:"title"`
	Quality         string    `bson:"quality,omitempty"`
	PlaybackType    string    `bson:"playbackType"`
	URL             string    `bson:"url"`
	RegionAllowlist []string  `bson:"regionAllowlist,omitempty"`
	Status          string    `bson:"status"`
	LicenseType     string    `bson:"licenseType"`
	LicenseProofURL string    `bson:"licenseProofUrl,omitempty"`
	CreatedBy       string    `bson:"createdBy"`
	CreatedAt       time.Time `bson:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt"`
}

func NewSourceRepository(client *mongo.Client, dbName string) *SourceRepository {
	return &SourceRepository{collection: client.Database(dbName).Collection("watch_sources")}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	return mongo.Connect(ctx, opts...)
}

func (r *SourceRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "mediaId", Value: 1}, {Key: "mediaType", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Create validates and inserts a new curated record. The record id, status
// and timestamps are assigned here.
func (r *SourceRepository) Create(ctx context.Context, record domain.CuratedSourceRecord) (domain.CuratedSourceRecord, error) {
	if err := record.Validate(); err != nil {
		return domain.CuratedSourceRecord{}, err
	}
	now := time.Now().UTC()
	record.ID = primitive.NewObjectID().Hex()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Status == "" {
		record.Status = domain.StatusActive
	}

	if _, err := r.collection.InsertOne(ctx, toSourceDoc(record)); err != nil {
		return domain.CuratedSourceRecord{}, fmt.Errorf("%w: insert source: %s", domain.ErrPersistence, err.Error())
	}
	return record, nil
}

// Get returns one curated record by id.
func (r *SourceRepository) Get(ctx context.Context, id string) (domain.CuratedSourceRecord, error) {
	var doc sourceDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.CuratedSourceRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CuratedSourceRecord{}, fmt.Errorf("%w: get source: %s", domain.ErrPersistence, err.Error())
	}
	return fromSourceDoc(doc), nil
}

// Update applies a partial patch. A status change is guarded by the FSM: the
// filter pins the set of statuses the target may be reached from, so the
// patch is a single compare-and-swap rather than a read-then-write.
func (r *SourceRepository) Update(ctx context.Context, id string, update domain.CuratedSourceUpdate) (domain.CuratedSourceRecord, error) {
	if err := update.Validate(); err != nil {
		return domain.CuratedSourceRecord{}, err
	}
	if update.Empty() {
		return r.Get(ctx, id)
	}

	filter := bson.M{"_id": id}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Provider != nil {
		set["provider"] = *update.Provider
	}
	if update.Quality != nil {
		set["quality"] = *update.Quality
	}
	if update.PlaybackType != nil {
		set["playbackType"] = string(*update.PlaybackType)
	}
	if update.URL != nil {
		set["url"] = *update.URL
	}
	if update.RegionAllowlist != nil {
		set["regionAllowlist"] = *update.RegionAllowlist
	}
	if update.LicenseType != nil {
		set["licenseType"] = string(*update.LicenseType)
	}
	if update.LicenseProofURL != nil {
		set["licenseProofUrl"] = *update.LicenseProofURL
	}
	if update.Status != nil {
		set["status"] = string(*update.Status)
		// Re-setting the stored status is an idempotent no-op, not a
		// forbidden edge, so the target itself is allowed to match.
		allowed := append(statusesAllowingTransitionTo(*update.Status), string(*update.Status))
		filter["status"] = bson.M{"$in": allowed}
	}

	var doc sourceDoc
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either the record is missing or the status edge is forbidden.
		if _, getErr := r.Get(ctx, id); getErr == nil {
			return domain.CuratedSourceRecord{}, domain.ErrConflict
		}
		return domain.CuratedSourceRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CuratedSourceRecord{}, fmt.Errorf("%w: update source: %s", domain.ErrPersistence, err.Error())
	}
	return fromSourceDoc(doc), nil
}

// FlagIfActive atomically transitions active→flagged. It reports whether the
// transition happened; an already-flagged or removed source is left untouched
// without error (first-report-triggers-flag semantics).
func (r *SourceRepository) FlagIfActive(ctx context.Context, id string) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(domain.StatusActive)},
		bson.M{"$set": bson.M{
			"status":    string(domain.StatusFlagged),
			"updatedAt": time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, fmt.Errorf("%w: flag source: %s", domain.ErrPersistence, err.Error())
	}
	return res.ModifiedCount > 0, nil
}

// ListActiveByMedia returns the publicly servable curated records for one
// media item: removed is excluded, flagged is included by policy (flagging
// degrades trust signaling, not availability).
func (r *SourceRepository) ListActiveByMedia(ctx context.Context, mediaType domain.MediaType, mediaID string) ([]domain.CuratedSourceRecord, error) {
	filter := bson.M{
		"mediaId":   mediaID,
		"mediaType": string(mediaType),
		"status":    bson.M{"$in": []string{string(domain.StatusActive), string(domain.StatusFlagged)}},
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: list sources: %s", domain.ErrPersistence, err.Error())
	}
	defer cursor.Close(ctx)

	var records []domain.CuratedSourceRecord
	for cursor.Next(ctx) {
		var doc sourceDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decode source: %s", domain.ErrPersistence, err.Error())
		}
		records = append(records, fromSourceDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate sources: %s", domain.ErrPersistence, err.Error())
	}
	return records, nil
}

// statusesAllowingTransitionTo inverts the FSM edges: which current statuses
// may move to the target.
func statusesAllowingTransitionTo(target domain.SourceStatus) []string {
	allowed := make([]string, 0, 2)
	for _, from := range []domain.SourceStatus{domain.StatusActive, domain.StatusFlagged, domain.StatusRemoved} {
		if from.CanTransitionTo(target) {
			allowed = append(allowed, string(from))
		}
	}
	return allowed
}

func toSourceDoc(record domain.CuratedSourceRecord) sourceDoc {
	return sourceDoc{
		ID:              record.ID,
		MediaID:         record.MediaID,
		MediaType:       string(record.MediaType),
		Provider:        record.Provider,
		Title:           record.Title,
		Quality:         record.Quality,
		PlaybackType:    string(record.PlaybackType),
		URL:             record.URL,
		RegionAllowlist: record.RegionAllowlist,
		Status:          string(record.Status),
		LicenseType:     string(record.LicenseType),
		LicenseProofURL: record.LicenseProofURL,
		CreatedBy:       record.CreatedBy,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}

func fromSourceDoc(doc sourceDoc) domain.CuratedSourceRecord {
	return domain.CuratedSourceRecord{
		ID:              doc.ID,
		MediaID:         doc.MediaID,
		MediaType:       domain.MediaType(doc.MediaType),
		Provider:        doc.Provider,
		Title:           doc.Title,
		Quality:         doc.Quality,
		PlaybackType:    domain.PlaybackType(doc.PlaybackType),
		URL:             doc.URL,
		RegionAllowlist: doc.RegionAllowlist,
		Status:          domain.SourceStatus(doc.Status),
		LicenseType:     domain.LicenseType(doc.LicenseType),
		LicenseProofURL: doc.LicenseProofURL,
		CreatedBy:       doc.CreatedBy,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}
