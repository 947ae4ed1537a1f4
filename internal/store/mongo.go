package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"triage/internal/constants"
	"triage/internal/triage"
	pkgerrors "triage/pkg/errors"
	"triage/pkg/metrics"
)

type messageDocument struct {
	RecordID       int64     `bson:"record_id"`
	Source         string    `bson:"source"`
	Sender         string    `bson:"sender"`
	Subject        string    `bson:"subject"`
	Body           string    `bson:"body"`
	Summary        string    `bson:"summary"`
	Category       string    `bson:"category"`
	Priority       string    `bson:"priority"`
	ActionRequired *string   `bson:"action_required"`
	MetadataJSON   string    `bson:"metadata_json"`
	CreatedAt      time.Time `bson:"created_at"`
}

type counterDocument struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// MongoStore allocates ids from a counter document and writes each record
// with a single insert, which MongoDB applies atomically.
type MongoStore struct {
	messages *mongo.Collection
	counters *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		messages: db.Collection(constants.MongoMessagesCollection),
		counters: db.Collection(constants.MongoCountersCollection),
	}
}

func (s *MongoStore) Name() string {
	return constants.StoreTypeMongoDB
}

func (s *MongoStore) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter counterDocument
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": constants.MongoMessagesCollection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate record id: %w", err)
	}
	return counter.Seq, nil
}

func (s *MongoStore) Insert(ctx context.Context, rec triage.PersistedRecord) (_ triage.RecordID, err error) {
	start := time.Now()
	defer func() { observeMongo("insert", start, err) }()

	id, err := s.nextID(ctx)
	if err != nil {
		return 0, err
	}

	doc := messageDocument{
		RecordID:       id,
		Source:         rec.Source,
		Sender:         rec.Sender,
		Subject:        rec.Subject,
		Body:           rec.Body,
		Summary:        rec.Summary,
		Category:       string(rec.Category),
		Priority:       string(rec.Priority),
		ActionRequired: rec.ActionRequired,
		MetadataJSON:   rec.MetadataJSON,
		CreatedAt:      rec.CreatedAt,
	}

	if _, err = s.messages.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, pkgerrors.ErrConflict.WithCause(err).WithDetail("message", "message record already exists")
		}
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}

	return triage.RecordID(id), nil
}

func (s *MongoStore) List(ctx context.Context, limit int) (_ []triage.PersistedRecord, err error) {
	start := time.Now()
	defer func() { observeMongo("list", start, err) }()

	limit = clampLimit(limit, constants.DefaultLimit, constants.MaxLimit)
	opts := options.Find().SetSort(bson.D{{Key: "record_id", Value: -1}}).SetLimit(int64(limit))

	cursor, err := s.messages.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []messageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	records := make([]triage.PersistedRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, doc.record())
	}
	return records, nil
}

func (s *MongoStore) Get(ctx context.Context, id triage.RecordID) (_ triage.PersistedRecord, err error) {
	start := time.Now()
	defer func() { observeMongo("get", start, err) }()

	var doc messageDocument
	err = s.messages.FindOne(ctx, bson.M{"record_id": int64(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return triage.PersistedRecord{}, notFound(id)
	}
	if err != nil {
		return triage.PersistedRecord{}, fmt.Errorf("failed to get message: %w", err)
	}
	return doc.record(), nil
}

func (d messageDocument) record() triage.PersistedRecord {
	return triage.PersistedRecord{
		ID:             triage.RecordID(d.RecordID),
		Source:         d.Source,
		Sender:         d.Sender,
		Subject:        d.Subject,
		Body:           d.Body,
		Summary:        d.Summary,
		Category:       triage.Category(d.Category),
		Priority:       triage.Priority(d.Priority),
		ActionRequired: d.ActionRequired,
		MetadataJSON:   d.MetadataJSON,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}

func observeMongo(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery(constants.ServiceName, constants.StoreTypeMongoDB, operation, status)
	metrics.ObserveDatabaseQueryDuration(constants.ServiceName, constants.StoreTypeMongoDB, operation, time.Since(start))
}
