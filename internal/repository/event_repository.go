package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rpattn/tamperlog/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// textTimestampLayout is how string timestamps are written by older producers.
const textTimestampLayout = "2006-01-02 15:04:05"

type eventRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewEventRepository wires a repository backed by a MongoDB collection.
func NewEventRepository(client *mongo.Client, database, collection string) EventRepository {
	return &eventRepository{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}
}

// ConnectMongo creates a client with a bounded server selection timeout.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout).
		SetConnectTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, &domain.StoreError{Store: domain.StoreMonitoring, Op: "connect", Err: err}
	}
	return client, nil
}

// eventDocument mirrors domain.Event but tolerates string timestamps.
type eventDocument struct {
	Level       string         `bson:"level"`
	Message     string         `bson:"message"`
	Timestamp   any            `bson:"timestamp"`
	App         string         `bson:"app"`
	Environment string         `bson:"environment"`
	Logger      string         `bson:"logger,omitempty"`
	Attributes  map[string]any `bson:"attributes,omitempty"`
}

func (r *eventRepository) Insert(ctx context.Context, event domain.Event) error {
	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		return r.storeErr("insert", err)
	}
	return nil
}

func (r *eventRepository) Latest(ctx context.Context, q domain.EventQuery) (*domain.Event, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})

	var doc eventDocument
	err := r.collection.FindOne(ctx, recentFilter(q), opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, r.storeErr("find_latest", err)
	}

	event := domain.Event{
		Level:       doc.Level,
		Message:     doc.Message,
		App:         doc.App,
		Environment: doc.Environment,
		Logger:      doc.Logger,
		Attributes:  doc.Attributes,
	}
	event.Timestamp = decodeTimestamp(doc.Timestamp)
	return &event, nil
}

func (r *eventRepository) AnyAtLevel(ctx context.Context, q domain.EventQuery, levels ...string) (bool, error) {
	filter := recentFilter(q)
	filter = append(filter, bson.E{Key: "level", Value: bson.M{"$in": levels}})

	err := r.collection.FindOne(ctx, filter).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, r.storeErr("find_level", err)
	}
	return true, nil
}

func (r *eventRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx, readpref.Primary()); err != nil {
		return r.storeErr("ping", err)
	}
	return nil
}

func (r *eventRepository) storeErr(op string, err error) error {
	return &domain.StoreError{Store: domain.StoreMonitoring, Op: op, Err: err}
}

// recentFilter matches app/environment and a timestamp at or after the
// cutoff, stored either as a BSON date or as text.
func recentFilter(q domain.EventQuery) bson.D {
	sinceText := q.SinceText
	if sinceText == "" {
		sinceText = q.Since.Format(textTimestampLayout)
	}
	return bson.D{
		{Key: "app", Value: q.App},
		{Key: "environment", Value: q.Environment},
		{Key: "$or", Value: bson.A{
			bson.M{"timestamp": bson.M{"$gte": q.Since}},
			bson.M{"timestamp": bson.M{"$gte": sinceText}},
		}},
	}
}

func decodeTimestamp(value any) time.Time {
	switch v := value.(type) {
	case primitive.DateTime:
		return v.Time()
	case time.Time:
		return v
	case string:
		if ts, err := time.Parse(textTimestampLayout, v); err == nil {
			return ts
		}
	}
	return time.Time{}
}

