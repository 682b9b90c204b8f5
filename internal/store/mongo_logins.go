package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"boostskilla_bot/internal/domain"
)

type loginCollection interface {
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type loginDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	User      string             `bson:"user"`
	UserID    int64              `bson:"user_id"`
	Date      string             `bson:"date"`
	Topic     string             `bson:"topic"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (d loginDocument) toDomain() domain.Login {
	return domain.Login{
		ID:        d.ID.Hex(),
		User:      d.User,
		UserID:    d.UserID,
		Date:      d.Date,
		Topic:     d.Topic,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// MongoLoginStore persists daily log-ons in MongoDB, one document per
// (user, date).
type MongoLoginStore struct {
	collection loginCollection
}

// NewMongoLoginStore constructs a MongoLoginStore.
func NewMongoLoginStore(collection loginCollection) *MongoLoginStore {
	return &MongoLoginStore{collection: collection}
}

// FindByUser returns every date the user logged on, oldest date first.
func (s *MongoLoginStore) FindByUser(ctx context.Context, user string) ([]domain.Login, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	logins, err := s.find(ctx, bson.M{"user": user}, bson.D{{Key: "date", Value: 1}})
	if err != nil {
		return nil, err
	}
	if len(logins) == 0 {
		return nil, fmt.Errorf("logins for %q: %w", user, domain.ErrNotFound)
	}
	return logins, nil
}

// UpsertToday writes topic for (user, dateKey) and refreshes user_id.
func (s *MongoLoginStore) UpsertToday(ctx context.Context, user string, userID int64, dateKey, topic string) (domain.Login, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Login{}, err
	}
	if strings.TrimSpace(user) == "" {
		return domain.Login{}, errors.New("user is required")
	}
	if strings.TrimSpace(dateKey) == "" {
		return domain.Login{}, errors.New("date key is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"user_id":    userID,
			"topic":      topic,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"user":       user,
			"date":       dateKey,
			"created_at": now,
		},
	}

	result := s.collection.FindOneAndUpdate(ctx,
		bson.M{"user": user, "date": dateKey},
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	if result == nil {
		return domain.Login{}, errors.New("upsert login returned no result")
	}
	if err := result.Err(); err != nil {
		return domain.Login{}, fmt.Errorf("upsert login: %w", err)
	}

	var doc loginDocument
	if err := result.Decode(&doc); err != nil {
		return domain.Login{}, fmt.Errorf("decode login: %w", err)
	}
	return doc.toDomain(), nil
}

// ListByDate returns the log-ons for dateKey in the order users first logged
// on that day.
func (s *MongoLoginStore) ListByDate(ctx context.Context, dateKey string) ([]domain.Login, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.find(ctx, bson.M{"date": dateKey}, bson.D{{Key: "_id", Value: 1}})
}

// CountByDate returns how many users logged on for dateKey.
func (s *MongoLoginStore) CountByDate(ctx context.Context, dateKey string) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	count, err := s.collection.CountDocuments(ctx, bson.M{"date": dateKey})
	if err != nil {
		return 0, fmt.Errorf("count logins: %w", err)
	}
	return count, nil
}

func (s *MongoLoginStore) find(ctx context.Context, filter bson.M, sort bson.D) ([]domain.Login, error) {
	cursor, err := s.collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("find logins: %w", err)
	}

	var docs []loginDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode logins: %w", err)
	}

	logins := make([]domain.Login, 0, len(docs))
	for _, doc := range docs {
		logins = append(logins, doc.toDomain())
	}
	return logins, nil
}

func (s *MongoLoginStore) ready(ctx context.Context) error {
	if s == nil || s.collection == nil {
		return errors.New("login store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
