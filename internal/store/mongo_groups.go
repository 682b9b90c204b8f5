package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"boostskilla_bot/internal/domain"
	"boostskilla_bot/internal/logging"
)

type groupCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type groupDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Link        string             `bson:"link"`
	Description string             `bson:"description"`
	ChatID      int64              `bson:"chat_id"`
	CreatedAt   time.Time          `bson:"creation_time"`
	Admin       string             `bson:"group_admin"`
	Active      bool               `bson:"active"`
}

func (d groupDocument) toDomain() domain.Group {
	return domain.Group{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Link:        d.Link,
		Description: d.Description,
		ChatID:      d.ChatID,
		CreatedAt:   d.CreatedAt,
		Admin:       d.Admin,
		Active:      d.Active,
	}
}

// MongoGroupStore persists groups in MongoDB.
type MongoGroupStore struct {
	collection groupCollection
	logger     *logrus.Entry
}

// NewMongoGroupStore constructs a MongoGroupStore.
func NewMongoGroupStore(collection groupCollection, logger *logrus.Entry) *MongoGroupStore {
	if logger == nil {
		logger = logging.Logger()
	}

	return &MongoGroupStore{collection: collection, logger: logger}
}

// FindByChatID fetches a group by chat_id.
func (s *MongoGroupStore) FindByChatID(ctx context.Context, chatID int64) (domain.Group, error) {
	doc, err := s.findDocument(ctx, chatID)
	if err != nil {
		return domain.Group{}, err
	}
	return doc.toDomain(), nil
}

// Exists reports whether a group with chat_id was ever registered.
func (s *MongoGroupStore) Exists(ctx context.Context, chatID int64) (bool, error) {
	_, err := s.findDocument(ctx, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsActive reports whether the group exists and is active.
func (s *MongoGroupStore) IsActive(ctx context.Context, chatID int64) (bool, error) {
	doc, err := s.findDocument(ctx, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return doc.Active, nil
}

// Insert stores a new group, filling the id and creation time when missing.
func (s *MongoGroupStore) Insert(ctx context.Context, group domain.Group) (domain.Group, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Group{}, err
	}
	if group.ChatID == 0 {
		return domain.Group{}, errors.New("chat_id is required")
	}

	doc := groupDocument{
		ID:          primitive.NewObjectID(),
		Name:        group.Name,
		Link:        group.Link,
		Description: group.Description,
		ChatID:      group.ChatID,
		CreatedAt:   group.CreatedAt,
		Admin:       group.Admin,
		Active:      group.Active,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Group{}, fmt.Errorf("insert group %d: %w", group.ChatID, domain.ErrAlreadyExists)
		}
		return domain.Group{}, fmt.Errorf("insert group: %w", err)
	}

	return doc.toDomain(), nil
}

// SetActive flips the active flag of the group addressed by its stored id.
func (s *MongoGroupStore) SetActive(ctx context.Context, chatID int64, active bool) error {
	doc, err := s.findDocument(ctx, chatID)
	if err != nil {
		return err
	}

	result, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": bson.M{"active": active}},
	)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	if result == nil || result.MatchedCount == 0 {
		return fmt.Errorf("update group %d: %w", chatID, domain.ErrNotFound)
	}

	s.logger.WithFields(logging.Fields{
		"event":   "group_active_changed",
		"chat_id": chatID,
		"group":   doc.Name,
		"active":  active,
	}).Info("updated group active flag")

	return nil
}

// List returns every group ordered by insertion.
func (s *MongoGroupStore) List(ctx context.Context) ([]domain.Group, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find groups: %w", err)
	}

	var docs []groupDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}

	groups := make([]domain.Group, 0, len(docs))
	for _, doc := range docs {
		groups = append(groups, doc.toDomain())
	}
	return groups, nil
}

// Count returns the number of groups, optionally only active ones.
func (s *MongoGroupStore) Count(ctx context.Context, activeOnly bool) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}

	count, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	return count, nil
}

func (s *MongoGroupStore) findDocument(ctx context.Context, chatID int64) (groupDocument, error) {
	if err := s.ready(ctx); err != nil {
		return groupDocument{}, err
	}

	result := s.collection.FindOne(ctx, bson.M{"chat_id": chatID})
	if result == nil {
		return groupDocument{}, errors.New("find group returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return groupDocument{}, fmt.Errorf("group %d: %w", chatID, domain.ErrNotFound)
		}
		return groupDocument{}, fmt.Errorf("find group: %w", err)
	}

	var doc groupDocument
	if err := result.Decode(&doc); err != nil {
		return groupDocument{}, fmt.Errorf("decode group: %w", err)
	}
	return doc, nil
}

func (s *MongoGroupStore) ready(ctx context.Context) error {
	if s == nil || s.collection == nil {
		return errors.New("group store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
