package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vultisig/message-board/config"
	"github.com/vultisig/message-board/contexthelper"
	"github.com/vultisig/message-board/model"
)

var _ Storage = (*MongoStorage)(nil)

const disconnectTimeout = 10 * time.Second

// MongoStorage keeps messages and users in two collections of one database.
// With transactions enabled (replica set required) create and delete run in
// a multi-document transaction; otherwise a failed second write is undone by
// a compensating delete.
type MongoStorage struct {
	cfg          config.MongoServer
	client       *mongo.Client
	messages     *mongo.Collection
	users        *mongo.Collection
	transactions bool
}

// NewMongoStorage returns a new storage that use mongodb
func NewMongoStorage(ctx context.Context, cfg config.MongoServer) (*MongoStorage, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("fail to connect to mongodb, err: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("fail to ping mongodb, err: %w", err)
	}
	db := client.Database(cfg.Database)
	s := &MongoStorage{
		cfg:          cfg,
		client:       client,
		messages:     db.Collection("messages"),
		users:        db.Collection("users"),
		transactions: cfg.Transactions,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStorage) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("fail to create username index, err: %w", err)
	}
	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "author", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("fail to create author index, err: %w", err)
	}
	return nil
}

func (s *MongoStorage) withTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions {
		return fn(ctx)
	}
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("fail to start session, err: %w", err)
	}
	defer session.EndSession(context.Background())
	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func messageFilter(filter model.MessageFilter) bson.M {
	f := bson.M{}
	if filter.Title != "" {
		f["title"] = filter.Title
	}
	if filter.Author != "" {
		f["author"] = filter.Author
	}
	return f
}

func (s *MongoStorage) ListMessages(ctx context.Context, filter model.MessageFilter) ([]model.Message, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	cursor, err := s.messages.Find(ctx, messageFilter(filter), options.Find().SetSort(bson.D{{Key: "$natural", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("fail to find messages, err: %w", err)
	}
	messages := []model.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("fail to decode messages, err: %w", err)
	}
	return messages, nil
}

func (s *MongoStorage) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	var message model.Message
	err := s.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&message)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fail to get message %s, err: %w", id, err)
	}
	return &message, nil
}

func (s *MongoStorage) CreateMessage(ctx context.Context, message model.Message) (*model.Message, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	if message.ID == "" {
		message.ID = bson.NewObjectID().Hex()
	}
	err := s.withTransaction(ctx, func(ctx context.Context) error {
		n, err := s.users.CountDocuments(ctx, bson.M{"_id": message.Author})
		if err != nil {
			return fmt.Errorf("fail to check author %s, err: %w", message.Author, err)
		}
		if n == 0 {
			return ErrAuthorNotFound
		}
		if _, err := s.messages.InsertOne(ctx, message); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("fail to insert message %s, err: %w", message.ID, err)
		}
		res, err := s.users.UpdateOne(ctx, bson.M{"_id": message.Author}, bson.M{
			"$push": bson.M{"messages": bson.M{"$each": bson.A{message.ID}, "$position": 0}},
		})
		if err == nil && res.MatchedCount == 0 {
			err = ErrAuthorNotFound
		}
		if err != nil {
			if !s.transactions {
				if _, delErr := s.messages.DeleteOne(context.Background(), bson.M{"_id": message.ID}); delErr != nil {
					return fmt.Errorf("fail to roll back message %s after %v, err: %w", message.ID, err, delErr)
				}
			}
			if errors.Is(err, ErrAuthorNotFound) {
				return err
			}
			return fmt.Errorf("fail to register message %s with author, err: %w", message.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (s *MongoStorage) UpdateMessage(ctx context.Context, id string, patch model.MessagePatch) (*model.Message, error) {
	existing, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.ChangesAuthor(*existing) {
		return nil, ErrAuthorImmutable
	}
	set := bson.M{}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Body != nil {
		set["body"] = *patch.Body
	}
	if len(set) == 0 {
		return existing, nil
	}
	var updated model.Message
	err = s.messages.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fail to update message %s, err: %w", id, err)
	}
	return &updated, nil
}

func (s *MongoStorage) DeleteMessage(ctx context.Context, id string) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	return s.withTransaction(ctx, func(ctx context.Context) error {
		var deleted model.Message
		err := s.messages.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("fail to delete message %s, err: %w", id, err)
		}
		_, err = s.users.UpdateOne(ctx, bson.M{"_id": deleted.Author}, bson.M{
			"$pull": bson.M{"messages": id},
		})
		if err != nil {
			return fmt.Errorf("fail to remove message %s from author %s, err: %w", id, deleted.Author, err)
		}
		return nil
	})
}

func (s *MongoStorage) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	if user.ID == "" {
		user.ID = bson.NewObjectID().Hex()
	}
	doc := storedUser(user)
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("fail to insert user %s, err: %w", user.ID, err)
	}
	created := doc.user()
	return &created, nil
}

func (s *MongoStorage) GetUser(ctx context.Context, id string) (*model.User, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	var doc userDocument
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fail to get user %s, err: %w", id, err)
	}
	user := doc.user()
	return &user, nil
}

func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
