package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vultisig/message-board/config"
	"github.com/vultisig/message-board/contexthelper"
	"github.com/vultisig/message-board/model"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrAuthorNotFound  = errors.New("author does not exist")
	ErrAuthorImmutable = errors.New("author cannot be changed")
)

// Storage is an interface that defines the methods to be implemented by a storage.
// Creating a message and registering it with its author is a single atomic
// operation, and so is deleting it.
type Storage interface {
	ListMessages(ctx context.Context, filter model.MessageFilter) ([]model.Message, error)
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	CreateMessage(ctx context.Context, message model.Message) (*model.Message, error)
	UpdateMessage(ctx context.Context, id string, patch model.MessagePatch) (*model.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	CreateUser(ctx context.Context, user model.User) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	Close() error
}

var _ Storage = (*RedisStorage)(nil)

const (
	messageIndexKey = "messages"
	maxTxRetries    = 10
)

func messageKey(id string) string    { return "message:" + id }
func userKey(id string) string       { return "user:" + id }
func usernameKey(name string) string { return "username:" + name }

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type RedisStorage struct {
	cfg    config.RedisServer
	client *redis.Client
}

// NewRedisStorage returns a new storage that use redis
func NewRedisStorage(cfg config.RedisServer) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.User,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	status := client.Ping(context.Background())
	if status.Err() != nil {
		return nil, status.Err()
	}
	return &RedisStorage{
		cfg:    cfg,
		client: client,
	}, nil
}

func getJSON(ctx context.Context, g getter, key string, v any) error {
	buf, err := g.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("fail to get %s, err: %w", key, err)
	}
	if err := json.Unmarshal(buf, v); err != nil {
		return fmt.Errorf("fail to unmarshal %s, err: %w", key, err)
	}
	return nil
}

// transact runs fn in an optimistic transaction watching keys, retrying when
// a watched key changes before EXEC.
func (s *RedisStorage) transact(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if err := contexthelper.CheckCancellation(ctx); err != nil {
			return err
		}
	}
	return fmt.Errorf("fail to commit after %d attempts, err: %w", maxTxRetries, redis.TxFailedErr)
}

// ListMessages returns all messages matching filter in creation order.
func (s *RedisStorage) ListMessages(ctx context.Context, filter model.MessageFilter) ([]model.Message, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	ids, err := s.client.LRange(ctx, messageIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("fail to get message index, err: %w", err)
	}
	messages := []model.Message{}
	if len(ids) == 0 {
		return messages, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = messageKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fail to get messages, err: %w", err)
	}
	for i, item := range values {
		raw, ok := item.(string)
		if !ok { // deleted after the index was read
			continue
		}
		var message model.Message
		if err := json.Unmarshal([]byte(raw), &message); err != nil {
			return nil, fmt.Errorf("fail to unmarshal message %s, err: %w", ids[i], err)
		}
		if filter.Match(message) {
			messages = append(messages, message)
		}
	}
	return messages, nil
}

// GetMessage gets a message by its id.
func (s *RedisStorage) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	var message model.Message
	if err := getJSON(ctx, s.client, messageKey(id), &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// CreateMessage saves the message and puts its id at the front of the author's message list.
func (s *RedisStorage) CreateMessage(ctx context.Context, message model.Message) (*model.Message, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	mKey, uKey := messageKey(message.ID), userKey(message.Author)
	err := s.transact(ctx, func(tx *redis.Tx) error {
		var stored userDocument
		if err := getJSON(ctx, tx, uKey, &stored); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrAuthorNotFound
			}
			return err
		}
		user := stored.user()
		n, err := tx.Exists(ctx, mKey).Result()
		if err != nil {
			return fmt.Errorf("fail to check message %s, err: %w", message.ID, err)
		}
		if n > 0 {
			return ErrAlreadyExists
		}
		user.PrependMessage(message.ID)
		messageBuf, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("fail to marshal message, err: %w", err)
		}
		userBuf, err := json.Marshal(storedUser(user))
		if err != nil {
			return fmt.Errorf("fail to marshal user, err: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, mKey, messageBuf, 0)
			pipe.RPush(ctx, messageIndexKey, message.ID)
			pipe.Set(ctx, uKey, userBuf, 0)
			return nil
		})
		return err
	}, mKey, uKey)
	if err != nil {
		return nil, wrapTxErr("create message "+message.ID, err)
	}
	return &message, nil
}

// UpdateMessage replaces the patched fields and returns the updated message.
func (s *RedisStorage) UpdateMessage(ctx context.Context, id string, patch model.MessagePatch) (*model.Message, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	key := messageKey(id)
	var updated model.Message
	err := s.transact(ctx, func(tx *redis.Tx) error {
		var message model.Message
		if err := getJSON(ctx, tx, key, &message); err != nil {
			return err
		}
		if patch.ChangesAuthor(message) {
			return ErrAuthorImmutable
		}
		updated = patch.Apply(message)
		buf, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("fail to marshal message, err: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, buf, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return nil, wrapTxErr("update message "+id, err)
	}
	return &updated, nil
}

// DeleteMessage deletes a message and removes it from its author's message list.
func (s *RedisStorage) DeleteMessage(ctx context.Context, id string) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	key := messageKey(id)
	err := s.transact(ctx, func(tx *redis.Tx) error {
		var message model.Message
		if err := getJSON(ctx, tx, key, &message); err != nil {
			return err
		}
		uKey := userKey(message.Author)
		if err := tx.Watch(ctx, uKey).Err(); err != nil {
			return fmt.Errorf("fail to watch %s, err: %w", uKey, err)
		}
		var stored userDocument
		err := getJSON(ctx, tx, uKey, &stored)
		hasUser := err == nil
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		var userBuf []byte
		if hasUser {
			user := stored.user()
			user.RemoveMessage(id)
			if userBuf, err = json.Marshal(storedUser(user)); err != nil {
				return fmt.Errorf("fail to marshal user, err: %w", err)
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.LRem(ctx, messageIndexKey, 0, id)
			if hasUser {
				pipe.Set(ctx, uKey, userBuf, 0)
			}
			return nil
		})
		return err
	}, key)
	return wrapTxErr("delete message "+id, err)
}

// CreateUser saves a new user. Both the id and the username must be unused.
func (s *RedisStorage) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	uKey, nKey := userKey(user.ID), usernameKey(user.Username)
	err := s.transact(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, uKey, nKey).Result()
		if err != nil {
			return fmt.Errorf("fail to check user %s, err: %w", user.ID, err)
		}
		if n > 0 {
			return ErrAlreadyExists
		}
		buf, err := json.Marshal(storedUser(user))
		if err != nil {
			return fmt.Errorf("fail to marshal user, err: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, uKey, buf, 0)
			pipe.Set(ctx, nKey, user.ID, 0)
			return nil
		})
		return err
	}, uKey, nKey)
	if err != nil {
		return nil, wrapTxErr("create user "+user.ID, err)
	}
	created := storedUser(user).user()
	return &created, nil
}

// GetUser gets a user by its id.
func (s *RedisStorage) GetUser(ctx context.Context, id string) (*model.User, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	var stored userDocument
	if err := getJSON(ctx, s.client, userKey(id), &stored); err != nil {
		return nil, err
	}
	user := stored.user()
	return &user, nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// wrapTxErr keeps sentinel and context errors intact for callers using errors.Is.
func wrapTxErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotFound, ErrAlreadyExists, ErrAuthorNotFound, ErrAuthorImmutable} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if contexthelper.IsCancellation(err) {
		return err
	}
	return fmt.Errorf("fail to %s, err: %w", op, err)
}
