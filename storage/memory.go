package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/vultisig/message-board/contexthelper"
	"github.com/vultisig/message-board/model"
)

var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps everything in process memory. It is meant for local
// development and tests; nothing survives a restart.
type MemoryStorage struct {
	mu    sync.Mutex
	items *cache.Cache
	order []string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		items: cache.New(cache.NoExpiration, 0),
	}
}

func (s *MemoryStorage) message(id string) (model.Message, bool) {
	v, ok := s.items.Get(messageKey(id))
	if !ok {
		return model.Message{}, false
	}
	return v.(model.Message), true
}

func (s *MemoryStorage) user(id string) (userDocument, bool) {
	v, ok := s.items.Get(userKey(id))
	if !ok {
		return userDocument{}, false
	}
	doc := v.(userDocument)
	doc.Messages = append([]string{}, doc.Messages...)
	return doc, true
}

func (s *MemoryStorage) ListMessages(ctx context.Context, filter model.MessageFilter) ([]model.Message, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := []model.Message{}
	for _, id := range s.order {
		if m, ok := s.message(id); ok && filter.Match(m) {
			messages = append(messages, m)
		}
	}
	return messages, nil
}

func (s *MemoryStorage) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	m, ok := s.message(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *MemoryStorage) CreateMessage(ctx context.Context, message model.Message) (*model.Message, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.user(message.Author)
	if !ok {
		return nil, ErrAuthorNotFound
	}
	if _, exists := s.message(message.ID); exists {
		return nil, ErrAlreadyExists
	}
	user := doc.user()
	user.PrependMessage(message.ID)
	s.items.Set(messageKey(message.ID), message, cache.NoExpiration)
	s.items.Set(userKey(user.ID), storedUser(user), cache.NoExpiration)
	s.order = append(s.order, message.ID)
	return &message, nil
}

func (s *MemoryStorage) UpdateMessage(ctx context.Context, id string, patch model.MessagePatch) (*model.Message, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.message(id)
	if !ok {
		return nil, ErrNotFound
	}
	if patch.ChangesAuthor(m) {
		return nil, ErrAuthorImmutable
	}
	updated := patch.Apply(m)
	s.items.Set(messageKey(id), updated, cache.NoExpiration)
	return &updated, nil
}

func (s *MemoryStorage) DeleteMessage(ctx context.Context, id string) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.message(id)
	if !ok {
		return ErrNotFound
	}
	s.items.Delete(messageKey(id))
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if doc, ok := s.user(m.Author); ok {
		user := doc.user()
		user.RemoveMessage(id)
		s.items.Set(userKey(user.ID), storedUser(user), cache.NoExpiration)
	}
	return nil
}

func (s *MemoryStorage) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items.Get(userKey(user.ID)); exists {
		return nil, ErrAlreadyExists
	}
	if err := s.items.Add(usernameKey(user.Username), user.ID, cache.NoExpiration); err != nil {
		return nil, ErrAlreadyExists
	}
	doc := storedUser(user)
	s.items.Set(userKey(user.ID), doc, cache.NoExpiration)
	created := doc.user()
	return &created, nil
}

func (s *MemoryStorage) GetUser(ctx context.Context, id string) (*model.User, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	doc, ok := s.user(id)
	if !ok {
		return nil, ErrNotFound
	}
	user := doc.user()
	return &user, nil
}

func (s *MemoryStorage) Close() error {
	s.items.Flush()
	return nil
}
