// Package memstore keeps users, conversations and messages in process
// memory. It backs the "memory" storage mode and tests; data does not
// survive a restart.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/google/uuid"
)

type Store struct {
	mu            sync.RWMutex
	users         map[string]*models.User
	usersByEmail  map[string]string
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message

	now func() time.Time
}

type Option func(*Store)

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		users:         make(map[string]*models.User),
		usersByEmail:  make(map[string]string),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usersByEmail[user.Email]; taken {
		return nil, common.ErrDuplicateEmail
	}

	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = s.now()

	s.users[u.ID] = &u
	s.usersByEmail[u.Email] = u.ID

	out := u
	return &out, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u := *s.users[id]
	return &u, nil
}

func (s *Store) CreateConversation(_ context.Context, userID, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[c.ID] = c
	return c.ID, nil
}

// owned must be called with s.mu held.
func (s *Store) owned(convID, userID string) (*models.Conversation, error) {
	c, ok := s.conversations[convID]
	if !ok || c.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return c, nil
}

func (s *Store) GetConversation(_ context.Context, convID, userID string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.owned(convID, userID)
	if err != nil {
		return nil, err
	}
	out := *c
	return &out, nil
}

func (s *Store) AppendExchange(ctx context.Context, convID, userID string, turn models.Turn) (*models.Exchange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.owned(convID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	question := models.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Seq:            c.MessageCount + 1,
		Role:           models.RoleUser,
		Content:        turn.Question,
		CreatedAt:      now,
	}
	reply := models.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Seq:            c.MessageCount + 2,
		Role:           models.RoleAssistant,
		Content:        turn.Answer,
		CreatedAt:      now,
	}

	s.messages[convID] = append(s.messages[convID], question, reply)
	c.MessageCount += 2
	c.UpdatedAt = now
	if turn.Title != "" {
		c.Title = turn.Title
	}

	conv := *c
	return &models.Exchange{Conversation: &conv, Question: &question, Answer: &reply}, nil
}

func (s *Store) ListConversations(_ context.Context, userID string) ([]models.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := []models.ConversationSummary{}
	for _, c := range s.conversations {
		if c.UserID == userID {
			list = append(list, c.Summary())
		}
	}

	sort.Slice(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].ID > list[j].ID
	})
	return list, nil
}

func (s *Store) GetMessages(_ context.Context, convID, userID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.owned(convID, userID); err != nil {
		return nil, err
	}
	out := make([]models.Message, len(s.messages[convID]))
	copy(out, s.messages[convID])
	return out, nil
}

func (s *Store) RecentMessages(_ context.Context, convID, userID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.owned(convID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []models.Message{}, nil
	}

	all := s.messages[convID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]models.Message, len(all))
	copy(out, all)
	return out, nil
}
