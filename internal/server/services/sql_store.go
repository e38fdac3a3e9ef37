package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// SQLStore implements ConversationStore and UserStore on top of the
// repositories handed out by a RepositoryManager.
type SQLStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
	newID       func() string
}

func NewSQLStore(db *sql.DB, m repomanager.RepositoryManager) *SQLStore {
	return &SQLStore{
		db:          db,
		repomanager: m,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// storageError passes ownership misses through and tags everything else as
// a storage failure.
func storageError(op string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("%s: %w: %v", op, common.ErrStorage, err)
}

// validID rejects ids that cannot name any conversation.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *SQLStore) CreateConversation(ctx context.Context, userID, title string) (string, error) {
	now := s.now()
	c := &models.Conversation{
		ID:        s.newID(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.repomanager.Conversations(s.db).Create(ctx, c); err != nil {
		return "", storageError("create conversation", err)
	}
	return c.ID, nil
}

func (s *SQLStore) GetConversation(ctx context.Context, convID, userID string) (*models.Conversation, error) {
	if !validID(convID) {
		return nil, common.ErrorNotFound
	}

	c, err := s.repomanager.Conversations(s.db).GetOwned(ctx, convID, userID)
	if err != nil {
		return nil, storageError("get conversation", err)
	}
	return c, nil
}

func (s *SQLStore) AppendExchange(ctx context.Context, convID, userID string, turn models.Turn) (*models.Exchange, error) {
	if !validID(convID) {
		return nil, common.ErrorNotFound
	}

	var ex *models.Exchange
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		conv, err := s.repomanager.Conversations(tx).Advance(ctx, convID, userID, 2, turn.Title)
		if err != nil {
			return err
		}

		// messages share the timestamp the database gave the conversation
		at := conv.UpdatedAt
		question := &models.Message{
			ID:             s.newID(),
			ConversationID: convID,
			Seq:            conv.MessageCount - 1,
			Role:           models.RoleUser,
			Content:        turn.Question,
			CreatedAt:      at,
		}
		reply := &models.Message{
			ID:             s.newID(),
			ConversationID: convID,
			Seq:            conv.MessageCount,
			Role:           models.RoleAssistant,
			Content:        turn.Answer,
			CreatedAt:      at,
		}

		if err := s.repomanager.Messages(tx).Insert(ctx, question, reply); err != nil {
			return err
		}

		ex = &models.Exchange{Conversation: conv, Question: question, Answer: reply}
		return nil
	})
	if err != nil {
		return nil, storageError("append exchange", err)
	}

	return ex, nil
}

func (s *SQLStore) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	list, err := s.repomanager.Conversations(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, storageError("list conversations", err)
	}
	return list, nil
}

func (s *SQLStore) GetMessages(ctx context.Context, convID, userID string) ([]models.Message, error) {
	return s.readMessages(ctx, convID, userID, func(ctx context.Context, tx dbx.DBTX) ([]models.Message, error) {
		return s.repomanager.Messages(tx).ListByConversation(ctx, convID)
	})
}

func (s *SQLStore) RecentMessages(ctx context.Context, convID, userID string, limit int) ([]models.Message, error) {
	return s.readMessages(ctx, convID, userID, func(ctx context.Context, tx dbx.DBTX) ([]models.Message, error) {
		if limit <= 0 {
			return []models.Message{}, nil
		}
		return s.repomanager.Messages(tx).ListRecent(ctx, convID, limit)
	})
}

// readMessages checks ownership and runs read in the same snapshot.
func (s *SQLStore) readMessages(ctx context.Context, convID, userID string,
	read func(ctx context.Context, tx dbx.DBTX) ([]models.Message, error)) ([]models.Message, error) {

	if !validID(convID) {
		return nil, common.ErrorNotFound
	}

	var msgs []models.Message
	err := dbx.WithTx(ctx, s.db, dbx.ReadSnapshot, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Conversations(tx).GetOwned(ctx, convID, userID); err != nil {
			return err
		}
		var err error
		msgs, err = read(ctx, tx)
		return err
	})
	if err != nil {
		return nil, storageError("read messages", err)
	}
	return msgs, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = s.newID()
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, storageError("create user", err)
	}
	return u, nil
}

func (s *SQLStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		return nil, storageError("find user", err)
	}
	return u, nil
}
