package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophchat/internal/filex"
)

// ChatService sends questions and browses conversations. The next question
// goes to the current conversation, or starts a new one when there is none.
type ChatService interface {
	Ask(ctx context.Context, question string) (*models.QueryResponse, error)
	// StartNew makes the next question open a conversation titled title.
	StartNew(ctx context.Context, title string) error
	Use(ctx context.Context, conversationID string) error
	Current(ctx context.Context) (string, error)
	History(ctx context.Context) (*models.History, error)
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	// Export stores the transcript of conversationID under dir and returns
	// the file path.
	Export(ctx context.Context, conversationID, dir string) (string, error)
}

type chatService struct {
	client client.Client
	db     *sql.DB

	pendingTitle string
}

func NewChatService(c client.Client, db *sql.DB) ChatService {
	return &chatService{client: c, db: db}
}

func (s *chatService) repo() metadata.Repository {
	return metadata.NewSQLiteRepository(s.db)
}

// checkAuth drops the stored session once the server stops accepting it.
func (s *chatService) checkAuth(ctx context.Context, err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		if cerr := clearSession(ctx, s.db); cerr != nil {
			return errors.Join(err, cerr)
		}
	}
	return err
}

func (s *chatService) Current(ctx context.Context) (string, error) {
	id, _, err := s.repo().Get(ctx, keyConversation)
	return id, err
}

func (s *chatService) Ask(ctx context.Context, question string) (*models.QueryResponse, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	req := models.QueryRequest{Query: question, ConversationID: current}
	if current == "" {
		req.Title = s.pendingTitle
	}

	res, err := s.client.Query(ctx, req)
	if err != nil {
		// a failed first question still created the conversation; retry into it
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.ConversationID != "" && current == "" {
			if serr := s.Use(ctx, apiErr.ConversationID); serr != nil {
				return nil, errors.Join(err, serr)
			}
		}
		return nil, s.checkAuth(ctx, err)
	}

	if err := s.Use(ctx, res.ConversationID); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *chatService) StartNew(ctx context.Context, title string) error {
	s.pendingTitle = title
	return s.repo().Delete(ctx, keyConversation)
}

func (s *chatService) Use(ctx context.Context, conversationID string) error {
	s.pendingTitle = ""
	return s.repo().Set(ctx, keyConversation, conversationID)
}

func (s *chatService) History(ctx context.Context) (*models.History, error) {
	h, err := s.client.History(ctx)
	if err != nil {
		return nil, s.checkAuth(ctx, err)
	}
	return h, nil
}

func (s *chatService) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	msgs, err := s.client.Messages(ctx, conversationID)
	if err != nil {
		return nil, s.checkAuth(ctx, err)
	}
	return msgs, nil
}

func (s *chatService) Export(ctx context.Context, conversationID, dir string) (string, error) {
	exp, err := s.client.Export(ctx, conversationID)
	if err != nil {
		return "", s.checkAuth(ctx, err)
	}

	dir, err = filex.EnsureDir(dir)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, conversationID+"-"+filepath.Base(exp.Key))
	if err := s.client.Download(ctx, exp.URL, path); err != nil {
		return "", fmt.Errorf("download transcript: %w", err)
	}
	return path, nil
}
