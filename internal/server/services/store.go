// Package services contains the server-side business logic: account
// registration and login, conversation storage and the query pipeline that
// ties conversations to the answering service.
package services

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

// ConversationStore keeps conversations and their messages. Every method is
// scoped to userID; conversations of other users behave as if they did not
// exist and yield common.ErrorNotFound.
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID, title string) (string, error)
	GetConversation(ctx context.Context, convID, userID string) (*models.Conversation, error)
	// AppendExchange stores the turn's USER message and ASSISTANT reply as
	// the next two messages of the conversation, and its Title if set.
	// Either all of it is written or nothing is.
	AppendExchange(ctx context.Context, convID, userID string, turn models.Turn) (*models.Exchange, error)
	// ListConversations orders by last activity, newest first.
	ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	GetMessages(ctx context.Context, convID, userID string) ([]models.Message, error)
	// RecentMessages returns at most limit of the newest messages, oldest first.
	RecentMessages(ctx context.Context, convID, userID string, limit int) ([]models.Message, error)
}

// UserStore keeps registered accounts. Emails are stored normalized.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
}
