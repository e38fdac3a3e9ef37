package conversations

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Conversation) (*models.Conversation, error)
	GetOwned(ctx context.Context, id, userID string) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	// Advance bumps the message counter by n, replaces the title when title
	// is not empty and stamps updated_at with the database clock once the
	// row lock is held. The lock lasts until the surrounding transaction
	// ends. It returns the conversation as updated.
	Advance(ctx context.Context, id, userID string, n int, title string) (*models.Conversation, error)
}
