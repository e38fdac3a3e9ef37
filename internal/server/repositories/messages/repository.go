package messages

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, msgs ...*models.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	ListRecent(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
}
