package models

import "time"

// Conversation is a titled, ordered exchange of messages owned by one user.
// MessageCount is also the seq of the newest message.
type Conversation struct {
	ID           string
	UserID       string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// ConversationSummary is the listing view of a conversation.
type ConversationSummary struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// Summary returns the listing view of c.
func (c *Conversation) Summary() ConversationSummary {
	return ConversationSummary{
		ID:           c.ID,
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: c.MessageCount,
	}
}
