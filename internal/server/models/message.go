package models

import "time"

type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one turn of a conversation. Seq starts at 1 and increases by
// one per message within its conversation.
type Message struct {
	ID             string
	ConversationID string
	Seq            int
	Role           Role
	Content        string
	CreatedAt      time.Time
}

// Turn is what AppendExchange writes: the question, its answer and, when
// Title is set, a new conversation title applied in the same write.
type Turn struct {
	Question string
	Answer   string
	Title    string
}

// Exchange is a question and its answer appended to a conversation together.
type Exchange struct {
	Conversation *Conversation
	Question     *Message
	Answer       *Message
}
