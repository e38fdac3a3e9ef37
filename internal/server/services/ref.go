package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophchat/internal/common"
)

const (
	// DefaultTitle names conversations created without a title or query.
	DefaultTitle = "New Chat"

	derivedTitleMax = 50
	maxTitleLen     = 200
)

// ConversationRef tells HandleQuery which conversation a query belongs to.
// It is either NewConversation or ExistingConversation.
type ConversationRef interface {
	conversationRef()
}

// NewConversation starts a conversation. An empty Title is derived from the
// first query.
type NewConversation struct {
	Title string
}

// ExistingConversation continues a conversation owned by the caller.
type ExistingConversation struct {
	ID string
}

func (NewConversation) conversationRef()      {}
func (ExistingConversation) conversationRef() {}

// RefFor picks the variant from the optional request fields.
func RefFor(conversationID, title string) ConversationRef {
	if id := strings.TrimSpace(conversationID); id != "" {
		return ExistingConversation{ID: id}
	}
	return NewConversation{Title: title}
}

// DeriveTitle turns a first query into a conversation title: short queries
// are used as they are, longer ones are cut to 47 characters plus "...".
func DeriveTitle(query string) string {
	q := strings.Join(strings.Fields(query), " ")
	if utf8.RuneCountInString(q) <= derivedTitleMax {
		return q
	}
	r := []rune(q)
	return string(r[:derivedTitleMax-3]) + "..."
}

// NormalizeTitle trims an explicit title, falling back to fallback when it
// is blank.
func NormalizeTitle(title, fallback string) (string, error) {
	t := strings.TrimSpace(title)
	if t == "" {
		t = fallback
	}
	if utf8.RuneCountInString(t) > maxTitleLen {
		return "", fmt.Errorf("%w: title must be at most %d characters", common.ErrInvalidField, maxTitleLen)
	}
	return t, nil
}
