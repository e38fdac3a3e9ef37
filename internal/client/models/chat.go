// Package models defines the request and response bodies the CLI exchanges
// with the gophchat server.
package models

import "time"

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is what the server returns after register or login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

type QueryRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversationId,omitempty"`
	Title          string `json:"title,omitempty"`
}

type QueryResponse struct {
	ConversationID string `json:"conversationId"`
	Answer         string `json:"answer"`
	Title          string `json:"title"`
	MessageID      string `json:"messageId"`
}

type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

type History struct {
	Conversations      []Conversation `json:"conversations"`
	TotalConversations int            `json:"totalConversations"`
}

type CreateConversationRequest struct {
	Title string `json:"title,omitempty"`
}

type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Export struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ErrorBody is the JSON body of a failed request.
type ErrorBody struct {
	Error          string   `json:"error"`
	Message        string   `json:"message"`
	Details        []string `json:"details"`
	ConversationID string   `json:"conversationId"`
}
