package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type handlerFunc func(r *http.Request) (int, any, error)

// handle writes the value returned by h as JSON, or an ErrorResponse when h
// fails.
func (s *HTTPServer) handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, res, err := h(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := writeJSON(w, status, res); err != nil {
			s.logger.Warn(r.Context(), "writing response", "error", err)
		}
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	if werr := writeJSON(w, status, body); werr != nil {
		s.logger.Warn(r.Context(), "writing error response", "error", werr)
	}
}

func decode[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return v, codedErrorf(http.StatusBadRequest, "empty request body")
		}
		return v, codedErrorf(http.StatusBadRequest, "unable to parse request body")
	}
	return v, nil
}

// decodeOptional is decode for bodies that may be left out entirely. An
// empty body yields the zero value, whatever the request's ContentLength says.
func decodeOptional[T any](r *http.Request) (T, error) {
	var v T
	if r.Body == nil || r.Body == http.NoBody {
		return v, nil
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return v, nil
		}
		return v, codedErrorf(http.StatusBadRequest, "unable to parse request body")
	}
	return v, nil
}

func identity(r *http.Request) (string, error) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		return "", common.ErrorUnauthorized
	}
	return id.UserID, nil
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

type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
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
	UserMessageID  string `json:"userMessageId"`
}

type ConversationResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

type HistoryResponse struct {
	Conversations      []ConversationResponse `json:"conversations"`
	TotalConversations int                    `json:"totalConversations"`
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type MessageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type ExportResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func authResponse(res *services.AuthResult) AuthResponse {
	return AuthResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User: UserResponse{
			ID:        res.User.ID,
			Name:      res.User.Name,
			Email:     res.User.Email,
			CreatedAt: res.User.CreatedAt,
		},
	}
}

func conversationResponse(c models.ConversationSummary) ConversationResponse {
	return ConversationResponse{
		ID:           c.ID,
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: c.MessageCount,
	}
}

func (s *HTTPServer) ping(*http.Request) (int, any, error) {
	return http.StatusOK, map[string]string{"response": "pong"}, nil
}

func (s *HTTPServer) register(r *http.Request) (int, any, error) {
	req, err := decode[RegisterRequest](r)
	if err != nil {
		return 0, nil, err
	}

	res, err := s.users.Register(r.Context(), services.RegisterRequest{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, authResponse(res), nil
}

func (s *HTTPServer) login(r *http.Request) (int, any, error) {
	req, err := decode[LoginRequest](r)
	if err != nil {
		return 0, nil, err
	}

	res, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, authResponse(res), nil
}

func (s *HTTPServer) query(r *http.Request) (int, any, error) {
	userID, err := identity(r)
	if err != nil {
		return 0, nil, err
	}
	req, err := decode[QueryRequest](r)
	if err != nil {
		return 0, nil, err
	}

	res, err := s.queries.HandleQuery(r.Context(), userID, req.Query, services.RefFor(req.ConversationID, req.Title))
	if err != nil {
		return 0, nil, err
	}

	return http.StatusOK, QueryResponse{
		ConversationID: res.ConversationID,
		Answer:         res.Answer,
		Title:          res.Title,
		MessageID:      res.AssistantMessageID,
		UserMessageID:  res.UserMessageID,
	}, nil
}

func (s *HTTPServer) history(r *http.Request) (int, any, error) {
	userID, err := identity(r)
	if err != nil {
		return 0, nil, err
	}

	list, err := s.conversations.ListConversations(r.Context(), userID)
	if err != nil {
		return 0, nil, err
	}

	out := HistoryResponse{Conversations: make([]ConversationResponse, 0, len(list)), TotalConversations: len(list)}
	for _, c := range list {
		out.Conversations = append(out.Conversations, conversationResponse(c))
	}
	return http.StatusOK, out, nil
}

func (s *HTTPServer) createConversation(r *http.Request) (int, any, error) {
	userID, err := identity(r)
	if err != nil {
		return 0, nil, err
	}

	req, err := decodeOptional[CreateConversationRequest](r)
	if err != nil {
		return 0, nil, err
	}

	title, err := services.NormalizeTitle(req.Title, services.DefaultTitle)
	if err != nil {
		return 0, nil, err
	}

	id, err := s.conversations.CreateConversation(r.Context(), userID, title)
	if err != nil {
		return 0, nil, err
	}
	conv, err := s.conversations.GetConversation(r.Context(), id, userID)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, conversationResponse(conv.Summary()), nil
}

func (s *HTTPServer) messages(r *http.Request) (int, any, error) {
	userID, err := identity(r)
	if err != nil {
		return 0, nil, err
	}

	msgs, err := s.conversations.GetMessages(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		return 0, nil, err
	}

	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageResponse{ID: m.ID, Role: string(m.Role), Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return http.StatusOK, out, nil
}

func (s *HTTPServer) export(r *http.Request) (int, any, error) {
	userID, err := identity(r)
	if err != nil {
		return 0, nil, err
	}

	res, err := s.exporter.Export(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, ExportResponse{Key: res.Key, URL: res.URL, ExpiresAt: res.ExpiresAt}, nil
}
