package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/go-resty/resty/v2"
)

// Client is the API surface the CLI services depend on.
type Client interface {
	Ping(ctx context.Context) error
	Register(ctx context.Context, req models.RegisterRequest) (*models.Session, error)
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error)
	History(ctx context.Context) (*models.History, error)
	CreateConversation(ctx context.Context, title string) (*models.Conversation, error)
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	Export(ctx context.Context, conversationID string) (*models.Export, error)
	Download(ctx context.Context, url, path string) error
	SetToken(token string)
	Token() string
}

type HTTPClient struct {
	rc *resty.Client

	mu    sync.RWMutex
	token string
}

// NewHTTPClient returns a client for the server at baseURL. timeout bounds
// every request, including the wait for an answer to a query.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if timeout > 0 {
		rc.SetTimeout(timeout)
	}
	return &HTTPClient{rc: rc}
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) request(ctx context.Context, auth bool) (*resty.Request, error) {
	req := c.rc.R().SetContext(ctx)
	if auth {
		token := c.Token()
		if token == "" {
			return nil, ErrNotLoggedIn
		}
		req.SetAuthToken(token)
	}
	return req, nil
}

// call sends req and decodes a 2xx body into out, which may be nil.
func (c *HTTPClient) call(req *resty.Request, method, path string, out any) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode()}
		var body models.ErrorBody
		if json.Unmarshal(resp.Body(), &body) == nil {
			apiErr.Code = body.Error
			apiErr.Message = body.Message
			apiErr.Details = body.Details
			apiErr.ConversationID = body.ConversationID
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(resp.String())
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			c.SetToken("")
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	req, _ := c.request(ctx, false)
	return c.call(req, resty.MethodGet, "/ping", nil)
}

func (c *HTTPClient) Register(ctx context.Context, r models.RegisterRequest) (*models.Session, error) {
	return c.authenticate(ctx, "/auth/register", r)
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.Session, error) {
	return c.authenticate(ctx, "/auth/login", models.LoginRequest{Email: email, Password: password})
}

func (c *HTTPClient) authenticate(ctx context.Context, path string, body any) (*models.Session, error) {
	req, _ := c.request(ctx, false)
	var s models.Session
	if err := c.call(req.SetBody(body), resty.MethodPost, path, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.Token)
	return &s, nil
}

func (c *HTTPClient) Query(ctx context.Context, q models.QueryRequest) (*models.QueryResponse, error) {
	req, err := c.request(ctx, true)
	if err != nil {
		return nil, err
	}
	var res models.QueryResponse
	if err := c.call(req.SetBody(q), resty.MethodPost, "/chat/query", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) History(ctx context.Context) (*models.History, error) {
	req, err := c.request(ctx, true)
	if err != nil {
		return nil, err
	}
	var res models.History
	if err := c.call(req, resty.MethodGet, "/chat/history", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	req, err := c.request(ctx, true)
	if err != nil {
		return nil, err
	}
	var res models.Conversation
	body := models.CreateConversationRequest{Title: title}
	if err := c.call(req.SetBody(body), resty.MethodPost, "/chat/conversations", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	req, err := c.request(ctx, true)
	if err != nil {
		return nil, err
	}
	var res []models.Message
	req.SetPathParam("id", conversationID)
	if err := c.call(req, resty.MethodGet, "/chat/conversations/{id}/messages", &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *HTTPClient) Export(ctx context.Context, conversationID string) (*models.Export, error) {
	req, err := c.request(ctx, true)
	if err != nil {
		return nil, err
	}
	var res models.Export
	req.SetPathParam("id", conversationID)
	if err := c.call(req, resty.MethodPost, "/chat/conversations/{id}/export", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Download saves the object behind a presigned url to path. The session
// token is not sent.
func (c *HTTPClient) Download(ctx context.Context, url, path string) error {
	resp, err := resty.New().R().SetContext(ctx).SetOutput(path).Get(url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("download failed: %s", resp.Status())
	}
	return nil
}
