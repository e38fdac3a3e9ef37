package answer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/go-resty/resty/v2"
)

type historyItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type queryRequest struct {
	Query   string        `json:"query"`
	History []historyItem `json:"history"`
}

type queryResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}

// HTTPProvider calls a service exposing POST /query that takes
// {"query", "history"} and returns {"answer"}.
type HTTPProvider struct {
	client *resty.Client
}

// NewHTTPProvider builds a provider for baseURL. timeout bounds a single
// call; zero leaves it to the caller's context.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPProvider{client: client}
}

func (p *HTTPProvider) Answer(ctx context.Context, history []models.Message, query string) (string, error) {
	req := queryRequest{Query: query, History: make([]historyItem, 0, len(history))}
	for _, m := range history {
		req.History = append(req.History, historyItem{Role: strings.ToLower(string(m.Role)), Content: m.Content})
	}

	res, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/query")
	if err != nil {
		if cerr := contextError(ctx); cerr != nil {
			return "", cerr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var out queryResponse
	decodeErr := json.Unmarshal(res.Body(), &out)

	if res.IsError() {
		detail := out.Error
		if decodeErr != nil || detail == "" {
			detail = strings.TrimSpace(string(res.Body()))
		}
		return "", statusError(res.StatusCode(), detail)
	}

	if decodeErr != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrRejected, decodeErr)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrRejected, out.Error)
	}
	if strings.TrimSpace(out.Answer) == "" {
		return "", fmt.Errorf("%w: empty answer", ErrRejected)
	}

	return out.Answer, nil
}
