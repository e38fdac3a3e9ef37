package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider answers through the chat completions API.
type OpenAIProvider struct {
	client       openai.Client
	model        string
	systemPrompt string
}

// NewOpenAIProvider builds a provider. An empty baseURL uses the public API.
func NewOpenAIProvider(apiKey, baseURL, model, systemPrompt string, timeout time.Duration) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}

	return &OpenAIProvider{
		client:       openai.NewClient(opts...),
		model:        model,
		systemPrompt: systemPrompt,
	}
}

func (p *OpenAIProvider) messages(history []models.Message, query string) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if p.systemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(p.systemPrompt))
	}
	for _, m := range history {
		switch m.Role {
		case models.RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case models.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		}
	}
	return append(msgs, openai.UserMessage(query))
}

func (p *OpenAIProvider) Answer(ctx context.Context, history []models.Message, query string) (string, error) {
	res, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: p.messages(history, query),
	})
	if err != nil {
		if cerr := contextError(ctx); cerr != nil {
			return "", cerr
		}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", statusError(apiErr.StatusCode, apiErr.Message)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(res.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrRejected)
	}
	content := res.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty answer", ErrRejected)
	}
	return content, nil
}
