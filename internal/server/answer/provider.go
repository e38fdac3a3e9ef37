// Package answer talks to the external service that produces replies to
// user queries.
package answer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

var (
	// ErrTimeout is returned when the call ran out of time or the caller went away.
	ErrTimeout = errors.New("ai service timed out")
	// ErrUnavailable is returned when the service cannot be reached or is overloaded.
	ErrUnavailable = errors.New("ai service unavailable")
	// ErrRejected is returned when the service refused the request or replied with nothing usable.
	ErrRejected = errors.New("ai service rejected the query")
)

// Provider produces an answer to query given the earlier turns of the
// conversation, oldest first. Implementations do not retry.
type Provider interface {
	Answer(ctx context.Context, history []models.Message, query string) (string, error)
}

// Settings selects and configures a Provider.
type Settings struct {
	Provider     string
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	Timeout      time.Duration
}

// New builds the provider named by s.Provider ("http" or "openai").
func New(s Settings) (Provider, error) {
	switch s.Provider {
	case "http", "":
		return NewHTTPProvider(s.BaseURL, s.Timeout), nil
	case "openai":
		return NewOpenAIProvider(s.APIKey, s.BaseURL, s.Model, s.SystemPrompt, s.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", s.Provider)
	}
}

// contextError maps a finished context to ErrTimeout.
func contextError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return nil
}

// statusError classifies an upstream HTTP status.
func statusError(status int, detail string) error {
	switch {
	case status == 408 || status == 504:
		return fmt.Errorf("%w: status %d: %s", ErrTimeout, status, detail)
	case status == 429 || status >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, status, detail)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, status, detail)
	}
}
