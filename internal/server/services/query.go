package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/answer"
	"github.com/dmitrijs2005/gophchat/internal/server/lease"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/google/uuid"
)

const (
	DefaultHistoryLimit = 20
	DefaultAITimeout    = 30 * time.Second
)

// QueryState is a step of HandleQuery.
type QueryState string

const (
	StateReceived              QueryState = "RECEIVED"
	StateResolvingConversation QueryState = "RESOLVING_CONVERSATION"
	StateAwaitingAnswer        QueryState = "AWAITING_ANSWER"
	StatePersisting            QueryState = "PERSISTING"
	StateCompleted             QueryState = "COMPLETED"
	StateFailed                QueryState = "FAILED"
)

// QueryResult is the outcome of a successful query.
type QueryResult struct {
	ConversationID     string
	Title              string
	Answer             string
	UserMessageID      string
	AssistantMessageID string
}

// QueryError reports a failed query together with the conversation it was
// bound to, if resolution got that far. Nothing of the query is stored.
type QueryError struct {
	ConversationID string
	State          QueryState
	Err            error
}

func (e *QueryError) Error() string {
	return e.Err.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// QueryOrchestrator runs one query end to end: resolve the conversation,
// ask the answer provider and store question and answer together.
type QueryOrchestrator struct {
	store        ConversationStore
	provider     answer.Provider
	locker       lease.Locker
	log          logging.Logger
	historyLimit int
	aiTimeout    time.Duration
}

type QueryOption func(*QueryOrchestrator)

// WithHistoryLimit bounds how many earlier messages go to the provider.
func WithHistoryLimit(n int) QueryOption {
	return func(o *QueryOrchestrator) { o.historyLimit = n }
}

// WithAITimeout bounds a single provider call.
func WithAITimeout(d time.Duration) QueryOption {
	return func(o *QueryOrchestrator) { o.aiTimeout = d }
}

// WithLocker serializes queries per conversation.
func WithLocker(l lease.Locker) QueryOption {
	return func(o *QueryOrchestrator) { o.locker = l }
}

func NewQueryOrchestrator(store ConversationStore, provider answer.Provider, log logging.Logger, opts ...QueryOption) *QueryOrchestrator {
	o := &QueryOrchestrator{
		store:        store,
		provider:     provider,
		locker:       lease.Nop{},
		log:          log.With("module", "query"),
		historyLimit: DefaultHistoryLimit,
		aiTimeout:    DefaultAITimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleQuery answers query for userID within the conversation named by ref.
// A nil ref starts a new conversation.
func (o *QueryOrchestrator) HandleQuery(ctx context.Context, userID, query string, ref ConversationRef) (*QueryResult, error) {
	log := o.log.With("query_id", uuid.NewString(), "user_id", userID)
	log.Debug(ctx, "query state", "state", StateReceived)

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query", common.ErrMissingField)
	}
	if ref == nil {
		ref = NewConversation{}
	}

	log.Debug(ctx, "query state", "state", StateResolvingConversation)
	conv, title, err := o.resolve(ctx, userID, query, ref)
	if err != nil {
		return nil, o.fail(ctx, log, StateResolvingConversation, "", err)
	}
	log = log.With("conversation_id", conv.ID)

	release, err := o.locker.Acquire(ctx, conv.ID)
	if err != nil {
		return nil, o.fail(ctx, log, StateResolvingConversation, conv.ID, err)
	}
	defer release()

	log.Debug(ctx, "query state", "state", StateAwaitingAnswer)
	reply, err := o.ask(ctx, userID, conv.ID, query)
	if err != nil {
		return nil, o.fail(ctx, log, StateAwaitingAnswer, conv.ID, err)
	}

	log.Debug(ctx, "query state", "state", StatePersisting)
	ex, err := o.store.AppendExchange(ctx, conv.ID, userID, models.Turn{Question: query, Answer: reply, Title: title})
	if err != nil {
		if !errors.Is(err, common.ErrStorage) && !errors.Is(err, common.ErrorNotFound) {
			err = fmt.Errorf("%w: %v", common.ErrStorage, err)
		}
		return nil, o.fail(ctx, log, StatePersisting, conv.ID, err)
	}

	log.Debug(ctx, "query state", "state", StateCompleted)
	return &QueryResult{
		ConversationID:     conv.ID,
		Title:              ex.Conversation.Title,
		Answer:             reply,
		UserMessageID:      ex.Question.ID,
		AssistantMessageID: ex.Answer.ID,
	}, nil
}

// resolve returns the conversation and, for a conversation still waiting
// for its first exchange, the title that exchange should give it. Until then
// the conversation is listed under DefaultTitle, so a failed first query
// leaves no trace of its text.
func (o *QueryOrchestrator) resolve(ctx context.Context, userID, query string, ref ConversationRef) (*models.Conversation, string, error) {
	switch r := ref.(type) {
	case ExistingConversation:
		c, err := o.store.GetConversation(ctx, r.ID, userID)
		if err != nil {
			return nil, "", err
		}
		if c.MessageCount == 0 && c.Title == DefaultTitle {
			return c, DeriveTitle(query), nil
		}
		return c, "", nil
	case NewConversation:
		title, err := NormalizeTitle(r.Title, DefaultTitle)
		if err != nil {
			return nil, "", err
		}
		pending := ""
		if strings.TrimSpace(r.Title) == "" {
			pending = DeriveTitle(query)
		}
		id, err := o.store.CreateConversation(ctx, userID, title)
		if err != nil {
			return nil, "", err
		}
		return &models.Conversation{ID: id, UserID: userID, Title: title}, pending, nil
	default:
		return nil, "", fmt.Errorf("%w: conversation reference", common.ErrInvalidField)
	}
}

func (o *QueryOrchestrator) ask(ctx context.Context, userID, convID, query string) (string, error) {
	history, err := o.store.RecentMessages(ctx, convID, userID, o.historyLimit)
	if err != nil {
		return "", err
	}

	actx, cancel := context.WithTimeout(ctx, o.aiTimeout)
	defer cancel()

	reply, err := o.provider.Answer(actx, history, query)
	if err == nil {
		return reply, nil
	}

	switch {
	case errors.Is(err, answer.ErrTimeout), errors.Is(err, answer.ErrUnavailable), errors.Is(err, answer.ErrRejected):
		return "", err
	case actx.Err() != nil:
		return "", fmt.Errorf("%w: %v", answer.ErrTimeout, err)
	default:
		return "", fmt.Errorf("%w: %v", answer.ErrUnavailable, err)
	}
}

func (o *QueryOrchestrator) fail(ctx context.Context, log logging.Logger, state QueryState, convID string, err error) error {
	level := log.Warn
	if errors.Is(err, common.ErrStorage) {
		level = log.Error
	}
	level(ctx, "query failed", "state", StateFailed, "failed_in", state, "error", err)

	return &QueryError{ConversationID: convID, State: state, Err: err}
}
