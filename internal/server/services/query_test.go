package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/answer"
	"github.com/dmitrijs2005/gophchat/internal/server/lease"
	"github.com/dmitrijs2005/gophchat/internal/server/memstore"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	delay   time.Duration
	calls   int
	history []models.Message
}

func (p *fakeProvider) Answer(ctx context.Context, history []models.Message, query string) (string, error) {
	p.mu.Lock()
	p.calls++
	p.history = history
	delay, reply, err := p.delay, p.reply, p.err
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if reply == "" {
		return "echo: " + query, nil
	}
	return reply, nil
}

// failingStore lets chosen operations fail on top of a working memstore.
type failingStore struct {
	*memstore.Store
	appendErr error
}

func (s *failingStore) AppendExchange(ctx context.Context, convID, userID string, turn models.Turn) (*models.Exchange, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	return s.Store.AppendExchange(ctx, convID, userID, turn)
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string) (func(), error) { return nil, lease.ErrBusy }

func newOrchestrator(store ConversationStore, p answer.Provider, opts ...QueryOption) *QueryOrchestrator {
	return NewQueryOrchestrator(store, p, logging.Nop(), opts...)
}

func TestHandleQuery_NewConversation(t *testing.T) {
	store := memstore.New()
	o := newOrchestrator(store, &fakeProvider{reply: "Paris."})
	ctx := context.Background()

	res, err := o.HandleQuery(ctx, "u1", "What is the capital of France?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Paris.", res.Answer)
	assert.Equal(t, "What is the capital of France?", res.Title)
	assert.NotEmpty(t, res.ConversationID)

	msgs, err := store.GetMessages(ctx, res.ConversationID, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "What is the capital of France?", msgs[0].Content)
	assert.Equal(t, res.UserMessageID, msgs[0].ID)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, res.AssistantMessageID, msgs[1].ID)
}

func TestHandleQuery_ExplicitAndDerivedTitles(t *testing.T) {
	o := newOrchestrator(memstore.New(), &fakeProvider{})
	ctx := context.Background()

	res, err := o.HandleQuery(ctx, "u1", "hi", NewConversation{Title: "  Trip plans "})
	require.NoError(t, err)
	assert.Equal(t, "Trip plans", res.Title)

	long := strings.Repeat("word ", 30)
	res, err = o.HandleQuery(ctx, "u1", long, NewConversation{})
	require.NoError(t, err)
	assert.Len(t, []rune(res.Title), 50)
	assert.True(t, strings.HasSuffix(res.Title, "..."))
}

func TestHandleQuery_ContinuesWithHistory(t *testing.T) {
	store := memstore.New()
	p := &fakeProvider{}
	o := newOrchestrator(store, p, WithHistoryLimit(3))
	ctx := context.Background()

	first, err := o.HandleQuery(ctx, "u1", "one", nil)
	require.NoError(t, err)
	ref := ExistingConversation{ID: first.ConversationID}

	_, err = o.HandleQuery(ctx, "u1", "two", ref)
	require.NoError(t, err)
	_, err = o.HandleQuery(ctx, "u1", "three", ref)
	require.NoError(t, err)

	require.Len(t, p.history, 3)
	assert.Equal(t, "echo: one", p.history[0].Content)
	assert.Equal(t, "two", p.history[1].Content)
	assert.Equal(t, "echo: two", p.history[2].Content)

	msgs, err := store.GetMessages(ctx, first.ConversationID, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 6)
	for i, m := range msgs {
		assert.Equal(t, i+1, m.Seq)
	}
}

func TestHandleQuery_EmptyQuery(t *testing.T) {
	store := memstore.New()
	p := &fakeProvider{}
	o := newOrchestrator(store, p)

	_, err := o.HandleQuery(context.Background(), "u1", "   ", nil)
	require.ErrorIs(t, err, common.ErrMissingField)
	assert.Zero(t, p.calls)

	list, err := store.ListConversations(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHandleQuery_OtherUsersConversation(t *testing.T) {
	store := memstore.New()
	p := &fakeProvider{}
	o := newOrchestrator(store, p)
	ctx := context.Background()

	res, err := o.HandleQuery(ctx, "alice", "secret stuff", nil)
	require.NoError(t, err)

	_, err = o.HandleQuery(ctx, "mallory", "peek", ExistingConversation{ID: res.ConversationID})
	require.ErrorIs(t, err, common.ErrorNotFound)

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, StateResolvingConversation, qe.State)
	assert.Empty(t, qe.ConversationID)
	assert.Equal(t, 1, p.calls)
}

func TestHandleQuery_ProviderFailureStoresNothing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unavailable", answer.ErrUnavailable, answer.ErrUnavailable},
		{"rejected", answer.ErrRejected, answer.ErrRejected},
		{"unknown error", errors.New("boom"), answer.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			o := newOrchestrator(store, &fakeProvider{err: tt.err})
			ctx := context.Background()

			_, err := o.HandleQuery(ctx, "u1", "hello", nil)
			require.ErrorIs(t, err, tt.want)

			var qe *QueryError
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, StateAwaitingAnswer, qe.State)
			require.NotEmpty(t, qe.ConversationID)

			msgs, err := store.GetMessages(ctx, qe.ConversationID, "u1")
			require.NoError(t, err)
			assert.Empty(t, msgs)

			conv, err := store.GetConversation(ctx, qe.ConversationID, "u1")
			require.NoError(t, err)
			assert.Equal(t, DefaultTitle, conv.Title, "failed query text is not listed")
		})
	}
}

func TestHandleQuery_RetryIntoEmptyConversationTakesTitle(t *testing.T) {
	store := memstore.New()
	p := &fakeProvider{err: answer.ErrUnavailable}
	o := newOrchestrator(store, p)
	ctx := context.Background()

	_, err := o.HandleQuery(ctx, "u1", "What is the capital of France?", nil)
	var qe *QueryError
	require.ErrorAs(t, err, &qe)

	p.mu.Lock()
	p.err = nil
	p.mu.Unlock()

	res, err := o.HandleQuery(ctx, "u1", "What is the capital of France?", ExistingConversation{ID: qe.ConversationID})
	require.NoError(t, err)
	assert.Equal(t, qe.ConversationID, res.ConversationID)
	assert.Equal(t, "What is the capital of France?", res.Title)

	list, err := store.ListConversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "What is the capital of France?", list[0].Title)

	res, err = o.HandleQuery(ctx, "u1", "And of Spain?", ExistingConversation{ID: qe.ConversationID})
	require.NoError(t, err)
	assert.Equal(t, "What is the capital of France?", res.Title, "title is set once")
}

func TestHandleQuery_ExplicitTitleKeptOnFailure(t *testing.T) {
	store := memstore.New()
	o := newOrchestrator(store, &fakeProvider{err: answer.ErrRejected})
	ctx := context.Background()

	_, err := o.HandleQuery(ctx, "u1", "hello", NewConversation{Title: "Trip"})
	var qe *QueryError
	require.ErrorAs(t, err, &qe)

	conv, err := store.GetConversation(ctx, qe.ConversationID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Trip", conv.Title)
}

func TestHandleQuery_Timeout(t *testing.T) {
	store := memstore.New()
	o := newOrchestrator(store, &fakeProvider{delay: time.Second}, WithAITimeout(20*time.Millisecond))

	start := time.Now()
	_, err := o.HandleQuery(context.Background(), "u1", "slow", nil)
	require.ErrorIs(t, err, answer.ErrTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestHandleQuery_CallerCancelled(t *testing.T) {
	store := memstore.New()
	o := newOrchestrator(store, &fakeProvider{delay: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	defer cancel()

	start := time.Now()
	_, err := o.HandleQuery(ctx, "u1", "slow", nil)
	require.ErrorIs(t, err, answer.ErrTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, StateAwaitingAnswer, qe.State)

	msgs, err := store.GetMessages(context.Background(), qe.ConversationID, "u1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHandleQuery_StorageFailure(t *testing.T) {
	store := &failingStore{Store: memstore.New(), appendErr: errors.New("connection reset")}
	o := newOrchestrator(store, &fakeProvider{})

	_, err := o.HandleQuery(context.Background(), "u1", "hello", nil)
	require.ErrorIs(t, err, common.ErrStorage)

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, StatePersisting, qe.State)
}

func TestHandleQuery_Busy(t *testing.T) {
	p := &fakeProvider{}
	o := newOrchestrator(memstore.New(), p, WithLocker(busyLocker{}))

	_, err := o.HandleQuery(context.Background(), "u1", "hello", nil)
	require.ErrorIs(t, err, lease.ErrBusy)
	assert.Zero(t, p.calls)
}

func TestHandleQuery_SerializedByLocalLease(t *testing.T) {
	store := memstore.New()
	o := newOrchestrator(store, &fakeProvider{delay: 5 * time.Millisecond}, WithLocker(lease.NewLocal()))
	ctx := context.Background()

	first, err := o.HandleQuery(ctx, "u1", "start", nil)
	require.NoError(t, err)
	ref := ExistingConversation{ID: first.ConversationID}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.HandleQuery(ctx, "u1", "again", ref)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	msgs, err := store.GetMessages(ctx, first.ConversationID, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 18)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, models.RoleUser, msgs[i].Role)
		assert.Equal(t, models.RoleAssistant, msgs[i+1].Role)
	}
}

func TestRefFor(t *testing.T) {
	assert.Equal(t, ExistingConversation{ID: "abc"}, RefFor(" abc ", "ignored"))
	assert.Equal(t, NewConversation{Title: "T"}, RefFor("", "T"))
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "hello world", DeriveTitle("  hello \n world "))
	assert.Equal(t, strings.Repeat("a", 50), DeriveTitle(strings.Repeat("a", 50)))
	assert.Equal(t, strings.Repeat("я", 47)+"...", DeriveTitle(strings.Repeat("я", 51)))
}

func TestNormalizeTitle(t *testing.T) {
	got, err := NormalizeTitle(" ", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	_, err = NormalizeTitle(strings.Repeat("x", 201), "")
	require.ErrorIs(t, err, common.ErrInvalidField)
}
