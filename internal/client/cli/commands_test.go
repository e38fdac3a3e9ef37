package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/client/config"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	user    *models.User
	err     error
	pingErr error

	gotName, gotEmail   string
	gotPass, gotConfirm string
	loggedOut           bool
}

func (f *fakeAuth) Register(ctx context.Context, name, email string, password, confirm []byte) (*models.User, error) {
	f.gotName, f.gotEmail, f.gotPass, f.gotConfirm = name, email, string(password), string(confirm)
	return f.user, f.err
}

func (f *fakeAuth) Login(ctx context.Context, email string, password []byte) (*models.User, error) {
	f.gotEmail, f.gotPass = email, string(password)
	return f.user, f.err
}

func (f *fakeAuth) Restore(ctx context.Context) (*models.User, error) { return f.user, f.err }

func (f *fakeAuth) Logout(ctx context.Context) error {
	f.loggedOut = true
	return f.err
}

func (f *fakeAuth) Ping(ctx context.Context) error { return f.pingErr }

type fakeChat struct {
	current  string
	pending  string
	askRes   *models.QueryResponse
	askErr   error
	asked    []string
	history  *models.History
	messages map[string][]models.Message
	msgErr   error
	exported string
	exportTo string
}

func (f *fakeChat) Ask(ctx context.Context, q string) (*models.QueryResponse, error) {
	f.asked = append(f.asked, q)
	if f.askErr != nil {
		return nil, f.askErr
	}
	f.current = f.askRes.ConversationID
	return f.askRes, nil
}

func (f *fakeChat) StartNew(ctx context.Context, title string) error {
	f.current, f.pending = "", title
	return nil
}

func (f *fakeChat) Use(ctx context.Context, id string) error {
	f.current = id
	return nil
}

func (f *fakeChat) Current(ctx context.Context) (string, error) { return f.current, nil }

func (f *fakeChat) History(ctx context.Context) (*models.History, error) { return f.history, nil }

func (f *fakeChat) Messages(ctx context.Context, id string) ([]models.Message, error) {
	if f.msgErr != nil {
		return nil, f.msgErr
	}
	return f.messages[id], nil
}

func (f *fakeChat) Export(ctx context.Context, id, dir string) (string, error) {
	f.exported, f.exportTo = id, dir
	return dir + "/" + id + "-transcript.json", nil
}

func newTestApp(input string, as *fakeAuth, cs *fakeChat) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return &App{
		config:      &config.Config{ExportDir: "/tmp/out"},
		authService: as,
		chatService: cs,
		reader:      rdr(input),
		out:         &out,
	}, &out
}

func stubPasswords(t *testing.T, pw ...string) {
	t.Helper()
	orig := getPassword
	i := 0
	getPassword = func(prompt string, _ io.Writer) ([]byte, error) {
		p := pw[i]
		i++
		return []byte(p), nil
	}
	t.Cleanup(func() { getPassword = orig })
}

var ann = &models.User{ID: "u-1", Name: "Ann", Email: "ann@example.com"}

func TestApp_Register(t *testing.T) {
	stubPasswords(t, "password1", "password1")

	as := &fakeAuth{user: ann}
	a, out := newTestApp("Ann\nann@example.com\n", as, &fakeChat{})

	require.NoError(t, a.Register(context.Background()))
	require.True(t, a.isLoggedIn())
	require.Equal(t, "(Ann)", a.getStatus())
	require.Equal(t, "Ann", as.gotName)
	require.Equal(t, "ann@example.com", as.gotEmail)
	require.Equal(t, "password1", as.gotPass)
	require.Equal(t, "password1", as.gotConfirm)
	require.Contains(t, out.String(), "Welcome, Ann!")
}

func TestApp_LoginFailureKeepsLoggedOut(t *testing.T) {
	stubPasswords(t, "wrong")

	as := &fakeAuth{err: &client.APIError{Status: 401, Code: "invalid_credentials"}}
	a, _ := newTestApp("ann@example.com\n", as, &fakeChat{})

	err := a.Login(context.Background())
	require.Error(t, err)
	require.False(t, a.isLoggedIn())
	require.Equal(t, "Invalid email or password", describe(err))
}

func TestApp_LoginAndLogout(t *testing.T) {
	stubPasswords(t, "password1")

	as := &fakeAuth{user: ann}
	a, out := newTestApp("ann@example.com\n", as, &fakeChat{})

	require.NoError(t, a.Login(context.Background()))
	require.True(t, a.isLoggedIn())
	require.Contains(t, out.String(), "Logged in as Ann")

	require.NoError(t, a.Logout(context.Background()))
	require.True(t, as.loggedOut)
	require.False(t, a.isLoggedIn())
}

func TestApp_RequiresLogin(t *testing.T) {
	a, _ := newTestApp("", &fakeAuth{}, &fakeChat{})
	ctx := context.Background()

	require.ErrorIs(t, a.Ask(ctx, "hi"), client.ErrNotLoggedIn)
	require.ErrorIs(t, a.New(ctx, ""), client.ErrNotLoggedIn)
	require.ErrorIs(t, a.Use(ctx, "c-1"), client.ErrNotLoggedIn)
	require.ErrorIs(t, a.History(ctx), client.ErrNotLoggedIn)
	require.ErrorIs(t, a.Show(ctx, ""), client.ErrNotLoggedIn)
	require.ErrorIs(t, a.Export(ctx, ""), client.ErrNotLoggedIn)
}

func TestApp_Ask(t *testing.T) {
	ctx := context.Background()
	cs := &fakeChat{askRes: &models.QueryResponse{ConversationID: "c-1", Title: "Capitals", Answer: "Paris."}}
	a, out := newTestApp("typed question\n", &fakeAuth{}, cs)
	a.user = ann

	require.NoError(t, a.Ask(ctx, "What is the capital of France?"))
	require.Contains(t, out.String(), "[c-1] Capitals")
	require.Contains(t, out.String(), "Paris.")

	out.Reset()
	require.NoError(t, a.Ask(ctx, ""))
	require.Equal(t, []string{"What is the capital of France?", "typed question"}, cs.asked)
	require.NotContains(t, out.String(), "[c-1]")
}

func TestApp_AskUnauthorizedLogsOut(t *testing.T) {
	cs := &fakeChat{askErr: &client.APIError{Status: 401, Code: "unauthorized"}}
	a, _ := newTestApp("", &fakeAuth{}, cs)
	a.user = ann

	err := a.Ask(context.Background(), "hello")
	require.ErrorIs(t, err, client.ErrUnauthorized)
	require.False(t, a.isLoggedIn())
}

func TestApp_NewAndUse(t *testing.T) {
	ctx := context.Background()
	cs := &fakeChat{current: "c-1"}
	a, _ := newTestApp("", &fakeAuth{}, cs)
	a.user = ann

	require.NoError(t, a.New(ctx, "Trip"))
	require.Equal(t, "", cs.current)
	require.Equal(t, "Trip", cs.pending)

	require.Error(t, a.Use(ctx, ""))

	require.NoError(t, a.Use(ctx, "c-2"))
	require.Equal(t, "c-2", cs.current)

	cs.msgErr = &client.APIError{Status: 404, Code: "not_found", Message: "conversation not found"}
	err := a.Use(ctx, "c-9")
	require.Error(t, err)
	require.Equal(t, "c-2", cs.current)
	require.Equal(t, "Error: conversation not found", describe(err))
}

func TestApp_History(t *testing.T) {
	ctx := context.Background()
	updated := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	cs := &fakeChat{current: "c-2", history: &models.History{}}
	a, out := newTestApp("", &fakeAuth{}, cs)
	a.user = ann

	require.NoError(t, a.History(ctx))
	require.Contains(t, out.String(), "No conversations yet")

	out.Reset()
	cs.history = &models.History{
		TotalConversations: 2,
		Conversations: []models.Conversation{
			{ID: "c-2", Title: "Recent", MessageCount: 4, UpdatedAt: updated},
			{ID: "c-1", Title: "Older", MessageCount: 2, UpdatedAt: updated.Add(-time.Hour)},
		},
	}
	require.NoError(t, a.History(ctx))
	require.Contains(t, out.String(), "* c-2  Recent")
	require.Contains(t, out.String(), "  c-1  Older")
	require.Contains(t, out.String(), "4 messages")
	require.Contains(t, out.String(), "Total: 2")
}

func TestApp_ShowAndExport(t *testing.T) {
	ctx := context.Background()
	cs := &fakeChat{messages: map[string][]models.Message{
		"c-1": {
			{Role: "USER", Content: "hello"},
			{Role: "ASSISTANT", Content: "hi there"},
		},
	}}
	a, out := newTestApp("", &fakeAuth{}, cs)
	a.user = ann

	require.True(t, errors.Is(a.Show(ctx, ""), errNoConversation))
	require.True(t, errors.Is(a.Export(ctx, ""), errNoConversation))

	cs.current = "c-1"
	require.NoError(t, a.Show(ctx, ""))
	require.Contains(t, out.String(), "user:\nhello")
	require.Contains(t, out.String(), "assistant:\nhi there")

	require.NoError(t, a.Export(ctx, "c-7"))
	require.Equal(t, "c-7", cs.exported)
	require.Equal(t, "/tmp/out", cs.exportTo)
	require.Contains(t, out.String(), "Transcript saved to /tmp/out/c-7-transcript.json")
}

func TestApp_RunRestoresSession(t *testing.T) {
	printed := capturePrints(t)

	as := &fakeAuth{user: ann, pingErr: client.ErrUnavailable}
	a, _ := newTestApp("exit\n", as, &fakeChat{})
	a.config.ServerURL = "http://127.0.0.1:1"

	require.NoError(t, a.Run(context.Background()))
	require.True(t, a.isLoggedIn())
	require.Contains(t, *printed, "Server is not reachable at http://127.0.0.1:1")
	require.Contains(t, *printed, "Logged in as Ann")
	require.Contains(t, *printed, "gc(Ann)> ")
}
