package services

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, client.RunMigrations(context.Background(), db))
	return db
}

func getMeta(t *testing.T, db *sql.DB, k string) (string, bool) {
	t.Helper()
	var v string
	err := db.QueryRow(`SELECT value FROM metadata WHERE key=?`, k).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false
	}
	require.NoError(t, err)
	return v, true
}

type fakeClient struct {
	token string

	session    *models.Session
	sessionErr error
	lastReg    models.RegisterRequest

	queries  []models.QueryRequest
	queryRes *models.QueryResponse
	queryErr error

	history    *models.History
	historyErr error

	messages []models.Message

	export      *models.Export
	downloaded  string
	pingErr     error
	downloadErr error
}

func (f *fakeClient) Ping(context.Context) error { return f.pingErr }

func (f *fakeClient) Register(_ context.Context, r models.RegisterRequest) (*models.Session, error) {
	f.lastReg = r
	return f.session, f.sessionErr
}

func (f *fakeClient) Login(context.Context, string, string) (*models.Session, error) {
	return f.session, f.sessionErr
}

func (f *fakeClient) Query(_ context.Context, q models.QueryRequest) (*models.QueryResponse, error) {
	f.queries = append(f.queries, q)
	return f.queryRes, f.queryErr
}

func (f *fakeClient) History(context.Context) (*models.History, error) {
	return f.history, f.historyErr
}

func (f *fakeClient) CreateConversation(_ context.Context, title string) (*models.Conversation, error) {
	return &models.Conversation{ID: "new", Title: title}, nil
}

func (f *fakeClient) Messages(context.Context, string) ([]models.Message, error) {
	return f.messages, nil
}

func (f *fakeClient) Export(context.Context, string) (*models.Export, error) {
	return f.export, nil
}

func (f *fakeClient) Download(_ context.Context, url, path string) error {
	if f.downloadErr != nil {
		return f.downloadErr
	}
	f.downloaded = url
	return os.WriteFile(path, []byte("{}"), 0o600)
}

func (f *fakeClient) SetToken(token string) { f.token = token }
func (f *fakeClient) Token() string         { return f.token }
