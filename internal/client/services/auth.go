package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
)

// AuthService registers, logs in and remembers the session between runs.
type AuthService interface {
	Register(ctx context.Context, name, email string, password, confirm []byte) (*models.User, error)
	Login(ctx context.Context, email string, password []byte) (*models.User, error)
	// Restore picks up a stored, unexpired session. It returns nil when there
	// is none.
	Restore(ctx context.Context) (*models.User, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
}

type authService struct {
	client client.Client
	db     *sql.DB
	now    func() time.Time
}

func NewAuthService(c client.Client, db *sql.DB) AuthService {
	return &authService{client: c, db: db, now: time.Now}
}

func (a *authService) Register(ctx context.Context, name, email string, password, confirm []byte) (*models.User, error) {
	s, err := a.client.Register(ctx, models.RegisterRequest{
		Name:            name,
		Email:           email,
		Password:        string(password),
		ConfirmPassword: string(confirm),
	})
	if err != nil {
		return nil, err
	}
	return a.keep(ctx, s)
}

func (a *authService) Login(ctx context.Context, email string, password []byte) (*models.User, error) {
	s, err := a.client.Login(ctx, email, string(password))
	if err != nil {
		return nil, err
	}
	return a.keep(ctx, s)
}

func (a *authService) keep(ctx context.Context, s *models.Session) (*models.User, error) {
	if err := saveSession(ctx, a.db, s); err != nil {
		return nil, err
	}
	a.client.SetToken(s.Token)
	return &s.User, nil
}

func (a *authService) Restore(ctx context.Context) (*models.User, error) {
	s, err := loadSession(ctx, a.db)
	if err != nil || s == nil {
		return nil, err
	}

	if !s.ExpiresAt.IsZero() && !a.now().Before(s.ExpiresAt) {
		return nil, clearSession(ctx, a.db)
	}

	a.client.SetToken(s.Token)
	return &s.User, nil
}

func (a *authService) Logout(ctx context.Context) error {
	a.client.SetToken("")
	return clearSession(ctx, a.db)
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}
