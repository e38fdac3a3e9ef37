package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/cryptox"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/auth"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

const (
	minNameLen     = 2
	maxNameLen     = 50
	minPasswordLen = 6
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type RegisterRequest struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// AuthResult is what a successful registration or login hands back.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// UserService registers accounts and exchanges credentials for session
// tokens.
type UserService struct {
	users  UserStore
	tokens *auth.TokenManager
	log    logging.Logger

	hashPassword   func(string) (string, error)
	verifyPassword func(password, encoded string) (bool, error)
}

func NewUserService(users UserStore, tokens *auth.TokenManager, log logging.Logger) *UserService {
	return &UserService{
		users:          users,
		tokens:         tokens,
		log:            log.With("module", "users"),
		hashPassword:   cryptox.HashPassword,
		verifyPassword: cryptox.VerifyPassword,
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(req RegisterRequest) error {
	var errs []error

	name := strings.TrimSpace(req.Name)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		errs = append(errs, fmt.Errorf("%w: name", common.ErrMissingField))
	case n < minNameLen || n > maxNameLen:
		errs = append(errs, fmt.Errorf("%w: name must be %d-%d characters", common.ErrInvalidField, minNameLen, maxNameLen))
	}

	email := NormalizeEmail(req.Email)
	switch {
	case email == "":
		errs = append(errs, fmt.Errorf("%w: email", common.ErrMissingField))
	case !emailPattern.MatchString(email):
		errs = append(errs, fmt.Errorf("%w: email", common.ErrInvalidField))
	}

	switch {
	case req.Password == "":
		errs = append(errs, fmt.Errorf("%w: password", common.ErrMissingField))
	case utf8.RuneCountInString(req.Password) < minPasswordLen:
		errs = append(errs, fmt.Errorf("%w: password must be at least %d characters", common.ErrInvalidField, minPasswordLen))
	}

	if req.Password != req.ConfirmPassword {
		errs = append(errs, common.ErrPasswordMismatch)
	}

	return errors.Join(errs...)
}

// Register validates req, creates the account and logs it in. Nothing is
// stored unless validation passes.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	email := NormalizeEmail(req.Email)

	_, err := s.users.UserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, common.ErrDuplicateEmail
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return s.issue(user)
}

// Login checks the credentials. Unknown emails and wrong passwords both
// yield common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var errs []error
	email = NormalizeEmail(email)
	if email == "" {
		errs = append(errs, fmt.Errorf("%w: email", common.ErrMissingField))
	} else if !emailPattern.MatchString(email) {
		errs = append(errs, fmt.Errorf("%w: email", common.ErrInvalidField))
	}
	if password == "" {
		errs = append(errs, fmt.Errorf("%w: password", common.ErrMissingField))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	user, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}

	ok, err := s.verifyPassword(password, user.PasswordHash)
	if err != nil {
		s.log.Error(ctx, "stored password hash unreadable", "user_id", user.ID, "error", err)
		return nil, common.ErrorUnauthorized
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}

	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, id, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return &AuthResult{Token: token, ExpiresAt: id.ExpiresAt, User: user}, nil
}
