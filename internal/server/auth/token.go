// Package auth issues and verifies the bearer credentials carried by
// authenticated requests.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the JWT payload. UserID duplicates Subject under the "uid" key
// for clients that read it directly.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// Identity is a verified session credential.
type Identity struct {
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenManager struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

type Option func(*TokenManager)

// WithClock replaces time.Now for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) { m.now = now }
}

func NewTokenManager(secret []byte, validity time.Duration, opts ...Option) (*TokenManager, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret key")
	}
	if validity <= 0 {
		return nil, fmt.Errorf("auth: token validity must be positive, got %s", validity)
	}

	m := &TokenManager{secret: secret, validity: validity, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Issue signs a new HS256 token for userID.
func (m *TokenManager) Issue(userID string) (string, *Identity, error) {
	if userID == "" {
		return "", nil, errors.New("auth: empty user id")
	}

	iat := m.now().Truncate(time.Second)
	id := &Identity{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		IssuedAt:  iat,
		ExpiresAt: iat.Add(m.validity),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        id.TokenID,
			IssuedAt:  jwt.NewNumericDate(id.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(id.ExpiresAt),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("auth: sign token: %w", err)
	}

	return signed, id, nil
}

// Verify checks signature and expiry of tokenString. It depends only on the
// token, the secret and the clock.
func (m *TokenManager) Verify(tokenString string) (*Identity, error) {
	claims := &Claims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return nil, common.ErrMalformedToken
	}

	id := &Identity{
		UserID:    userID,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	return id, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return common.ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	default:
		return fmt.Errorf("%w: %v", common.ErrMalformedToken, err)
	}
}
