// Package services contains the CLI's application logic on top of the HTTP
// client: keeping the login session and the current conversation.
package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
)

const (
	keyToken        = "token"
	keyExpiresAt    = "expires_at"
	keyUserID       = "user_id"
	keyUserName     = "user_name"
	keyUserEmail    = "user_email"
	keyConversation = "conversation_id"
)

var sessionKeys = []string{keyToken, keyExpiresAt, keyUserID, keyUserName, keyUserEmail, keyConversation}

func saveSession(ctx context.Context, db *sql.DB, s *models.Session) error {
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		values := map[string]string{
			keyToken:     s.Token,
			keyExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
			keyUserID:    s.User.ID,
			keyUserName:  s.User.Name,
			keyUserEmail: s.User.Email,
		}
		for k, v := range values {
			if err := repo.Set(ctx, k, v); err != nil {
				return err
			}
		}
		return repo.Delete(ctx, keyConversation)
	})
}

// loadSession returns nil when no session is stored.
func loadSession(ctx context.Context, db *sql.DB) (*models.Session, error) {
	repo := metadata.NewSQLiteRepository(db)

	token, ok, err := repo.Get(ctx, keyToken)
	if err != nil || !ok || token == "" {
		return nil, err
	}

	s := &models.Session{Token: token}
	fields := map[string]*string{
		keyUserID:    &s.User.ID,
		keyUserName:  &s.User.Name,
		keyUserEmail: &s.User.Email,
	}
	for k, dst := range fields {
		if *dst, _, err = repo.Get(ctx, k); err != nil {
			return nil, err
		}
	}

	exp, _, err := repo.Get(ctx, keyExpiresAt)
	if err != nil {
		return nil, err
	}
	if t, perr := time.Parse(time.RFC3339, exp); perr == nil {
		s.ExpiresAt = t
	}
	return s, nil
}

func clearSession(ctx context.Context, db *sql.DB) error {
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		for _, k := range sessionKeys {
			if err := repo.Delete(ctx, k); err != nil {
				return err
			}
		}
		return nil
	})
}
