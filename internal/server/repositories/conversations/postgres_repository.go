package conversations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	query :=
		`INSERT INTO conversations (id, user_id, title, created_at, updated_at, message_count)
		 VALUES ($1, $2, $3, $4, $5, 0)
		 `

	_, err := r.db.ExecContext(ctx, query, c.ID, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	c.MessageCount = 0
	return c, nil
}

// GetOwned returns the conversation only when it belongs to userID.
func (r *PostgresRepository) GetOwned(ctx context.Context, id, userID string) (*models.Conversation, error) {
	query :=
		`SELECT id, user_id, title, created_at, updated_at, message_count FROM conversations
		 WHERE id = $1 AND user_id = $2
		 `

	c := &models.Conversation{}
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	query :=
		`SELECT id, title, created_at, updated_at, message_count FROM conversations
		 WHERE user_id = $1
		 ORDER BY updated_at DESC, id DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.ConversationSummary{}
	for rows.Next() {
		var s models.ConversationSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Advance(ctx context.Context, id, userID string, n int, title string) (*models.Conversation, error) {
	// clock_timestamp, unlike now(), is read after the row lock is granted
	query :=
		`UPDATE conversations SET updated_at = clock_timestamp(), message_count = message_count + $3,
		 title = COALESCE(NULLIF($4, ''), title)
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, user_id, title, created_at, updated_at, message_count
		 `

	c := &models.Conversation{}
	err := r.db.QueryRowContext(ctx, query, id, userID, n, title).
		Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}
