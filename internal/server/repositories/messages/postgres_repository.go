package messages

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

const columnsPerRow = 6

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert writes all msgs with a single multi-row statement.
func (r *PostgresRepository) Insert(ctx context.Context, msgs ...*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO messages (id, conversation_id, seq, role, content, created_at) VALUES `)

	args := make([]any, 0, len(msgs)*columnsPerRow)
	for i, m := range msgs {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * columnsPerRow
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, m.ID, m.ConversationID, m.Seq, string(m.Role), m.Content, m.CreatedAt)
	}

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	query :=
		`SELECT id, conversation_id, seq, role, content, created_at FROM messages
		 WHERE conversation_id = $1
		 ORDER BY seq ASC
		 `

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanMessages(rows)
}

// ListRecent returns the newest limit messages, oldest first.
func (r *PostgresRepository) ListRecent(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	query :=
		`SELECT id, conversation_id, seq, role, content, created_at FROM (
		   SELECT id, conversation_id, seq, role, content, created_at FROM messages
		   WHERE conversation_id = $1
		   ORDER BY seq DESC
		   LIMIT $2
		 ) recent
		 ORDER BY seq ASC
		 `

	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	defer rows.Close()

	result := []models.Message{}
	for rows.Next() {
		var (
			m    models.Message
			role string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Seq, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		m.Role = models.Role(role)
		if !m.Role.Valid() {
			return nil, fmt.Errorf("db error: message %s has unknown role %q", m.ID, role)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
