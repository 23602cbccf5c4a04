package conversation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfman30/cosmetology-assistant/internal/apperr"
	"github.com/wolfman30/cosmetology-assistant/internal/intent"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LogStore persists exchanges in the conversations table.
type LogStore struct {
	db DB
}

func NewLogStore(db DB) *LogStore {
	return &LogStore{db: db}
}

// Save appends one exchange.
func (s *LogStore) Save(ctx context.Context, t Turn) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO conversations (user_id, message, response, intent, search_results_count)
		VALUES ($1, $2, $3, $4, $5)`,
		t.UserID, t.Message, t.Response, string(t.Intent), t.SearchResults,
	)
	if err != nil {
		return apperr.Transient("conversation: save turn", err)
	}
	return nil
}

// Recent returns up to limit exchanges, newest first.
func (s *LogStore) Recent(ctx context.Context, userID int64, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.Query(ctx, `
		SELECT message, response, intent, search_results_count, created_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, apperr.Transient("conversation: recent turns", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		t := Turn{UserID: userID}
		var in string
		if err := rows.Scan(&t.Message, &t.Response, &in, &t.SearchResults, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan turn: %w", err)
		}
		t.Intent = intent.Intent(in)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
