package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Responses is the append-only audit of conversation turns.
type Responses struct {
	db *sqlx.DB
}

// NewResponses returns a response repository over db.
func NewResponses(db *sqlx.DB) *Responses {
	return &Responses{db: db}
}

// Insert records one completed turn.
func (r *Responses) Insert(ctx context.Context, userID string, chatID int64, responseID string) error {
	const q = `INSERT INTO responses (user_id, chat_id, response_id) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, q, userID, chatID, responseID); err != nil {
		return fmt.Errorf("store: insert response: %w", err)
	}
	return nil
}

// CountByUser returns how many turns the pseudonymized user has completed.
func (r *Responses) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM responses WHERE user_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("store: count responses: %w", err)
	}
	return n, nil
}

// List returns the full audit trail, oldest first.
func (r *Responses) List(ctx context.Context) ([]Response, error) {
	var out []Response
	if err := r.db.SelectContext(ctx, &out, `SELECT * FROM responses ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("store: list responses: %w", err)
	}
	return out, nil
}
