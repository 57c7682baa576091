package repository

import (
	"context"

	"github.com/hray3182/sharedcal/internal/database"
	"github.com/hray3182/sharedcal/internal/models"
)

type CompletionRepository struct {
	db *database.DB
}

func NewCompletionRepository(db *database.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// Complete records the completion if it does not exist yet and fills in the
// canonical row. Repeating the call is a no-op.
func (r *CompletionRepository) Complete(ctx context.Context, c *models.Completion) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO event_completions (event_id, user_id, occurrence_date)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (event_id, user_id, occurrence_date) DO NOTHING`,
		c.EventID, c.UserID, c.OccurrenceDate.Time,
	)
	if err != nil {
		return classify("insert completion", err)
	}

	err = r.db.Pool.QueryRow(ctx,
		`SELECT id, created_at FROM event_completions
		 WHERE event_id = $1 AND user_id = $2 AND occurrence_date = $3`,
		c.EventID, c.UserID, c.OccurrenceDate.Time,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return classify("read completion", err)
	}
	return nil
}
