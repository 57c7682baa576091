package repository

import (
	"context"

	"github.com/hray3182/sharedcal/internal/database"
	"github.com/hray3182/sharedcal/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Resolve returns the user with this name, creating it first if needed.
func (r *UserRepository) Resolve(ctx context.Context, name string) (*models.User, error) {
	return resolveUser(ctx, r.db.Pool, name)
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, name FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Name)
	if err != nil {
		return nil, classify("get user", err)
	}
	return user, nil
}

// resolveUser inserts-or-ignores and then reads the canonical row, so a
// concurrent insert of the same name resolves to the winner's id.
func resolveUser(ctx context.Context, q querier, name string) (*models.User, error) {
	_, err := q.Exec(ctx,
		`INSERT INTO users (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
		name,
	)
	if err != nil {
		return nil, classify("insert user", err)
	}

	user := &models.User{}
	err = q.QueryRow(ctx,
		`SELECT id, name FROM users WHERE name = $1`,
		name,
	).Scan(&user.ID, &user.Name)
	if err != nil {
		return nil, classify("read user", err)
	}
	return user, nil
}
