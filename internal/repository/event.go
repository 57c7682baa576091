package repository

import (
	"context"
	"slices"
	"time"

	"github.com/hray3182/sharedcal/internal/apperr"
	"github.com/hray3182/sharedcal/internal/database"
	"github.com/hray3182/sharedcal/internal/models"
	"github.com/jackc/pgx/v5"
)

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

// CreateWithShares inserts the event and links every named user to it in
// one transaction. Unknown names are created. On success event.ID is set and
// the resolved share targets are returned.
func (r *EventRepository) CreateWithShares(ctx context.Context, event *models.Event, sharedWith []string) ([]*models.User, error) {
	var targets []*models.User

	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO events (title, description, start_at, end_at, recurrence, owner_id)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			event.Title, event.Description, event.Start.Time, event.End.Time,
			string(event.Recurrence), event.OwnerID,
		).Scan(&event.ID)
		if err != nil {
			return classify("insert event", err)
		}

		// Users are created in name order so concurrent creates sharing new
		// names take their row locks in the same order.
		byName := make(map[string]*models.User, len(sharedWith))
		for _, name := range slices.Sorted(slices.Values(sharedWith)) {
			if _, ok := byName[name]; ok {
				continue
			}
			user, err := resolveUser(ctx, tx, name)
			if err != nil {
				return err
			}
			byName[name] = user
		}

		for _, name := range sharedWith {
			user := byName[name]
			if _, err := tx.Exec(ctx,
				`INSERT INTO event_shares (event_id, user_id) VALUES ($1, $2)
				 ON CONFLICT (event_id, user_id) DO NOTHING`,
				event.ID, user.ID,
			); err != nil {
				return classify("insert share", err)
			}
			targets = append(targets, user)
		}
		return nil
	})
	if err != nil {
		event.ID = 0
		return nil, classify("create event", err)
	}
	return targets, nil
}

// ListVisible returns every event owned by or shared with userID, ordered by
// start time. Completions are restricted to date; events are not.
func (r *EventRepository) ListVisible(ctx context.Context, userID int64, date models.Date) ([]*models.EventView, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT e.id, e.title, e.description, e.start_at, e.end_at, e.recurrence, e.owner_id, u.name
		 FROM events e
		 JOIN users u ON u.id = e.owner_id
		 WHERE e.owner_id = $1
		    OR EXISTS (SELECT 1 FROM event_shares s WHERE s.event_id = e.id AND s.user_id = $1)
		 ORDER BY e.start_at ASC, e.id ASC`,
		userID,
	)
	if err != nil {
		return nil, classify("query events", err)
	}
	defer rows.Close()

	views, err := r.scanEventViews(rows)
	if err != nil {
		return nil, classify("scan events", err)
	}
	if len(views) == 0 {
		return views, nil
	}

	ids := make([]int64, len(views))
	byID := make(map[int64]*models.EventView, len(views))
	for i, v := range views {
		ids[i] = v.ID
		byID[v.ID] = v
	}

	shares, err := r.db.Pool.Query(ctx,
		`SELECT s.event_id, u.id, u.name
		 FROM event_shares s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.event_id = ANY($1)
		 ORDER BY s.id ASC`,
		ids,
	)
	if err != nil {
		return nil, classify("query shares", err)
	}
	err = attachUsers(shares, byID, func(v *models.EventView, u *models.User) {
		v.SharedWith = append(v.SharedWith, u)
	})
	if err != nil {
		return nil, classify("scan shares", err)
	}

	completions, err := r.db.Pool.Query(ctx,
		`SELECT c.event_id, u.id, u.name
		 FROM event_completions c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.event_id = ANY($1) AND c.occurrence_date = $2
		 ORDER BY c.id ASC`,
		ids, date.Time,
	)
	if err != nil {
		return nil, classify("query completions", err)
	}
	err = attachUsers(completions, byID, func(v *models.EventView, u *models.User) {
		v.CompletedBy = append(v.CompletedBy, u)
	})
	if err != nil {
		return nil, classify("scan completions", err)
	}

	return views, nil
}

// Audience returns the ids of the users who can see an event: its owner
// and every share target.
func (r *EventRepository) Audience(ctx context.Context, eventID int64) ([]int64, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT owner_id FROM events WHERE id = $1
		 UNION
		 SELECT user_id FROM event_shares WHERE event_id = $1
		 ORDER BY 1`,
		eventID,
	)
	if err != nil {
		return nil, classify("query audience", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, classify("scan audience", err)
	}
	if len(ids) == 0 {
		return nil, apperr.NotFound("event")
	}
	return ids, nil
}

func (r *EventRepository) scanEventViews(rows pgx.Rows) ([]*models.EventView, error) {
	views := []*models.EventView{}
	for rows.Next() {
		var (
			v          = &models.EventView{SharedWith: []*models.User{}, CompletedBy: []*models.User{}}
			start, end time.Time
			recurrence string
		)
		if err := rows.Scan(&v.ID, &v.Title, &v.Description, &start, &end,
			&recurrence, &v.OwnerID, &v.OwnerName); err != nil {
			return nil, err
		}
		v.Start = models.NewLocalTime(start)
		v.End = models.NewLocalTime(end)
		v.Recurrence = models.Recurrence(recurrence)
		views = append(views, v)
	}
	return views, rows.Err()
}

// attachUsers drains rows of (event_id, user_id, user_name) and hands each
// user to add for its event.
func attachUsers(rows pgx.Rows, byID map[int64]*models.EventView, add func(*models.EventView, *models.User)) error {
	defer rows.Close()

	for rows.Next() {
		var eventID int64
		u := &models.User{}
		if err := rows.Scan(&eventID, &u.ID, &u.Name); err != nil {
			return err
		}
		if v, ok := byID[eventID]; ok {
			add(v, u)
		}
	}
	return rows.Err()
}
