package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hray3182/sharedcal/internal/apperr"
	"github.com/hray3182/sharedcal/internal/database"
	"github.com/hray3182/sharedcal/internal/database/dbtest"
	"github.com/hray3182/sharedcal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repos struct {
	db          *database.DB
	users       *UserRepository
	events      *EventRepository
	completions *CompletionRepository
}

func setup(t *testing.T) *repos {
	t.Helper()
	db := dbtest.Open(t)
	return &repos{
		db:          db,
		users:       NewUserRepository(db),
		events:      NewEventRepository(db),
		completions: NewCompletionRepository(db),
	}
}

func mustDate(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func newEvent(t *testing.T, title string, ownerID int64, start string) *models.Event {
	t.Helper()
	st, err := models.ParseLocalTime(start)
	require.NoError(t, err)
	return &models.Event{
		Title:      title,
		Start:      st,
		End:        models.NewLocalTime(st.Add(15 * time.Minute)),
		Recurrence: models.RecurrenceNone,
		OwnerID:    ownerID,
	}
}

func countRows(t *testing.T, db *database.DB, sql string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.Pool.QueryRow(context.Background(), sql, args...).Scan(&n))
	return n
}

func TestUserRepository_ResolveIdempotent(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	first, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)
	second, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "alice", second.Name)
	assert.Equal(t, 1, countRows(t, r.db, `SELECT COUNT(*) FROM users WHERE name = 'alice'`))
}

func TestUserRepository_ResolveConcurrent(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	const workers = 16
	ids := make([]int64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := r.users.Resolve(ctx, "carol")
			errs[i] = err
			if u != nil {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, countRows(t, r.db, `SELECT COUNT(*) FROM users WHERE name = 'carol'`))
}

func TestUserRepository_GetByID(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	alice, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)

	got, err := r.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	_, err = r.users.GetByID(ctx, alice.ID+100)
	assert.True(t, apperr.IsNotFound(err), "got %v", err)
}

func TestEventRepository_CreateWithShares(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	alice, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)

	ev := newEvent(t, "Standup", alice.ID, "2024-01-01T09:00")
	targets, err := r.events.CreateWithShares(ctx, ev, []string{"bob", "dave"})
	require.NoError(t, err)

	assert.NotZero(t, ev.ID)
	require.Len(t, targets, 2)
	assert.Equal(t, "bob", targets[0].Name)
	assert.Equal(t, "dave", targets[1].Name)

	assert.Equal(t, 3, countRows(t, r.db, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, 2, countRows(t, r.db, `SELECT COUNT(*) FROM event_shares WHERE event_id = $1`, ev.ID))
}

func TestEventRepository_DuplicateShareCollapses(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	alice, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)

	ev := newEvent(t, "Review", alice.ID, "2024-01-01T10:00")
	_, err = r.events.CreateWithShares(ctx, ev, []string{"bob", "bob"})
	require.NoError(t, err)

	assert.Equal(t, 1, countRows(t, r.db, `SELECT COUNT(*) FROM event_shares WHERE event_id = $1`, ev.ID))
}

func TestEventRepository_ConcurrentCreatesShareNewNames(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	alice, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)

	orders := [][]string{
		{"bob", "carol", "dave"},
		{"dave", "carol", "bob"},
	}
	const rounds = 8
	errs := make([]error, rounds*len(orders))

	var wg sync.WaitGroup
	for i := range errs {
		ev := newEvent(t, "Sync", alice.ID, "2024-01-01T10:00")
		names := orders[i%len(orders)]
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.events.CreateWithShares(ctx, ev, names)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "create %d", i)
	}
	assert.Equal(t, 4, countRows(t, r.db, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, len(errs), countRows(t, r.db, `SELECT COUNT(*) FROM events`))
	assert.Equal(t, 3*len(errs), countRows(t, r.db, `SELECT COUNT(*) FROM event_shares`))
}

func TestEventRepository_SharesKeepInputOrder(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	alice, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)

	ev := newEvent(t, "Retro", alice.ID, "2024-01-01T11:00")
	targets, err := r.events.CreateWithShares(ctx, ev, []string{"zoe", "bob"})
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "zoe", targets[0].Name)
	assert.Equal(t, "bob", targets[1].Name)

	views, err := r.events.ListVisible(ctx, alice.ID, mustDate(t, "2024-01-01"))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "zoe", views[0].SharedWith[0].Name)
	assert.Equal(t, "bob", views[0].SharedWith[1].Name)
}

func TestEventRepository_Audience(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	alice, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)
	_, err = r.users.Resolve(ctx, "eve")
	require.NoError(t, err)

	ev := newEvent(t, "Standup", alice.ID, "2024-01-01T09:00")
	targets, err := r.events.CreateWithShares(ctx, ev, []string{"bob"})
	require.NoError(t, err)

	audience, err := r.events.Audience(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{alice.ID, targets[0].ID}, audience)

	_, err = r.events.Audience(ctx, ev.ID+100)
	assert.True(t, apperr.IsNotFound(err), "got %v", err)
}

func TestEventRepository_UnknownOwnerRollsBack(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	ev := newEvent(t, "Orphan", 999, "2024-01-01T10:00")
	_, err := r.events.CreateWithShares(ctx, ev, []string{"bob"})

	assert.True(t, apperr.IsConstraint(err), "got %v", err)
	assert.Zero(t, ev.ID)
	assert.Equal(t, 0, countRows(t, r.db, `SELECT COUNT(*) FROM events`))
	assert.Equal(t, 0, countRows(t, r.db, `SELECT COUNT(*) FROM users`))
}

func TestEventRepository_RejectsUnknownRecurrence(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	alice, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)

	ev := newEvent(t, "Weekly sync", alice.ID, "2024-01-01T10:00")
	ev.Recurrence = models.Recurrence("WEEKLY")

	_, err = r.events.CreateWithShares(ctx, ev, nil)
	assert.True(t, apperr.IsValidation(err), "got %v", err)
	assert.Equal(t, 0, countRows(t, r.db, `SELECT COUNT(*) FROM events`))
}

func TestEventRepository_ListVisible_NothingForStranger(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	alice, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)
	eve, err := r.users.Resolve(ctx, "eve")
	require.NoError(t, err)

	_, err = r.events.CreateWithShares(ctx, newEvent(t, "Private", alice.ID, "2024-01-01T09:00"), []string{"bob"})
	require.NoError(t, err)

	views, err := r.events.ListVisible(ctx, eve.ID, mustDate(t, "2024-01-01"))
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestEventRepository_ListVisible_OwnedAndSharedOnce(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	alice, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)
	bob, err := r.users.Resolve(ctx, "bob")
	require.NoError(t, err)

	// alice shares with herself too; the event must still appear once.
	late := newEvent(t, "Late", alice.ID, "2024-01-02T18:00")
	_, err = r.events.CreateWithShares(ctx, late, []string{"bob", "alice", "carol"})
	require.NoError(t, err)

	early := newEvent(t, "Early", bob.ID, "2024-01-01T07:00")
	_, err = r.events.CreateWithShares(ctx, early, nil)
	require.NoError(t, err)

	views, err := r.events.ListVisible(ctx, bob.ID, mustDate(t, "2030-06-01"))
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, early.ID, views[0].ID)
	assert.Equal(t, late.ID, views[1].ID)
	assert.Equal(t, "alice", views[1].OwnerName)
	assert.Len(t, views[1].SharedWith, 3)

	aliceViews, err := r.events.ListVisible(ctx, alice.ID, mustDate(t, "2024-01-01"))
	require.NoError(t, err)
	require.Len(t, aliceViews, 1)
	assert.Equal(t, late.ID, aliceViews[0].ID)
}

func TestCompletionRepository_Idempotent(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	alice, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)
	ev := newEvent(t, "Standup", alice.ID, "2024-01-01T09:00")
	_, err = r.events.CreateWithShares(ctx, ev, nil)
	require.NoError(t, err)

	first := &models.Completion{EventID: ev.ID, UserID: alice.ID, OccurrenceDate: mustDate(t, "2024-01-01")}
	require.NoError(t, r.completions.Complete(ctx, first))
	second := &models.Completion{EventID: ev.ID, UserID: alice.ID, OccurrenceDate: mustDate(t, "2024-01-01")}
	require.NoError(t, r.completions.Complete(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	assert.False(t, first.CreatedAt.IsZero())
	assert.Equal(t, 1, countRows(t, r.db,
		`SELECT COUNT(*) FROM event_completions WHERE event_id = $1 AND user_id = $2`, ev.ID, alice.ID))
}

func TestCompletionRepository_Concurrent(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	alice, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)
	ev := newEvent(t, "Standup", alice.ID, "2024-01-01T09:00")
	_, err = r.events.CreateWithShares(ctx, ev, nil)
	require.NoError(t, err)

	day := mustDate(t, "2024-01-01")

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.completions.Complete(ctx, &models.Completion{
				EventID: ev.ID, UserID: alice.ID, OccurrenceDate: day,
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, countRows(t, r.db, `SELECT COUNT(*) FROM event_completions`))
}

func TestCompletionRepository_UnknownEvent(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	alice, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)

	err = r.completions.Complete(ctx, &models.Completion{
		EventID: 404, UserID: alice.ID, OccurrenceDate: mustDate(t, "2024-01-01"),
	})
	assert.True(t, apperr.IsConstraint(err), "got %v", err)
}

func TestScenario_StandupSharedWithBob(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	alice, err := r.users.Resolve(ctx, "alice")
	require.NoError(t, err)
	bob, err := r.users.Resolve(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), alice.ID)
	assert.Equal(t, int64(2), bob.ID)

	start, err := models.ParseLocalTime("2024-01-01T09:00")
	require.NoError(t, err)
	end, err := models.ParseLocalTime("2024-01-01T09:15")
	require.NoError(t, err)

	ev := &models.Event{
		Title:      "Standup",
		Start:      start,
		End:        end,
		Recurrence: models.RecurrenceDaily,
		OwnerID:    alice.ID,
	}
	_, err = r.events.CreateWithShares(ctx, ev, []string{"bob"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.ID)

	day := mustDate(t, "2024-01-01")
	views, err := r.events.ListVisible(ctx, bob.ID, day)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "alice", views[0].OwnerName)
	assert.Equal(t, []*models.User{{ID: 2, Name: "bob"}}, views[0].SharedWith)
	assert.Empty(t, views[0].CompletedBy)
	assert.Equal(t, "2024-01-01T09:00:00", views[0].Start.String())
	assert.Equal(t, models.RecurrenceDaily, views[0].Recurrence)

	require.NoError(t, r.completions.Complete(ctx, &models.Completion{
		EventID: ev.ID, UserID: bob.ID, OccurrenceDate: day,
	}))

	views, err = r.events.ListVisible(ctx, bob.ID, day)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, []*models.User{{ID: 2, Name: "bob"}}, views[0].CompletedBy)

	views, err = r.events.ListVisible(ctx, alice.ID, mustDate(t, "2024-01-02"))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Empty(t, views[0].CompletedBy)
}
