// Package calendar implements the shared-calendar operations: resolving
// users by name, creating shared events, listing the events a user can see
// on a date, and recording per-day completions.
//
// The service validates input and applies defaults; uniqueness and
// idempotence are enforced by the store's constraints.
package calendar

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/hray3182/sharedcal/internal/apperr"
	"github.com/hray3182/sharedcal/internal/models"
)

type UserStore interface {
	Resolve(ctx context.Context, name string) (*models.User, error)
	GetByID(ctx context.Context, userID int64) (*models.User, error)
}

type EventStore interface {
	CreateWithShares(ctx context.Context, event *models.Event, sharedWith []string) ([]*models.User, error)
	ListVisible(ctx context.Context, userID int64, date models.Date) ([]*models.EventView, error)
	Audience(ctx context.Context, eventID int64) ([]int64, error)
}

type CompletionStore interface {
	Complete(ctx context.Context, c *models.Completion) error
}

// Notifier receives a message after each successful write. Recipients lists
// the user ids the message concerns; nil means everyone.
type Notifier interface {
	Notify(kind string, recipients []int64, payload any)
}

const (
	NotifyEventCreated   = "event_created"
	NotifyEventCompleted = "event_completed"
)

type Service struct {
	users       UserStore
	events      EventStore
	completions CompletionStore
	notifier    Notifier
	loc         *time.Location
	now         func() time.Time
}

type Option func(*Service)

// WithLocation sets the zone used to compute "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func New(users UserStore, events EventStore, completions CompletionStore, opts ...Option) *Service {
	s := &Service{
		users:       users,
		events:      events,
		completions: completions,
		loc:         time.UTC,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current calendar date in the service's zone.
func (s *Service) Today() models.Date {
	return models.NewDate(s.now().In(s.loc))
}

// Location is the zone wall-clock event times are interpreted in.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) ResolveUser(ctx context.Context, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	return s.users.Resolve(ctx, name)
}

func (s *Service) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	if userID <= 0 {
		return nil, apperr.Validation("userId is required")
	}
	return s.users.GetByID(ctx, userID)
}

// NewEvent is the input to CreateEvent. Start and End are ISO-8601
// date-times; see models.ParseLocalTimeIn.
type NewEvent struct {
	Title           string
	Description     string
	Start           string
	End             string
	Recurrence      string
	OwnerID         int64
	SharedWithNames []string
}

// CreateEvent stores the event and its share list atomically and returns
// the new event id. start < end is not checked.
func (s *Service) CreateEvent(ctx context.Context, in NewEvent) (int64, error) {
	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		return 0, apperr.Validation("title is required")
	case strings.TrimSpace(in.Start) == "":
		return 0, apperr.Validation("start is required")
	case strings.TrimSpace(in.End) == "":
		return 0, apperr.Validation("end is required")
	case in.Recurrence == "":
		return 0, apperr.Validation("recurrence is required")
	case in.OwnerID <= 0:
		return 0, apperr.Validation("ownerId is required")
	}

	start, err := models.ParseLocalTimeIn(in.Start, s.loc)
	if err != nil {
		return 0, apperr.Validation("start: %v", err)
	}
	end, err := models.ParseLocalTimeIn(in.End, s.loc)
	if err != nil {
		return 0, apperr.Validation("end: %v", err)
	}

	recurrence, err := models.ParseRecurrence(in.Recurrence)
	if err != nil {
		return 0, apperr.Validation("%v", err)
	}

	event := &models.Event{
		Title:       title,
		Description: in.Description,
		Start:       start,
		End:         end,
		Recurrence:  recurrence,
		OwnerID:     in.OwnerID,
	}

	targets, err := s.events.CreateWithShares(ctx, event, NormalizeNames(in.SharedWithNames))
	if err != nil {
		return 0, err
	}

	if s.notifier != nil {
		recipients := []int64{event.OwnerID}
		for _, u := range targets {
			recipients = append(recipients, u.ID)
		}
		s.notifier.Notify(NotifyEventCreated, recipients, event)
	}

	return event.ID, nil
}

// ListVisibleEvents returns every event userID owns or is shared on, with
// completions for date attached. An empty date means today. Events are not
// filtered by date.
func (s *Service) ListVisibleEvents(ctx context.Context, userID int64, date string) (*models.DayView, error) {
	if userID <= 0 {
		return nil, apperr.Validation("userId is required")
	}

	day, err := s.dateOrToday(date)
	if err != nil {
		return nil, err
	}

	events, err := s.events.ListVisible(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*models.EventView{}
	}

	return &models.DayView{Date: day, Events: events}, nil
}

// CompleteEvent marks eventID done by userID on date (today when empty).
// Marking the same day twice is a no-op.
func (s *Service) CompleteEvent(ctx context.Context, eventID, userID int64, date string) (*models.Completion, error) {
	if eventID <= 0 {
		return nil, apperr.Validation("event id is required")
	}
	if userID <= 0 {
		return nil, apperr.Validation("userId is required")
	}

	day, err := s.dateOrToday(date)
	if err != nil {
		return nil, err
	}

	c := &models.Completion{EventID: eventID, UserID: userID, OccurrenceDate: day}
	if err := s.completions.Complete(ctx, c); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifyCompleted(ctx, c)
	}

	return c, nil
}

// notifyCompleted tells the event's owner, its share targets and the
// completing user. The completion is already stored, so a failed audience
// lookup only costs the push.
func (s *Service) notifyCompleted(ctx context.Context, c *models.Completion) {
	audience, err := s.events.Audience(ctx, c.EventID)
	if err != nil {
		return
	}
	if !slices.Contains(audience, c.UserID) {
		audience = append(audience, c.UserID)
	}
	s.notifier.Notify(NotifyEventCompleted, audience, c)
}

func (s *Service) dateOrToday(date string) (models.Date, error) {
	if strings.TrimSpace(date) == "" {
		return s.Today(), nil
	}
	day, err := models.ParseDate(date)
	if err != nil {
		return models.Date{}, apperr.Validation("%v", err)
	}
	return day, nil
}

// NormalizeNames trims share names, drops blanks and keeps the first
// occurrence of each name.
func NormalizeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
