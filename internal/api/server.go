// Package api exposes the calendar over HTTP/JSON.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hray3182/sharedcal/internal/calendar"
	"github.com/hray3182/sharedcal/internal/models"
)

// CalendarService is the subset of calendar.Service the handlers use.
type CalendarService interface {
	ResolveUser(ctx context.Context, name string) (*models.User, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	CreateEvent(ctx context.Context, in calendar.NewEvent) (int64, error)
	ListVisibleEvents(ctx context.Context, userID int64, date string) (*models.DayView, error)
	CompleteEvent(ctx context.Context, eventID, userID int64, date string) (*models.Completion, error)
	Location() *time.Location
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	// CORSOrigin is sent as Access-Control-Allow-Origin. Empty disables CORS.
	CORSOrigin string
	// Live, when set, is mounted at /ws.
	Live   http.Handler
	Health Pinger
	Logger *slog.Logger
	Now    func() time.Time
}

type Server struct {
	svc  CalendarService
	opts Options
	mux  *http.ServeMux
	log  *slog.Logger
}

func NewServer(svc CalendarService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		svc:  svc,
		opts: opts,
		mux:  http.NewServeMux(),
		log:  opts.Logger,
	}
	s.registerRoutes()
	return s
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.withLogging(s.withCORS(s.mux)))
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/users", s.handleResolveUser)
	s.mux.HandleFunc("GET /api/users/{id}/calendar.ics", s.handleCalendarFeed)

	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events/{id}/complete", s.handleCompleteEvent)

	if s.opts.Live != nil {
		s.mux.Handle("GET /ws", s.opts.Live)
	}
}
