package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/hray3182/sharedcal/internal/apperr"
	"github.com/hray3182/sharedcal/internal/calendar"
	"github.com/hray3182/sharedcal/internal/ics"
	"github.com/hray3182/sharedcal/internal/models"
	"github.com/hray3182/sharedcal/internal/rrule"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		if err := s.opts.Health.Ping(r.Context()); err != nil {
			s.log.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type resolveUserRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleResolveUser(w http.ResponseWriter, r *http.Request) {
	var req resolveUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.svc.ResolveUser(r.Context(), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type createEventRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	Recurrence      string   `json:"recurrence"`
	OwnerID         int64    `json:"ownerId"`
	SharedWithNames NameList `json:"sharedWithNames"`
}

type createEventResponse struct {
	Message string `json:"message"`
	EventID int64  `json:"eventId"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	id, err := s.svc.CreateEvent(r.Context(), calendar.NewEvent{
		Title:           req.Title,
		Description:     req.Description,
		Start:           req.Start,
		End:             req.End,
		Recurrence:      req.Recurrence,
		OwnerID:         req.OwnerID,
		SharedWithNames: req.SharedWithNames,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, createEventResponse{
		Message: fmt.Sprintf("Event created (%s)", rrule.HumanReadable(models.Recurrence(req.Recurrence))),
		EventID: id,
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID, err := parseID(q.Get("userId"), "userId")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	day, err := s.svc.ListVisibleEvents(r.Context(), userID, q.Get("date"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

type completeEventRequest struct {
	UserID int64  `json:"userId"`
	Date   string `json:"date"`
}

type completeEventResponse struct {
	Message        string      `json:"message"`
	EventID        int64       `json:"eventId"`
	UserID         int64       `json:"userId"`
	OccurrenceDate models.Date `json:"occurrenceDate"`
}

func (s *Server) handleCompleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseID(r.PathValue("id"), "event id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req completeEventRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	c, err := s.svc.CompleteEvent(r.Context(), eventID, req.UserID, req.Date)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, completeEventResponse{
		Message:        "Marked as done",
		EventID:        c.EventID,
		UserID:         c.UserID,
		OccurrenceDate: c.OccurrenceDate,
	})
}

// handleCalendarFeed serves every event visible to the user as iCalendar.
func (s *Server) handleCalendarFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r.PathValue("id"), "user id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.svc.GetUser(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// The date only selects completions, which the feed does not carry.
	day, err := s.svc.ListVisibleEvents(r.Context(), userID, "")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	feed := ics.Feed{
		Name:     user.Name,
		Location: s.svc.Location(),
		Stamp:    s.opts.Now(),
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.ics"`, strconv.FormatInt(user.ID, 10)))
	if err := feed.Write(w, day.Events); err != nil {
		s.log.Error("failed to write calendar feed", "user_id", userID, "error", err)
	}
}

func parseID(raw, what string) (int64, error) {
	if raw == "" {
		return 0, apperr.Validation("%s is required", what)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("%s must be a positive integer", what)
	}
	return id, nil
}
