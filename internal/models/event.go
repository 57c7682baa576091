package models

import "fmt"

// Recurrence is a declarative cadence label. It is never expanded into
// concrete occurrences by the server.
type Recurrence string

const (
	RecurrenceNone   Recurrence = "NONE"
	RecurrenceHourly Recurrence = "HOURLY"
	RecurrenceDaily  Recurrence = "DAILY"
)

// Recurrences lists every accepted label.
var Recurrences = []Recurrence{RecurrenceNone, RecurrenceHourly, RecurrenceDaily}

func ParseRecurrence(s string) (Recurrence, error) {
	for _, r := range Recurrences {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("recurrence %q must be one of %v", s, Recurrences)
}

// IsRecurring returns true if the label describes a repeating event
func (r Recurrence) IsRecurring() bool {
	return r == RecurrenceHourly || r == RecurrenceDaily
}

type Event struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Start       LocalTime  `json:"start"`
	End         LocalTime  `json:"end"`
	Recurrence  Recurrence `json:"recurrence"`
	OwnerID     int64      `json:"ownerId"`
}

// EventView is an event as seen by one user on one date: the owner's name,
// everyone it is shared with, and who completed it that day.
type EventView struct {
	Event
	OwnerName   string  `json:"ownerName"`
	SharedWith  []*User `json:"sharedWith"`
	CompletedBy []*User `json:"completedBy"`
}

// DayView is the list of events visible to a user, with completion state
// for Date.
type DayView struct {
	Date   Date         `json:"date"`
	Events []*EventView `json:"events"`
}
