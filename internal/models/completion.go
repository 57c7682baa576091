package models

import "time"

// Completion records that a user marked an event done for one calendar day.
type Completion struct {
	ID             int64     `json:"-"`
	EventID        int64     `json:"eventId"`
	UserID         int64     `json:"userId"`
	OccurrenceDate Date      `json:"occurrenceDate"`
	CreatedAt      time.Time `json:"-"`
}
