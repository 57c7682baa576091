package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the wire form of an occurrence date.
	DateLayout = "2006-01-02"
	// LocalTimeLayout is the wire form of event start/end timestamps.
	LocalTimeLayout = "2006-01-02T15:04:05"
)

// Accepted input forms, including the minute-precision value a
// datetime-local input produces.
var localTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// LocalTime is a wall-clock timestamp without a zone. Values carry
// time.UTC as their location so they round-trip through TIMESTAMP columns
// unchanged.
type LocalTime struct {
	time.Time
}

func NewLocalTime(t time.Time) LocalTime {
	return LocalTime{Time: time.Date(t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)}
}

// ParseLocalTime accepts ISO-8601 date-times. Inputs with an offset are
// converted to the UTC wall clock.
func ParseLocalTime(s string) (LocalTime, error) {
	return ParseLocalTimeIn(s, time.UTC)
}

// ParseLocalTimeIn is ParseLocalTime for a calendar kept in loc: an input
// with an offset becomes the wall clock it names in loc. Zone-less inputs
// are taken as they are.
func ParseLocalTimeIn(s string, loc *time.Location) (LocalTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range localTimeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if layout == time.RFC3339Nano {
			t = t.In(loc)
		}
		return NewLocalTime(t), nil
	}
	return LocalTime{}, fmt.Errorf("invalid timestamp %q", s)
}

// At reinterprets the wall clock in loc.
func (t LocalTime) At(loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func (t LocalTime) String() string {
	return t.Format(LocalTimeLayout)
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

func (t *LocalTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*t = LocalTime{}
		return nil
	}
	parsed, err := ParseLocalTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a calendar day with no time-of-day component.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
