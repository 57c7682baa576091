// Package ics renders the events visible to a user as an iCalendar feed.
//
// Recurring events carry an RRULE for the subscribing client to expand;
// nothing here enumerates occurrences.
package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/hray3182/sharedcal/internal/models"
	"github.com/hray3182/sharedcal/internal/rrule"
)

const productID = "-//sharedcal//calendar feed//EN"

// localStampFormat is a DATE-TIME in the zone named by the TZID parameter.
const localStampFormat = "20060102T150405"

// Feed describes one rendered calendar.
type Feed struct {
	// Name is shown by clients as the calendar title.
	Name string
	// Location is the zone event wall-clock times are interpreted in.
	Location *time.Location
	// Stamp is written as DTSTAMP on every event.
	Stamp time.Time
}

// UID returns the stable iCalendar UID of an event.
func UID(eventID int64) string {
	return fmt.Sprintf("event-%d@sharedcal", eventID)
}

func userAddress(id int64) string {
	return fmt.Sprintf("urn:sharedcal:user:%d", id)
}

// zone returns the location to render in and, unless it is UTC or has no
// IANA name, the TZID to label local times with.
func (f Feed) zone() (*time.Location, string) {
	loc := f.Location
	if loc == nil || loc == time.UTC || loc.String() == "UTC" {
		return time.UTC, ""
	}
	if _, err := time.LoadLocation(loc.String()); err != nil {
		return loc, ""
	}
	return loc, loc.String()
}

// Build converts events into a calendar. Recurring events are anchored in
// the feed's zone so clients keep the wall-clock time across DST changes.
func (f Feed) Build(events []*models.EventView) *ical.Calendar {
	loc, tzid := f.zone()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if f.Name != "" {
		cal.SetXWRCalName(f.Name)
	}
	if tzid != "" {
		cal.SetXWRTimezone(tzid)
	}

	for _, ev := range events {
		ve := cal.AddEvent(UID(ev.ID))
		ve.SetDtStampTime(f.Stamp.UTC())
		start, end := ev.Start.At(loc), ev.End.At(loc)
		if tzid != "" {
			ve.SetProperty(ical.ComponentPropertyDtStart, start.Format(localStampFormat), ical.WithTZID(tzid))
			ve.SetProperty(ical.ComponentPropertyDtEnd, end.Format(localStampFormat), ical.WithTZID(tzid))
		} else {
			ve.SetStartAt(start)
			ve.SetEndAt(end)
		}
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		ve.SetOrganizer(userAddress(ev.OwnerID), ical.WithCN(ev.OwnerName))
		for _, u := range ev.SharedWith {
			ve.AddAttendee(userAddress(u.ID), ical.WithCN(u.Name))
		}
		if b := rrule.ForRecurrence(ev.Recurrence); b != nil {
			if rule, err := b.Build(start); err == nil {
				ve.AddProperty(ical.ComponentPropertyRrule, rule.OrigOptions.RRuleString())
			}
		}
	}

	return cal
}

// Write renders events to w.
func (f Feed) Write(w io.Writer, events []*models.EventView) error {
	if _, err := io.WriteString(w, f.Build(events).Serialize()); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}
	return nil
}
