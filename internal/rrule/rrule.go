package rrule

import (
	"fmt"
	"time"

	"github.com/hray3182/sharedcal/internal/models"
	"github.com/teambition/rrule-go"
)

// Common frequencies
const (
	FreqHourly = rrule.HOURLY
	FreqDaily  = rrule.DAILY
)

// RRuleBuilder creates an RRULE from components
type RRuleBuilder struct {
	Freq     rrule.Frequency
	Interval int
}

// ForRecurrence returns the rule a recurrence label stands for, or nil for
// a one-off event. The rule is only ever serialised for clients; the server
// does not iterate it.
func ForRecurrence(r models.Recurrence) *RRuleBuilder {
	switch r {
	case models.RecurrenceHourly:
		return &RRuleBuilder{Freq: FreqHourly, Interval: 1}
	case models.RecurrenceDaily:
		return &RRuleBuilder{Freq: FreqDaily, Interval: 1}
	default:
		return nil
	}
}

func (b *RRuleBuilder) options(dtstart time.Time) rrule.ROption {
	opt := rrule.ROption{
		Freq:    b.Freq,
		Dtstart: dtstart,
	}
	// INTERVAL=1 is the default and is left out of the rule text.
	if b.Interval > 1 {
		opt.Interval = b.Interval
	}
	return opt
}

// Build returns the rule anchored at dtstart.
func (b *RRuleBuilder) Build(dtstart time.Time) (*rrule.RRule, error) {
	rule, err := rrule.NewRRule(b.options(dtstart))
	if err != nil {
		return nil, fmt.Errorf("failed to build RRULE: %w", err)
	}
	return rule, nil
}

// String is the RRULE property value, without DTSTART.
func (b *RRuleBuilder) String() string {
	opt := b.options(time.Time{})
	return opt.RRuleString()
}

// HumanReadable returns a short English description of the label
func HumanReadable(r models.Recurrence) string {
	switch r {
	case models.RecurrenceHourly:
		return "every hour"
	case models.RecurrenceDaily:
		return "every day"
	default:
		return "once"
	}
}
