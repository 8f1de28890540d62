// Package recur expands repeating department events. Local entry supports
// weekly, biweekly and monthly stepping; imported feeds may carry a full
// RRULE which is expanded over a bounded window.
package recur

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	apperrors "schoolcal/internal/errors"
	"schoolcal/internal/model"
)

// MaxOccurrences caps any single expansion.
const MaxOccurrences = 366

// Freq is the stepping of a locally entered repeat.
type Freq string

const (
	Weekly   Freq = "weekly"
	Biweekly Freq = "biweekly"
	Monthly  Freq = "monthly"
)

// ParseFreq maps user input to a Freq.
func ParseFreq(s string) (Freq, error) {
	switch f := Freq(strings.ToLower(strings.TrimSpace(s))); f {
	case Weekly, Biweekly, Monthly:
		return f, nil
	}
	return "", apperrors.WithMetadata(apperrors.CodeValidation, "unknown repeat frequency", map[string]string{"freq": s})
}

func (f Freq) option() (rrule.Frequency, int, bool) {
	switch f {
	case Weekly:
		return rrule.WEEKLY, 1, true
	case Biweekly:
		return rrule.WEEKLY, 2, true
	case Monthly:
		return rrule.MONTHLY, 1, true
	}
	return 0, 0, false
}

// Pattern repeats from Start through Until, inclusive.
type Pattern struct {
	Freq  Freq
	Start time.Time
	Until time.Time
}

// Dates returns the occurrence dates of p. Until must be after Start.
// Monthly stepping from the 29th to 31st skips months without that day.
func Dates(p Pattern) ([]time.Time, error) {
	freq, interval, ok := p.Freq.option()
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeValidation, "unknown repeat frequency", map[string]string{"freq": string(p.Freq)})
	}
	if p.Start.IsZero() || p.Until.IsZero() {
		return nil, apperrors.Validation("repeat start and end dates are required")
	}
	start := model.Truncate(p.Start)
	until := model.Truncate(p.Until)
	if !until.After(start) {
		return nil, apperrors.WithMetadata(apperrors.CodeValidation, "repeat end must be after start", map[string]string{
			"start": model.Key(start),
			"until": model.Key(until),
		})
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     freq,
		Interval: interval,
		Dtstart:  start,
		Until:    until,
		Count:    MaxOccurrences,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "build repeat rule", err)
	}
	return r.All(), nil
}

// Expand copies ev onto every occurrence of p, keeping its length in days.
// Copies get newID() ids; the first copy keeps ev.ID when set.
func Expand(ev model.DepartmentEvent, p Pattern, newID func() string) ([]model.DepartmentEvent, error) {
	if p.Start.IsZero() {
		p.Start = ev.StartDate
	}
	dates, err := Dates(p)
	if err != nil {
		return nil, err
	}

	span := 0
	if !ev.EndDate.IsZero() {
		span = int(model.Truncate(ev.EndDate).Sub(model.Truncate(ev.StartDate)).Hours() / 24)
	}
	if span < 0 {
		return nil, apperrors.Validation("event ends before it starts")
	}

	out := make([]model.DepartmentEvent, 0, len(dates))
	for i, d := range dates {
		c := ev
		c.StartDate = d
		c.EndDate = d.AddDate(0, 0, span)
		if i > 0 || c.ID == "" {
			c.ID = newID()
		}
		out = append(out, c)
	}
	return out, nil
}

// Rule is a raw RRULE with its anchor and exclusions, as read from a feed.
type Rule struct {
	RRule   string
	DTStart time.Time
	ExDates []time.Time
}

// Between returns the occurrence starts of r inside [from, to]. truncated
// reports whether MaxOccurrences cut the result.
func Between(r Rule, from, to time.Time) (occ []time.Time, truncated bool, err error) {
	if to.Before(from) {
		return nil, false, apperrors.WithMetadata(apperrors.CodeValidation, "window ends before it starts", map[string]string{
			"from": model.Key(from),
			"to":   model.Key(to),
		})
	}
	rule, err := rrule.StrToRRule(r.RRule)
	if err != nil {
		return nil, false, apperrors.WrapWithMetadata(apperrors.CodeValidation, "parse RRULE", map[string]string{"rrule": r.RRule}, err)
	}
	rule.DTStart(r.DTStart)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range r.ExDates {
		set.ExDate(ex.In(r.DTStart.Location()))
	}

	occ = set.Between(from.In(r.DTStart.Location()), to.In(r.DTStart.Location()), true)
	if len(occ) > MaxOccurrences {
		occ = occ[:MaxOccurrences]
		truncated = true
	}
	return occ, truncated, nil
}
