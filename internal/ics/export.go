package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"schoolcal/internal/model"
)

// ProductID is the PRODID of exported calendars.
const ProductID = "-//schoolcal//Academic Calendar//KO"

// Export is the content of one exported calendar.
type Export struct {
	Name             string
	Year             int
	BasicRows        []model.BasicScheduleRow
	DepartmentEvents []model.DepartmentEvent
	// Stamp is written as DTSTAMP; zero means now.
	Stamp time.Time
}

// Calendar builds the VCALENDAR of e. Every entry is an all-day VEVENT.
func (e Export) Calendar() *ical.Calendar {
	stamp := e.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}
	stamp = stamp.UTC()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetCalscale("GREGORIAN")
	if e.Name != "" {
		cal.SetXWRCalName(e.Name)
	}

	for _, r := range e.BasicRows {
		ev := cal.AddEvent(basicUID(e.Year, r))
		setAllDay(ev, r.StartDate, r.EndDate)
		ev.SetDtStampTime(stamp)
		ev.SetSummary(r.Name)
		ev.SetProperty(ical.ComponentPropertyCategories, r.Type.String())
		if r.Type == model.RowHoliday && r.IsHoliday {
			ev.SetProperty(ical.ComponentPropertyTransp, "TRANSPARENT")
		}
	}

	for _, d := range e.DepartmentEvents {
		ev := cal.AddEvent(d.ID + "@schoolcal")
		setAllDay(ev, d.StartDate, d.EndDate)
		ev.SetDtStampTime(stamp)
		ev.SetSummary(d.Title)
		if d.Description != "" {
			ev.SetDescription(d.Description)
		}
		ev.SetProperty(ical.ComponentPropertyCategories, d.DeptID)
	}
	return cal
}

// WriteTo serializes the calendar to w.
func (e Export) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, e.Calendar().Serialize())
	return int64(n), err
}

// setAllDay writes an inclusive civil range as DATE values with the
// exclusive DTEND of RFC 5545.
func setAllDay(ev *ical.VEvent, start, end time.Time) {
	start = model.Truncate(start)
	end = model.Truncate(end)
	if end.IsZero() || end.Before(start) {
		end = start
	}
	ev.SetAllDayStartAt(start)
	ev.SetAllDayEndAt(end.AddDate(0, 0, 1))
}

func basicUID(year int, r model.BasicScheduleRow) string {
	if r.Code != "" {
		return fmt.Sprintf("%d-%s@schoolcal", year, r.Code)
	}
	key := strings.Join([]string{r.Type.String(), r.Name, model.Key(r.StartDate), model.Key(r.EndDate)}, "|")
	return uuid.NewSHA1(feedNamespace, []byte(key)).String() + "@schoolcal"
}
