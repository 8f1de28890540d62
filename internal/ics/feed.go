package ics

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "schoolcal/internal/log"
	"schoolcal/internal/model"
	"schoolcal/internal/recur"
)

// feedNamespace seeds the stable ids of feed events, so that a resync
// replaces rows instead of duplicating them.
var feedNamespace = uuid.MustParse("6f1c2b8e-5d4a-4e3b-9a71-0c2d8e4f1a90")

// DepartmentEvents converts the parsed VEVENTs of src into department
// events of academic year Y. Recurring events are expanded over the year;
// RECURRENCE-ID overrides replace the matching occurrence.
func DepartmentEvents(src Source, events []ParsedEvent, year int) []model.DepartmentEvent {
	from, to := model.AcademicRange(year)
	// 종료일 당일의 시간 있는 일정도 포함한다.
	toInclusive := to.AddDate(0, 0, 1).Add(-time.Second)

	overrides := make(map[string]map[string]ParsedEvent)
	for _, ev := range events {
		if !ev.IsOverride {
			continue
		}
		if overrides[ev.UID] == nil {
			overrides[ev.UID] = make(map[string]ParsedEvent)
		}
		overrides[ev.UID][model.Key(*ev.Recurrence)] = ev
	}

	var out []model.DepartmentEvent
	for _, ev := range events {
		if ev.IsOverride {
			continue
		}
		if ev.RawRRule == "" {
			start, end := civilSpan(ev, ev.Start)
			if end.Before(from) || start.After(to) {
				continue
			}
			out = append(out, toDepartmentEvent(src, ev, start, end))
			continue
		}

		occ, truncated, err := recur.Between(recur.Rule{RRule: ev.RawRRule, DTStart: ev.Start, ExDates: ev.ExDates}, from, toInclusive)
		if err != nil {
			appLog.Error("ics rrule expand failed", err, "feed", src.ID, "uid", ev.UID)
			continue
		}
		if truncated {
			appLog.Warn("ics rrule truncated", "feed", src.ID, "uid", ev.UID, "cap", recur.MaxOccurrences)
		}
		for _, o := range occ {
			base := ev
			if ov, ok := overrides[ev.UID][model.Key(o)]; ok {
				base = ov
				o = ov.Start
			}
			start, end := civilSpan(base, o)
			out = append(out, toDepartmentEvent(src, base, start, end))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}

// civilSpan returns the inclusive civil dates of ev when it starts at
// occStart. All-day DTEND is exclusive.
func civilSpan(ev ParsedEvent, occStart time.Time) (time.Time, time.Time) {
	start := model.Truncate(occStart)
	if ev.End.IsZero() || !ev.End.After(ev.Start) {
		return start, start
	}
	if ev.AllDay {
		days := int(model.Truncate(ev.End).Sub(model.Truncate(ev.Start)).Hours()/24) - 1
		if days < 0 {
			days = 0
		}
		return start, start.AddDate(0, 0, days)
	}
	end := occStart.Add(ev.End.Sub(ev.Start))
	if isMidnight(end) {
		end = end.Add(-time.Second)
	}
	end = model.Truncate(end)
	if end.Before(start) {
		end = start
	}
	return start, end
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

func toDepartmentEvent(src Source, ev ParsedEvent, start, end time.Time) model.DepartmentEvent {
	title := ev.Summary
	if title == "" {
		title = "(제목 없음)"
	}
	return model.DepartmentEvent{
		ID:          uuid.NewSHA1(feedNamespace, []byte(strings.Join([]string{src.ID, ev.UID, model.Key(start)}, "|"))).String(),
		Title:       title,
		StartDate:   start,
		EndDate:     end,
		DeptID:      src.DeptID,
		Visibility:  "public",
		Description: ev.Description,
		IsPrintable: true,
		Source:      model.SourceFeedPrefix + src.ID,
	}
}
