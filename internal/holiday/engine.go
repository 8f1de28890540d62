// Package holiday computes the statutory holiday set of an academic year:
// fixed solar holidays, lunisolar holidays and substitute days.
package holiday

import (
	"sort"
	"time"

	appLog "schoolcal/internal/log"
	"schoolcal/internal/lunar"
	"schoolcal/internal/model"
)

// Engine computes holiday maps from rule tables.
type Engine struct {
	conv  lunar.Converter
	fixed []FixedRule
	lunar []LunarRule
}

// NewEngine returns an Engine using the statutory rule tables. A nil
// converter selects lunar.DefaultConverter.
func NewEngine(conv lunar.Converter) *Engine {
	if conv == nil {
		conv = lunar.DefaultConverter{}
	}
	return &Engine{
		conv:  conv,
		fixed: FixedHolidays,
		lunar: LunarHolidays,
	}
}

// entry is a single holiday name on a date with its substitution class.
type entry struct {
	date  time.Time
	name  string
	class SubstituteClass
}

// Compute returns the full holiday set of academic year year. It never
// fails: a lunar holiday whose conversion fails is omitted for that year.
func (e *Engine) Compute(year int) Map {
	entries := make([]entry, 0, len(e.fixed)+3*len(e.lunar))

	for _, r := range e.fixed {
		d := model.Civil(model.YearForMonth(year, r.Month), r.Month, r.Day)
		entries = append(entries, entry{date: d, name: r.Name, class: r.Class})
	}

	for _, r := range e.lunar {
		d, err := lunar.SolarDateForLunar(e.conv, year, r.Month, r.Day)
		if err != nil {
			appLog.Debug("lunar holiday skipped", "year", year, "name", r.Name, "err", err)
			continue
		}
		if !r.Span {
			entries = append(entries, entry{date: d, name: r.Name, class: r.Class})
			continue
		}
		entries = append(entries,
			entry{date: d.AddDate(0, 0, -1), name: r.Name + SpanSuffix, class: r.Class},
			entry{date: d, name: r.Name, class: r.Class},
			entry{date: d.AddDate(0, 0, 1), name: r.Name + SpanSuffix, class: r.Class},
		)
	}

	m := make(Map, len(entries))
	for _, en := range entries {
		m.Add(en.date, en.name)
	}

	for _, sub := range substitutes(entries, m) {
		m.Add(sub.date, sub.name)
	}
	return m
}

// substitutes runs the substitution pass over entries in ascending date
// order (stable, so same-day names keep insertion order). occupied holds
// the holidays before the pass.
func substitutes(entries []entry, occupied Map) []entry {
	sorted := make([]entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].date.Before(sorted[j].date)
	})

	claimed := make(map[string]bool)
	var out []entry
	for _, en := range sorted {
		if !en.class.Triggers(en.date) {
			continue
		}
		d := en.date.AddDate(0, 0, 1)
		for model.IsWeekend(d) || occupied.Has(d) || claimed[model.Key(d)] {
			d = d.AddDate(0, 0, 1)
		}
		claimed[model.Key(d)] = true
		out = append(out, entry{date: d, name: SubstituteName(en.name), class: ClassNone})
	}
	return out
}

// Entries returns the holiday set of year as a date-sorted slice.
func (e *Engine) Entries(year int) []Entry {
	return e.Compute(year).Entries()
}

// IsHoliday reports whether date is a holiday of the academic year it
// belongs to.
func (e *Engine) IsHoliday(date time.Time) bool {
	date = model.Truncate(date)
	return e.Compute(model.AcademicYearOf(date)).Has(date)
}
