package holiday

import (
	"sort"
	"strings"
	"time"

	"schoolcal/internal/model"
)

// Map holds holiday names per civil date (YYYY-MM-DD), in insertion order.
type Map map[string][]string

// Add appends name to date unless it is already present.
func (m Map) Add(date time.Time, name string) {
	k := model.Key(date)
	for _, n := range m[k] {
		if n == name {
			return
		}
	}
	m[k] = append(m[k], name)
}

// Has reports whether date carries at least one holiday.
func (m Map) Has(date time.Time) bool {
	return len(m[model.Key(date)]) > 0
}

// Names returns the ordered holiday names for date.
func (m Map) Names(date time.Time) []string {
	return m[model.Key(date)]
}

// Joined returns the comma-joined display string for date.
func (m Map) Joined(date time.Time) string {
	return strings.Join(m.Names(date), ", ")
}

// Dates returns the keys in ascending order.
func (m Map) Dates() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Entry is one date of the holiday set.
type Entry struct {
	Date  time.Time
	Names []string
}

// Entries returns the map as a date-sorted slice.
func (m Map) Entries() []Entry {
	out := make([]Entry, 0, len(m))
	for _, k := range m.Dates() {
		out = append(out, Entry{Date: model.MustDate(k), Names: append([]string(nil), m[k]...)})
	}
	return out
}

// Rows flattens the map into holiday rows, one per name, for academic year.
func (m Map) Rows(year int) []model.BasicScheduleRow {
	rows := make([]model.BasicScheduleRow, 0, len(m))
	for _, e := range m.Entries() {
		for _, name := range e.Names {
			rows = append(rows, model.BasicScheduleRow{
				AcademicYear: year,
				Type:         model.RowHoliday,
				Name:         name,
				StartDate:    e.Date,
				EndDate:      e.Date,
				IsHoliday:    true,
			})
		}
	}
	return rows
}
