// Package view shapes an eventmodel.Model into per-day groups for display.
package view

import (
	"sort"
	"time"

	"schoolcal/internal/eventmodel"
	"schoolcal/internal/model"
)

// DeptGroup is the events of one department on one day.
type DeptGroup struct {
	DeptID string               `json:"dept_id"`
	Name   string               `json:"name"`
	Short  string               `json:"short,omitempty"`
	Color  string               `json:"color,omitempty"`
	Events []model.DisplayEvent `json:"events"`
}

// Day is one calendar cell.
type Day struct {
	Date        time.Time   `json:"-"`
	Key         string      `json:"date"`
	Labels      []string    `json:"labels,omitempty"`
	Red         bool        `json:"red"`
	Holidays    []string    `json:"holidays,omitempty"`
	Departments []DeptGroup `json:"departments,omitempty"`
}

// Group returns the days of m in ascending order, with department groups
// ordered for display.
func Group(m eventmodel.Model, departments []model.Department) []Day {
	byID := make(map[string]model.Department, len(departments))
	for _, d := range departments {
		byID[d.ID] = d
	}

	keys := m.Dates()
	days := make([]Day, 0, len(keys))
	for _, k := range keys {
		date, err := model.ParseDate(k)
		if err != nil {
			continue
		}
		day := Day{
			Date:     date,
			Key:      k,
			Labels:   m.DayLabels[k],
			Red:      m.RedDays[k],
			Holidays: m.Holidays[k],
		}
		for id, evs := range m.Schedule[k] {
			g := DeptGroup{DeptID: id, Events: evs}
			if d, ok := byID[id]; ok {
				g.Name, g.Short, g.Color = d.Name, d.Short, d.Color
			} else if id == model.DeptOther {
				g.Name = "기타"
			}
			day.Departments = append(day.Departments, g)
		}
		sortGroups(day.Departments, byID)
		days = append(days, day)
	}
	return days
}

// sortGroups orders by sort order, then general before special, then name.
// The other bucket is always last.
func sortGroups(groups []DeptGroup, byID map[string]model.Department) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if (a.DeptID == model.DeptOther) != (b.DeptID == model.DeptOther) {
			return b.DeptID == model.DeptOther
		}
		da, db := byID[a.DeptID], byID[b.DeptID]
		if da.SortOrder != db.SortOrder {
			return da.SortOrder < db.SortOrder
		}
		if ra, rb := kindRank(da.Kind), kindRank(db.Kind); ra != rb {
			return ra < rb
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.DeptID < b.DeptID
	})
}

func kindRank(k model.DeptKind) int {
	if k == model.DeptSpecial {
		return 1
	}
	return 0
}

// Month keeps the days of year-month.
func Month(days []Day, year int, month time.Month) []Day {
	var out []Day
	for _, d := range days {
		if d.Date.Year() == year && d.Date.Month() == month {
			out = append(out, d)
		}
	}
	return out
}
