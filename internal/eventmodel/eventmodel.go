// Package eventmodel merges the basic schedule, department schedules and
// observance days of one academic year into a single date-indexed model.
//
// Build is a pure function of its input.
package eventmodel

import (
	"sort"
	"time"

	"schoolcal/internal/model"
	"schoolcal/internal/normalize"
	"schoolcal/internal/observance"
)

// Display colors.
const (
	ColorHoliday    = "#dc2626"
	ColorTerm       = "#1d4ed8"
	ColorExam       = "#7c3aed"
	ColorEvent      = "#0f766e"
	ColorObservance = "#6b7280"
	ColorDefault    = "#374151"
)

// Options tunes Build.
type Options struct {
	// PrintableOnly drops department rows not marked printable.
	PrintableOnly bool
}

// Input is everything Build reads.
type Input struct {
	Year           int
	BasicRows      []model.BasicScheduleRow
	DepartmentRows []model.DepartmentEvent
	Observances    []observance.Observance
	Departments    []model.Department
	Options        Options
}

// Model is the merged calendar of one academic year. Maps are keyed by
// model.Key dates.
type Model struct {
	// Background holds the red full-day background entries of holidays.
	Background []model.DisplayEvent
	// Labels holds header and colored label entries, one per day.
	Labels []model.DisplayEvent
	// DayLabels is the ordered, de-duplicated label text of each day.
	DayLabels map[string][]string
	// Schedule groups foreground department events by date then
	// department id. Unknown ids go to model.DeptOther.
	Schedule map[string]map[string][]model.DisplayEvent
	RedDays  map[string]bool
	Holidays map[string][]string
}

// Dates returns every date key present in the model, sorted.
func (m Model) Dates() []string {
	seen := make(map[string]bool)
	for k := range m.DayLabels {
		seen[k] = true
	}
	for k := range m.Schedule {
		seen[k] = true
	}
	for k := range m.RedDays {
		seen[k] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type builder struct {
	m     Model
	ref   map[string]map[string]bool
	depts map[string]model.Department
}

// Build merges in into a Model.
func Build(in Input) Model {
	b := &builder{
		m: Model{
			DayLabels: make(map[string][]string),
			Schedule:  make(map[string]map[string][]model.DisplayEvent),
			RedDays:   make(map[string]bool),
			Holidays:  make(map[string][]string),
		},
		ref:   make(map[string]map[string]bool),
		depts: make(map[string]model.Department, len(in.Departments)),
	}
	for _, d := range in.Departments {
		b.depts[d.ID] = d
	}

	for _, r := range in.BasicRows {
		b.addBasic(r)
	}
	for _, o := range observance.Dates(in.Year, in.Observances) {
		b.label(o.Date, o.Name, model.KindHeaderLabel, ColorObservance, false)
		b.register(o.Date, o.Name)
	}

	var others []model.DepartmentEvent
	for _, ev := range in.DepartmentRows {
		if in.Options.PrintableOnly && !ev.IsPrintable {
			continue
		}
		if ev.DeptID != model.DeptAdminOffice {
			others = append(others, ev)
			continue
		}
		// 행정실 일정은 기준 목록에 먼저 등록하고 그대로 표시한다.
		model.EachDay(ev.StartDate, ev.EndDate, func(day time.Time) {
			b.register(day, ev.Title)
			b.schedule(day, ev)
		})
	}
	for _, ev := range others {
		key := normalize.Title(ev.Title)
		model.EachDay(ev.StartDate, ev.EndDate, func(day time.Time) {
			if key != "" && b.ref[model.Key(day)][key] {
				return
			}
			b.schedule(day, ev)
		})
	}
	return b.m
}

func (b *builder) addBasic(r model.BasicScheduleRow) {
	switch r.Type {
	case model.RowTerm, model.RowVacation:
		model.EachDay(r.StartDate, r.EndDate, func(day time.Time) {
			b.label(day, r.Name, model.KindHeaderLabel, ColorTerm, false)
			b.register(day, r.Name)
		})
	case model.RowHoliday:
		model.EachDay(r.StartDate, r.EndDate, func(day time.Time) {
			b.m.Background = append(b.m.Background, model.DisplayEvent{
				Start: day,
				End:   day,
				Kind:  model.KindBackgroundHoliday,
				Label: r.Name,
				Color: ColorHoliday,
				Red:   r.IsHoliday,
			})
			b.label(day, r.Name, model.KindHeaderLabel, ColorHoliday, r.IsHoliday)
			b.register(day, r.Name)

			k := model.Key(day)
			if r.IsHoliday {
				b.m.RedDays[k] = true
			}
			b.m.Holidays[k] = appendUnique(b.m.Holidays[k], r.Name)
		})
	case model.RowExam, model.RowEvent:
		color := ColorEvent
		if r.Type == model.RowExam {
			color = ColorExam
		}
		model.EachDay(r.StartDate, r.EndDate, func(day time.Time) {
			b.label(day, r.Name, model.KindSchedule, color, false)
			b.register(day, r.Name)
		})
	default:
		// model.ParseRowType rejects anything else before rows get here.
	}
}

func (b *builder) label(day time.Time, text string, kind model.DisplayKind, color string, red bool) {
	b.m.Labels = append(b.m.Labels, model.DisplayEvent{
		Start: day,
		End:   day,
		Kind:  kind,
		Label: text,
		Color: color,
		Red:   red,
	})
	k := model.Key(day)
	b.m.DayLabels[k] = appendUnique(b.m.DayLabels[k], text)
}

func (b *builder) register(day time.Time, title string) {
	key := normalize.Title(title)
	if key == "" {
		return
	}
	k := model.Key(day)
	if b.ref[k] == nil {
		b.ref[k] = make(map[string]bool)
	}
	b.ref[k][key] = true
}

func (b *builder) schedule(day time.Time, ev model.DepartmentEvent) {
	bucket := ev.DeptID
	color := ColorDefault
	if d, ok := b.depts[ev.DeptID]; ok {
		if d.Color != "" {
			color = d.Color
		}
	} else {
		bucket = model.DeptOther
	}

	k := model.Key(day)
	if b.m.Schedule[k] == nil {
		b.m.Schedule[k] = make(map[string][]model.DisplayEvent)
	}
	b.m.Schedule[k][bucket] = append(b.m.Schedule[k][bucket], model.DisplayEvent{
		Start:  day,
		End:    day,
		Kind:   model.KindSchedule,
		Label:  ev.Title,
		DeptID: ev.DeptID,
		Color:  color,
	})
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
