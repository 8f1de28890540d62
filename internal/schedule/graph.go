// Package schedule holds the editing context of one academic year: the
// anchored schedule dates with their derivation graph, manually entered
// holidays and freeform events.
package schedule

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "schoolcal/internal/errors"
	"schoolcal/internal/holiday"
	"schoolcal/internal/model"
)

// Graph is the explicit editing context for one academic year. It is not
// safe for concurrent use.
type Graph struct {
	year     int
	holidays holiday.Map
	anchors  map[Code]*Anchor
	variable []VariableHoliday
	events   []Event
}

// New returns an empty graph for year. holidays is the computed statutory
// set of that year; nil is treated as empty.
func New(year int, holidays holiday.Map) *Graph {
	if holidays == nil {
		holidays = make(holiday.Map)
	}
	g := &Graph{
		year:     year,
		holidays: holidays,
	}
	g.resetAnchors()
	return g
}

func (g *Graph) resetAnchors() {
	g.anchors = make(map[Code]*Anchor, len(anchorDefs))
	for _, d := range anchorDefs {
		g.anchors[d.code] = &Anchor{Code: d.code}
	}
}

// Year returns the academic year.
func (g *Graph) Year() int { return g.year }

// Holidays returns the computed statutory holidays.
func (g *Graph) Holidays() holiday.Map { return g.holidays }

// Anchor returns a copy of the anchor for code.
func (g *Graph) Anchor(code Code) Anchor {
	if a, ok := g.anchors[code]; ok {
		return *a
	}
	return Anchor{Code: code}
}

// Anchors returns copies of every anchor in calendar order.
func (g *Graph) Anchors() []Anchor {
	out := make([]Anchor, 0, len(anchorDefs))
	for _, d := range anchorDefs {
		out = append(out, *g.anchors[d.code])
	}
	return out
}

func (g *Graph) value(code Code) time.Time {
	return g.anchors[code].Value
}

// VariableHolidays returns the manually entered holidays.
func (g *Graph) VariableHolidays() []VariableHoliday {
	return append([]VariableHoliday(nil), g.variable...)
}

// Events returns the freeform exam and event rows.
func (g *Graph) Events() []Event {
	return append([]Event(nil), g.events...)
}

// IsNonSchoolDay reports whether d is a weekend, a computed holiday or a
// variable holiday.
func (g *Graph) IsNonSchoolDay(d time.Time) bool {
	d = model.Truncate(d)
	if model.IsWeekend(d) || g.holidays.Has(d) {
		return true
	}
	for _, v := range g.variable {
		if v.Covers(d) {
			return true
		}
	}
	return false
}

// Recompute re-derives every non-manual derived field. It runs on year
// selection.
func (g *Graph) Recompute() {
	for _, code := range derivedOrder {
		a := g.anchors[code]
		if a.IsManual {
			continue
		}
		a.Value = rules[code].derive(g)
	}
}

// cascade re-derives the transitive dependents of changed. A manual
// dependent keeps its value, so nothing downstream of it moves.
func (g *Graph) cascade(changed Code) {
	queue := append([]Code(nil), dependents[changed]...)
	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]

		a := g.anchors[code]
		if a.IsManual {
			continue
		}
		next := rules[code].derive(g)
		if next.Equal(a.Value) {
			continue
		}
		a.Value = next
		queue = append(queue, dependents[code]...)
	}
}

// Set is a direct edit of code. The field becomes manual permanently and
// its dependents are re-derived.
func (g *Graph) Set(code Code, value time.Time) error {
	a, ok := g.anchors[code]
	if !ok {
		return unknownCode(code)
	}
	if value.IsZero() {
		return apperrors.WithMetadata(apperrors.CodeValidation, "date is required", map[string]string{"field": string(code)})
	}
	value = model.Truncate(value)
	if err := g.checkVacationOrder(code, value); err != nil {
		return err
	}

	a.Value = value
	a.IsManual = true
	g.cascade(code)
	return nil
}

// Clear empties code as a direct edit. The field becomes manual, so no
// cascade refills it.
func (g *Graph) Clear(code Code) error {
	a, ok := g.anchors[code]
	if !ok {
		return unknownCode(code)
	}
	a.Value = time.Time{}
	a.IsManual = true
	g.cascade(code)
	return nil
}

func (g *Graph) checkVacationOrder(code Code, value time.Time) error {
	for start, end := range vacationEnds {
		var s, e time.Time
		switch code {
		case start:
			s, e = value, g.value(end)
		case end:
			s, e = g.value(start), value
		default:
			continue
		}
		if !s.IsZero() && !e.IsZero() && e.Before(s) {
			return apperrors.WithMetadata(apperrors.CodeValidation, "vacation ends before it starts", map[string]string{
				"field": string(code),
				"start": model.Key(s),
				"end":   model.Key(e),
			})
		}
	}
	return nil
}

// AddVariableHoliday records a manually entered holiday and re-derives the
// first school day. An empty ID is generated.
func (g *Graph) AddVariableHoliday(v VariableHoliday) (VariableHoliday, error) {
	v, err := normalizeVariable(v)
	if err != nil {
		return VariableHoliday{}, err
	}
	if v.ID == "" {
		v.ID = newID()
	}
	g.variable = append(g.variable, v)
	g.holidaysChanged()
	return v, nil
}

// UpdateVariableHoliday replaces the holiday with the same ID.
func (g *Graph) UpdateVariableHoliday(v VariableHoliday) error {
	v, err := normalizeVariable(v)
	if err != nil {
		return err
	}
	for i := range g.variable {
		if g.variable[i].ID == v.ID {
			g.variable[i] = v
			g.holidaysChanged()
			return nil
		}
	}
	return apperrors.WithMetadata(apperrors.CodeNotFound, "variable holiday not found", map[string]string{"id": v.ID})
}

// RemoveVariableHoliday deletes the holiday with id.
func (g *Graph) RemoveVariableHoliday(id string) error {
	for i := range g.variable {
		if g.variable[i].ID == id {
			g.variable = append(g.variable[:i], g.variable[i+1:]...)
			g.holidaysChanged()
			return nil
		}
	}
	return apperrors.WithMetadata(apperrors.CodeNotFound, "variable holiday not found", map[string]string{"id": id})
}

func (g *Graph) holidaysChanged() {
	g.cascade(sourceHolidays)
}

func normalizeVariable(v VariableHoliday) (VariableHoliday, error) {
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" {
		return v, apperrors.Validation("holiday name is required")
	}
	if v.Start.IsZero() {
		return v, apperrors.Validation("holiday start date is required")
	}
	v.Start = model.Truncate(v.Start)
	if v.End.IsZero() {
		v.End = v.Start
	}
	v.End = model.Truncate(v.End)
	if v.End.Before(v.Start) {
		return v, apperrors.WithMetadata(apperrors.CodeValidation, "holiday ends before it starts", map[string]string{
			"start": model.Key(v.Start),
			"end":   model.Key(v.End),
		})
	}
	return v, nil
}

// AddEvent records a freeform exam or event row. An empty ID is generated.
func (g *Graph) AddEvent(ev Event) (Event, error) {
	switch ev.Type {
	case model.RowExam, model.RowEvent:
	case model.RowTerm, model.RowVacation, model.RowHoliday:
		return Event{}, apperrors.WithMetadata(apperrors.CodeValidation, "freeform rows must be exam or event", map[string]string{"type": ev.Type.String()})
	default:
		return Event{}, apperrors.WithMetadata(apperrors.CodeValidation, "unknown row type", map[string]string{"type": ev.Type.String()})
	}
	ev.Name = strings.TrimSpace(ev.Name)
	if ev.Name == "" {
		return Event{}, apperrors.Validation("event name is required")
	}
	if ev.Start.IsZero() {
		return Event{}, apperrors.Validation("event start date is required")
	}
	ev.Start = model.Truncate(ev.Start)
	if ev.End.IsZero() {
		ev.End = ev.Start
	}
	ev.End = model.Truncate(ev.End)
	if ev.End.Before(ev.Start) {
		return Event{}, apperrors.Validation("event ends before it starts")
	}
	if ev.ID == "" {
		ev.ID = newID()
	}
	g.events = append(g.events, ev)
	return ev, nil
}

// RemoveEvent deletes the freeform event with id.
func (g *Graph) RemoveEvent(id string) error {
	for i := range g.events {
		if g.events[i].ID == id {
			g.events = append(g.events[:i], g.events[i+1:]...)
			return nil
		}
	}
	return apperrors.WithMetadata(apperrors.CodeNotFound, "event not found", map[string]string{"id": id})
}

func unknownCode(code Code) error {
	return apperrors.WithMetadata(apperrors.CodeValidation, "unknown schedule field", map[string]string{"field": string(code)})
}

func newID() string {
	return uuid.NewString()
}
