package schedule

import (
	"strconv"
	"time"

	apperrors "schoolcal/internal/errors"
	"schoolcal/internal/model"
)

// Load replaces the graph state with rows read from source.
//
// Manual flags are reset, except that a derived field whose stored value
// differs from what its sources derive is taken as a past manual edit. A
// derived field missing from a stored year counts as cleared, so it is
// manual too when its derivation is not empty.
// Holiday rows that match the computed statutory set are regenerated from
// rules and not kept as variable holidays.
func (g *Graph) Load(rows []model.BasicScheduleRow) error {
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.Code == "" {
			continue
		}
		if seen[r.Code] {
			return apperrors.WithMetadata(apperrors.CodeValidation, "duplicate schedule code", map[string]string{
				"year": strconv.Itoa(g.year),
				"code": r.Code,
			})
		}
		seen[r.Code] = true
	}

	g.resetAnchors()
	g.variable = nil
	g.events = nil

	for _, r := range rows {
		start := model.Truncate(r.StartDate)
		end := model.Truncate(r.EndDate)
		if end.IsZero() {
			end = start
		}

		if r.Code != "" {
			if a, ok := g.anchors[Code(r.Code)]; ok {
				a.Value = start
			}
			continue
		}

		switch r.Type {
		case model.RowHoliday:
			if start.Equal(end) && g.isComputedHoliday(start, r.Name) {
				continue
			}
			g.variable = append(g.variable, VariableHoliday{ID: newID(), Name: r.Name, Start: start, End: end})
		case model.RowExam, model.RowEvent, model.RowTerm, model.RowVacation:
			g.events = append(g.events, Event{ID: newID(), Type: r.Type, Name: r.Name, Start: start, End: end})
		default:
			return apperrors.WithMetadata(apperrors.CodeValidation, "unknown row type", map[string]string{"type": r.Type.String()})
		}
	}

	// 저장된 앵커가 하나도 없으면 아직 저장 전인 학년도다.
	if !hasAnchorRow(rows) {
		return nil
	}
	for _, code := range derivedOrder {
		a := g.anchors[code]
		if !rules[code].derive(g).Equal(a.Value) {
			a.IsManual = true
		}
	}
	return nil
}

func hasAnchorRow(rows []model.BasicScheduleRow) bool {
	for _, r := range rows {
		if r.Code != "" && Known(Code(r.Code)) {
			return true
		}
	}
	return false
}

func (g *Graph) isComputedHoliday(d time.Time, name string) bool {
	for _, n := range g.holidays.Names(d) {
		if n == name {
			return true
		}
	}
	return false
}

// Rows flattens the graph into the basic_schedules row set of the year,
// ready for a bulk replace-write. Every non-empty anchor yields exactly one
// row carrying its code; a vacation start spans to its end when known.
func (g *Graph) Rows() []model.BasicScheduleRow {
	var rows []model.BasicScheduleRow

	for _, d := range anchorDefs {
		a := g.anchors[d.code]
		if a.Empty() {
			continue
		}
		end := a.Value
		if endCode, ok := vacationEnds[d.code]; ok {
			if e := g.value(endCode); !e.IsZero() && e.After(a.Value) {
				end = e
			}
		}
		rows = append(rows, model.BasicScheduleRow{
			AcademicYear: g.year,
			Type:         d.typ,
			Code:         string(d.code),
			Name:         d.name,
			StartDate:    a.Value,
			EndDate:      end,
		})
	}

	rows = append(rows, g.holidays.Rows(g.year)...)

	for _, v := range g.variable {
		rows = append(rows, model.BasicScheduleRow{
			AcademicYear: g.year,
			Type:         model.RowHoliday,
			Name:         v.Name,
			StartDate:    v.Start,
			EndDate:      v.End,
			IsHoliday:    true,
		})
	}

	for _, ev := range g.events {
		rows = append(rows, model.BasicScheduleRow{
			AcademicYear: g.year,
			Type:         ev.Type,
			Name:         ev.Name,
			StartDate:    ev.Start,
			EndDate:      ev.End,
		})
	}
	return rows
}
