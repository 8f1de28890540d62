package schedule

import (
	"time"

	"schoolcal/internal/model"
)

// Code identifies a system-anchored schedule field. It is stored as the
// basic_schedules row code.
type Code string

const (
	Semester1Start      Code = "semester1_start"
	SummerCeremony      Code = "summer_ceremony"
	SummerVacationStart Code = "summer_vacation_start"
	SummerVacationEnd   Code = "summer_vacation_end"
	Semester2Start      Code = "semester2_start"
	WinterCeremony      Code = "winter_ceremony"
	WinterVacationStart Code = "winter_vacation_start"
	WinterVacationEnd   Code = "winter_vacation_end"
	SpringSemesterStart Code = "spring_semester_start"
	SpringCeremony      Code = "spring_ceremony"
	SpringVacationStart Code = "spring_vacation_start"
	SpringVacationEnd   Code = "spring_vacation_end"
)

type anchorDef struct {
	code Code
	typ  model.RowType
	name string
}

// anchorDefs lists every anchor in calendar order. Rows() emits in this
// order.
var anchorDefs = []anchorDef{
	{Semester1Start, model.RowTerm, "1학기 개학"},
	{SummerCeremony, model.RowEvent, "여름방학식"},
	{SummerVacationStart, model.RowVacation, "여름방학"},
	{SummerVacationEnd, model.RowVacation, "여름방학 종료"},
	{Semester2Start, model.RowTerm, "2학기 개학"},
	{WinterCeremony, model.RowEvent, "겨울방학식"},
	{WinterVacationStart, model.RowVacation, "겨울방학"},
	{WinterVacationEnd, model.RowVacation, "겨울방학 종료"},
	{SpringSemesterStart, model.RowTerm, "봄학기 개학"},
	{SpringCeremony, model.RowEvent, "종업식"},
	{SpringVacationStart, model.RowVacation, "봄방학"},
	{SpringVacationEnd, model.RowVacation, "봄방학 종료"},
}

// vacationEnds pairs each vacation start with its end.
var vacationEnds = map[Code]Code{
	SummerVacationStart: SummerVacationEnd,
	WinterVacationStart: WinterVacationEnd,
	SpringVacationStart: SpringVacationEnd,
}

// Codes returns every anchor code in calendar order.
func Codes() []Code {
	out := make([]Code, len(anchorDefs))
	for i, d := range anchorDefs {
		out[i] = d.code
	}
	return out
}

// Known reports whether c is a declared anchor code.
func Known(c Code) bool {
	_, ok := defFor(c)
	return ok
}

// DisplayName returns the row name used for c.
func DisplayName(c Code) string {
	d, _ := defFor(c)
	return d.name
}

func defFor(c Code) (anchorDef, bool) {
	for _, d := range anchorDefs {
		if d.code == c {
			return d, true
		}
	}
	return anchorDef{}, false
}

// Anchor is one schedule date field. An empty Value means unset.
// IsManual, once true, survives every automatic cascade.
type Anchor struct {
	Code     Code
	Value    time.Time
	IsManual bool
}

// Empty reports whether the anchor has no value.
func (a Anchor) Empty() bool {
	return a.Value.IsZero()
}

// VariableHoliday is a manually entered school holiday (e.g. 개교기념일,
// 재량휴업일).
type VariableHoliday struct {
	ID    string
	Name  string
	Start time.Time
	End   time.Time
}

// Covers reports whether d falls inside the holiday.
func (v VariableHoliday) Covers(d time.Time) bool {
	return !d.Before(v.Start) && !d.After(v.End)
}

// Event is a freeform exam or event row of the basic schedule.
type Event struct {
	ID    string
	Type  model.RowType
	Name  string
	Start time.Time
	End   time.Time
}
