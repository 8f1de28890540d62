package model

import (
	"fmt"
	"strings"
	"time"
)

// RowType is the closed set of basic-schedule row kinds.
type RowType int

const (
	RowTerm RowType = iota + 1
	RowVacation
	RowHoliday
	RowExam
	RowEvent
)

var rowTypeNames = map[RowType]string{
	RowTerm:     "term",
	RowVacation: "vacation",
	RowHoliday:  "holiday",
	RowExam:     "exam",
	RowEvent:    "event",
}

func (t RowType) String() string {
	if s, ok := rowTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("RowType(%d)", int(t))
}

// Valid reports whether t is one of the declared row types.
func (t RowType) Valid() bool {
	_, ok := rowTypeNames[t]
	return ok
}

// ParseRowType maps a stored type string to a RowType.
func ParseRowType(s string) (RowType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range rowTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown row type %q", s)
}

// BasicScheduleRow is one row of the school-defined basic schedule.
// Code is non-empty only for system-anchored rows.
type BasicScheduleRow struct {
	AcademicYear int
	Type         RowType
	Code         string
	Name         string
	StartDate    time.Time
	EndDate      time.Time
	IsHoliday    bool
}

// DeptKind distinguishes dynamic departments from the fixed identities.
type DeptKind string

const (
	DeptGeneral DeptKind = "general"
	DeptSpecial DeptKind = "special"
)

// Special department ids. These always exist for every year.
const (
	DeptAdminOffice     = "special:admin"
	DeptAdvancedTeacher = "special:advanced_teacher"
	DeptVicePrincipal   = "special:vice_principal"
	DeptPrincipal       = "special:principal"

	// DeptOther is the synthetic bucket for unknown department ids.
	DeptOther = "other"
)

// Department is a schedule-owning unit of the school.
type Department struct {
	ID           string
	Name         string
	Short        string
	Color        string
	SortOrder    int
	IsActive     bool
	AcademicYear int
	Kind         DeptKind
}

// SpecialDepartments returns the predefined identities for year. They are
// inactive until an administrator enables them.
func SpecialDepartments(year int) []Department {
	return []Department{
		{ID: DeptAdminOffice, Name: "행정실", Short: "행정", Color: "#6b7280", SortOrder: 1000, AcademicYear: year, Kind: DeptSpecial},
		{ID: DeptAdvancedTeacher, Name: "수석교사", Short: "수석", Color: "#0d9488", SortOrder: 1001, AcademicYear: year, Kind: DeptSpecial},
		{ID: DeptVicePrincipal, Name: "교감", Short: "교감", Color: "#7c3aed", SortOrder: 1002, AcademicYear: year, Kind: DeptSpecial},
		{ID: DeptPrincipal, Name: "교장", Short: "교장", Color: "#b91c1c", SortOrder: 1003, AcademicYear: year, Kind: DeptSpecial},
	}
}

// IsSpecialDepartment reports whether id is one of the fixed identities.
func IsSpecialDepartment(id string) bool {
	switch id {
	case DeptAdminOffice, DeptAdvancedTeacher, DeptVicePrincipal, DeptPrincipal:
		return true
	}
	return false
}

// Event sources for department events.
const (
	SourceManual = "manual"
	SourceImport = "import"
	// SourceFeedPrefix is followed by the feed id.
	SourceFeedPrefix = "feed:"
)

// DepartmentEvent is a department-owned schedule entry (a schedules row).
type DepartmentEvent struct {
	ID          string
	Title       string
	StartDate   time.Time
	EndDate     time.Time
	DeptID      string
	Visibility  string
	Description string
	IsPrintable bool
	Source      string
}

// DisplayKind classifies a DisplayEvent for rendering.
type DisplayKind string

const (
	KindBackgroundHoliday DisplayKind = "background-holiday"
	KindHeaderLabel       DisplayKind = "header-label"
	KindSchedule          DisplayKind = "schedule"
)

// DisplayEvent is an output-only renderable entry covering one day.
type DisplayEvent struct {
	Start  time.Time
	End    time.Time
	Kind   DisplayKind
	Label  string
	DeptID string
	Color  string
	Red    bool
}

// Settings holds per-year school settings. Only AcademicYear is used by the
// engine.
type Settings struct {
	AcademicYear int
	SchoolName   string
	SchoolCode   string
	Region       string
}
