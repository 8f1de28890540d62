package model

import (
	"testing"
	"time"
)

func TestParseRowType(t *testing.T) {
	for _, want := range []RowType{RowTerm, RowVacation, RowHoliday, RowExam, RowEvent} {
		got, err := ParseRowType(" " + want.String() + " ")
		if err != nil {
			t.Fatalf("ParseRowType(%q): %v", want.String(), err)
		}
		if got != want {
			t.Fatalf("ParseRowType(%q) = %v, want %v", want.String(), got, want)
		}
	}
	if _, err := ParseRowType("meeting"); err == nil {
		t.Fatal("expected error for unknown type")
	}
	if RowType(42).Valid() {
		t.Fatal("RowType(42) must not be valid")
	}
}

func TestLastDayOfFebruary(t *testing.T) {
	tests := []struct {
		year int
		want string
	}{
		{2026, "2026-02-28"},
		{2028, "2028-02-29"},
		{2100, "2100-02-28"},
	}
	for _, tc := range tests {
		if got := Key(LastDayOfFebruary(tc.year)); got != tc.want {
			t.Fatalf("LastDayOfFebruary(%d) = %s, want %s", tc.year, got, tc.want)
		}
	}
}

func TestAcademicYearBoundary(t *testing.T) {
	if got := YearForMonth(2025, time.January); got != 2026 {
		t.Fatalf("January -> %d, want 2026", got)
	}
	if got := YearForMonth(2025, time.March); got != 2025 {
		t.Fatalf("March -> %d, want 2025", got)
	}
	if got := AcademicYearOf(MustDate("2026-02-28")); got != 2025 {
		t.Fatalf("AcademicYearOf(2026-02-28) = %d", got)
	}
	start, end := AcademicRange(2025)
	if Key(start) != "2025-03-01" || Key(end) != "2026-02-28" {
		t.Fatalf("AcademicRange(2025) = %s..%s", Key(start), Key(end))
	}
}

func TestParseDateToleratesTimestamp(t *testing.T) {
	for _, in := range []string{"2025-03-02", "2025-03-02T00:00:00Z", "2025-03-02 09:30:00"} {
		got, err := ParseDate(in)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", in, err)
		}
		if Key(got) != "2025-03-02" {
			t.Fatalf("ParseDate(%q) = %s", in, Key(got))
		}
	}
	if _, err := ParseDate("2025/03/02"); err == nil {
		t.Fatal("expected error for slash format")
	}
}

func TestEachDayCapsAndClamps(t *testing.T) {
	var n int
	EachDay(MustDate("2025-01-01"), MustDate("2027-01-01"), func(time.Time) { n++ })
	if n != MaxRangeDays {
		t.Fatalf("expanded %d days, want %d", n, MaxRangeDays)
	}

	var days []string
	EachDay(MustDate("2025-05-05"), MustDate("2025-05-01"), func(d time.Time) { days = append(days, Key(d)) })
	if len(days) != 1 || days[0] != "2025-05-05" {
		t.Fatalf("inverted range expanded to %v", days)
	}
}

func TestSpecialDepartments(t *testing.T) {
	depts := SpecialDepartments(2025)
	if len(depts) != 4 {
		t.Fatalf("len = %d, want 4", len(depts))
	}
	for _, d := range depts {
		if !IsSpecialDepartment(d.ID) || d.Kind != DeptSpecial || d.IsActive {
			t.Fatalf("unexpected special department %+v", d)
		}
	}
	if IsSpecialDepartment("dept-1") {
		t.Fatal("general id reported as special")
	}
}
