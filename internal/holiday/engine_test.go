package holiday

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"schoolcal/internal/model"
)

// tableConverter resolves lunar dates from a fixed table; misses fail.
type tableConverter map[[3]int]string

func (c tableConverter) ToSolar(y, m, d int) (time.Time, error) {
	s, ok := c[[3]int{y, m, d}]
	if !ok {
		return time.Time{}, errors.New("not in table")
	}
	return model.MustDate(s), nil
}

// knownLunar holds published dates for academic years 2024 and 2025.
var knownLunar = tableConverter{
	{2024, 4, 8}:  "2024-05-15",
	{2025, 1, 1}:  "2025-01-29",
	{2024, 8, 15}: "2024-09-17",
	{2025, 4, 8}:  "2025-05-05",
	{2026, 1, 1}:  "2026-02-17",
	{2025, 8, 15}: "2025-10-06",
}

func TestComputeAcademicYear2025(t *testing.T) {
	m := NewEngine(knownLunar).Compute(2025)

	want := map[string][]string{
		"2025-03-01": {"삼일절"},
		"2025-03-03": {"대체공휴일(삼일절)"},
		"2025-05-05": {"어린이날", "부처님 오신 날"},
		"2025-06-06": {"현충일"},
		"2025-08-15": {"광복절"},
		"2025-10-03": {"개천절"},
		"2025-10-05": {"추석 연휴"},
		"2025-10-06": {"추석"},
		"2025-10-07": {"추석 연휴"},
		"2025-10-08": {"대체공휴일(추석 연휴)"},
		"2025-10-09": {"한글날"},
		"2025-12-25": {"성탄절"},
		"2026-01-01": {"신정"},
		"2026-02-16": {"설날 연휴"},
		"2026-02-17": {"설날"},
		"2026-02-18": {"설날 연휴"},
	}
	if !reflect.DeepEqual(map[string][]string(m), want) {
		t.Fatalf("Compute(2025) =\n%v\nwant\n%v", m, want)
	}
	if got := m.Joined(model.MustDate("2025-05-05")); got != "어린이날, 부처님 오신 날" {
		t.Fatalf("Joined = %q", got)
	}
}

func TestComputeFixedYearShift(t *testing.T) {
	m := NewEngine(knownLunar).Compute(2025)

	if !m.Has(model.MustDate("2026-01-01")) {
		t.Fatal("New Year's Day must map to 2026-01-01 for academic year 2025")
	}
	if m.Has(model.MustDate("2025-01-01")) {
		t.Fatal("2025-01-01 belongs to academic year 2024")
	}
	if !m.Has(model.MustDate("2025-03-01")) {
		t.Fatal("삼일절 must map to 2025-03-01 for academic year 2025")
	}
}

func TestComputeChildrensDayOnSunday(t *testing.T) {
	m := NewEngine(knownLunar).Compute(2024)

	if got := m.Names(model.MustDate("2024-05-06")); !reflect.DeepEqual(got, []string{"대체공휴일(어린이날)"}) {
		t.Fatalf("2024-05-06 = %v", got)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	e := NewEngine(knownLunar)
	first := e.Compute(2025)
	for i := 0; i < 5; i++ {
		if got := e.Compute(2025); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs", i)
		}
	}
}

func TestComputeConversionFailureSkipsOnlyThatHoliday(t *testing.T) {
	conv := tableConverter{
		{2025, 4, 8}: "2025-05-05",
		{2026, 1, 1}: "2026-02-17",
	}
	m := NewEngine(conv).Compute(2025)

	for _, d := range []string{"2025-10-05", "2025-10-06", "2025-10-07", "2025-10-08"} {
		if _, ok := m[d]; ok {
			t.Fatalf("%s present although 추석 conversion failed", d)
		}
	}
	if !m.Has(model.MustDate("2026-02-17")) || !m.Has(model.MustDate("2025-05-05")) {
		t.Fatal("other lunar holidays must survive a single failure")
	}
	if len(m.Names(model.MustDate("2025-05-05"))) != 2 {
		t.Fatal("fixed holidays must survive a lunar failure")
	}
}

func TestSubstitutesNeverShareADate(t *testing.T) {
	// 삼일절 on Saturday 2025-03-01 claims Monday 03-03, so a Sunday
	// holiday on 03-02 must move on to Tuesday 03-04.
	conv := tableConverter{{2025, 4, 8}: "2025-03-02"}
	m := NewEngine(conv).Compute(2025)

	if got := m.Names(model.MustDate("2025-03-03")); !reflect.DeepEqual(got, []string{"대체공휴일(삼일절)"}) {
		t.Fatalf("2025-03-03 = %v", got)
	}
	if got := m.Names(model.MustDate("2025-03-04")); !reflect.DeepEqual(got, []string{"대체공휴일(부처님 오신 날)"}) {
		t.Fatalf("2025-03-04 = %v", got)
	}
}

func TestSundayClassIgnoresSaturday(t *testing.T) {
	// 추석 on Sunday 2025-10-05: the Saturday eve earns nothing, the Sunday
	// main day moves past the Monday day-after to Tuesday.
	conv := tableConverter{{2025, 8, 15}: "2025-10-05"}
	m := NewEngine(conv).Compute(2025)

	if got := m.Names(model.MustDate("2025-10-07")); !reflect.DeepEqual(got, []string{"대체공휴일(추석)"}) {
		t.Fatalf("2025-10-07 = %v", got)
	}
	for _, k := range m.Dates() {
		for _, n := range m[k] {
			if n == SubstituteName("추석"+SpanSuffix) {
				t.Fatalf("unexpected substitute for Saturday eve on %s", k)
			}
		}
	}
}

func TestSubstituteInvariant(t *testing.T) {
	for year := 2024; year <= 2025; year++ {
		e := NewEngine(knownLunar)
		base := make(Map)
		withSubs := e.Compute(year)
		for k, names := range withSubs {
			for _, n := range names {
				if !strings.HasPrefix(n, SubstitutePrefix) {
					base[k] = append(base[k], n)
				}
			}
		}
		for k, names := range withSubs {
			for _, n := range names {
				if !strings.HasPrefix(n, SubstitutePrefix) {
					continue
				}
				d := model.MustDate(k)
				if model.IsWeekend(d) {
					t.Fatalf("substitute %q on weekend %s", n, k)
				}
				if len(base[k]) > 0 {
					t.Fatalf("substitute %q on occupied date %s", n, k)
				}
				if len(names) != 1 {
					t.Fatalf("date %s carries more than one name with a substitute: %v", k, names)
				}
			}
		}
	}
}

func TestSubstituteClassTriggers(t *testing.T) {
	sat := model.MustDate("2025-03-01")
	sun := model.MustDate("2025-03-02")
	mon := model.MustDate("2025-03-03")
	tests := []struct {
		class         SubstituteClass
		sat, sun, mon bool
	}{
		{ClassNone, false, false, false},
		{ClassWeekend, true, true, false},
		{ClassSunday, false, true, false},
		{ClassAll, true, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.class.String(), func(t *testing.T) {
			if tc.class.Triggers(sat) != tc.sat || tc.class.Triggers(sun) != tc.sun || tc.class.Triggers(mon) != tc.mon {
				t.Fatalf("unexpected trigger set for %s", tc.class)
			}
		})
	}
}

func TestRowsOnePerName(t *testing.T) {
	m := make(Map)
	m.Add(model.MustDate("2025-05-05"), "어린이날")
	m.Add(model.MustDate("2025-05-05"), "부처님 오신 날")
	m.Add(model.MustDate("2025-05-05"), "어린이날")

	rows := m.Rows(2025)
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	for _, r := range rows {
		if r.Type != model.RowHoliday || !r.IsHoliday || r.Code != "" || r.AcademicYear != 2025 {
			t.Fatalf("unexpected row %+v", r)
		}
	}
	if rows[0].Name != "어린이날" || rows[1].Name != "부처님 오신 날" {
		t.Fatalf("row order = %q, %q", rows[0].Name, rows[1].Name)
	}
}

func TestComputeWithLibraryConverter(t *testing.T) {
	m := NewEngine(nil).Compute(2025)

	if got := m.Names(model.MustDate("2025-10-08")); !reflect.DeepEqual(got, []string{"대체공휴일(추석 연휴)"}) {
		t.Fatalf("2025-10-08 = %v", got)
	}
	if !NewEngine(nil).IsHoliday(model.MustDate("2026-02-17")) {
		t.Fatal("설날 2026 must be a holiday")
	}
}

func TestComputeSeollal2027OnKoreanMeridian(t *testing.T) {
	m := NewEngine(nil).Compute(2026)

	want := map[string][]string{
		"2027-02-05": nil,
		"2027-02-06": {"설날 연휴"},
		"2027-02-07": {"설날"},
		"2027-02-08": {"설날 연휴"},
		"2027-02-09": {"대체공휴일(설날)"},
	}
	for day, names := range want {
		if got := m.Names(model.MustDate(day)); !reflect.DeepEqual(got, names) {
			t.Fatalf("%s = %v, want %v", day, got, names)
		}
	}
}
