package holiday

import "time"

// SubstituteClass selects which weekend collisions grant a substitute day.
type SubstituteClass int

const (
	// ClassNone never grants a substitute.
	ClassNone SubstituteClass = iota
	// ClassWeekend triggers on Saturday or Sunday.
	ClassWeekend
	// ClassSunday triggers only on Sunday.
	ClassSunday
	// ClassAll triggers on Saturday or Sunday. Overlap with another holiday
	// is not a trigger.
	ClassAll
)

// Triggers reports whether a holiday of class c on day d earns a substitute.
func (c SubstituteClass) Triggers(d time.Time) bool {
	wd := d.Weekday()
	switch c {
	case ClassWeekend, ClassAll:
		return wd == time.Saturday || wd == time.Sunday
	case ClassSunday:
		return wd == time.Sunday
	case ClassNone:
		return false
	}
	return false
}

func (c SubstituteClass) String() string {
	switch c {
	case ClassWeekend:
		return "weekend"
	case ClassSunday:
		return "sunday"
	case ClassAll:
		return "all"
	default:
		return "none"
	}
}

// FixedRule is a solar holiday on the same month/day every year.
type FixedRule struct {
	Month time.Month
	Day   int
	Name  string
	Class SubstituteClass
}

// LunarRule is a lunisolar holiday. Span rules cover the eve, the main day
// and the day after; the eve and the day after carry SpanSuffix.
type LunarRule struct {
	Month int
	Day   int
	Name  string
	Class SubstituteClass
	Span  bool
}

const (
	// SpanSuffix names the eve and day-after of a three-day lunar holiday.
	SpanSuffix = " 연휴"
	// SubstitutePrefix prefixes the name of a substitute holiday.
	SubstitutePrefix = "대체공휴일"
)

// SubstituteName returns the display name of a substitute for name.
func SubstituteName(name string) string {
	return SubstitutePrefix + "(" + name + ")"
}

// FixedHolidays are the statutory solar holidays in processing order.
var FixedHolidays = []FixedRule{
	{Month: time.January, Day: 1, Name: "신정", Class: ClassNone},
	{Month: time.March, Day: 1, Name: "삼일절", Class: ClassWeekend},
	{Month: time.May, Day: 5, Name: "어린이날", Class: ClassAll},
	{Month: time.June, Day: 6, Name: "현충일", Class: ClassNone},
	{Month: time.August, Day: 15, Name: "광복절", Class: ClassWeekend},
	{Month: time.October, Day: 3, Name: "개천절", Class: ClassWeekend},
	{Month: time.October, Day: 9, Name: "한글날", Class: ClassWeekend},
	{Month: time.December, Day: 25, Name: "성탄절", Class: ClassWeekend},
}

// LunarHolidays are the lunisolar holidays in processing order.
var LunarHolidays = []LunarRule{
	{Month: 4, Day: 8, Name: "부처님 오신 날", Class: ClassWeekend},
	{Month: 1, Day: 1, Name: "설날", Class: ClassSunday, Span: true},
	{Month: 8, Day: 15, Name: "추석", Class: ClassSunday, Span: true},
}
