package schedule

import (
	"time"

	"schoolcal/internal/model"
)

// sourceHolidays is the pseudo source for fields that depend on the
// non-school-day predicate.
const sourceHolidays Code = "@holidays"

type rule struct {
	sources []Code
	derive  func(g *Graph) time.Time
}

// derivedOrder is a topological order of the derived fields.
var derivedOrder = []Code{
	Semester1Start,
	WinterVacationEnd,
	SummerCeremony,
	WinterCeremony,
	SpringCeremony,
	Semester2Start,
	SpringSemesterStart,
	SpringVacationEnd,
}

var rules = map[Code]rule{
	Semester1Start: {
		sources: []Code{sourceHolidays},
		derive:  firstSchoolDay,
	},
	WinterVacationEnd: {
		derive: func(g *Graph) time.Time {
			return model.LastDayOfFebruary(g.year + 1)
		},
	},
	SummerCeremony: {
		sources: []Code{SummerVacationStart},
		derive:  dayBefore(SummerVacationStart),
	},
	WinterCeremony: {
		sources: []Code{WinterVacationStart},
		derive:  dayBefore(WinterVacationStart),
	},
	SpringCeremony: {
		sources: []Code{SpringVacationStart},
		derive:  dayBefore(SpringVacationStart),
	},
	Semester2Start: {
		sources: []Code{SummerVacationEnd},
		derive:  dayAfter(SummerVacationEnd),
	},
	SpringSemesterStart: {
		sources: []Code{WinterVacationEnd},
		derive: func(g *Graph) time.Time {
			end := g.value(WinterVacationEnd)
			// 겨울방학이 2월 말일까지면 봄학기가 없다.
			if end.IsZero() || end.Equal(model.LastDayOfFebruary(g.year+1)) {
				return time.Time{}
			}
			return end.AddDate(0, 0, 1)
		},
	},
	SpringVacationEnd: {
		sources: []Code{SpringSemesterStart},
		derive: func(g *Graph) time.Time {
			start := g.value(SpringSemesterStart)
			if start.IsZero() {
				return time.Time{}
			}
			return model.LastDayOfFebruary(start.Year())
		},
	},
}

// dependents maps a source to the derived fields that read it.
var dependents = func() map[Code][]Code {
	out := make(map[Code][]Code)
	for _, d := range derivedOrder {
		for _, src := range rules[d].sources {
			out[src] = append(out[src], d)
		}
	}
	return out
}()

// firstSchoolDay is the first day on or after March 2 that is not a
// weekend, a computed holiday or a variable holiday.
func firstSchoolDay(g *Graph) time.Time {
	d := model.Civil(g.year, time.March, 2)
	for i := 0; i < model.MaxRangeDays && g.IsNonSchoolDay(d); i++ {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func dayBefore(src Code) func(g *Graph) time.Time {
	return func(g *Graph) time.Time {
		v := g.value(src)
		if v.IsZero() {
			return v
		}
		return v.AddDate(0, 0, -1)
	}
}

func dayAfter(src Code) func(g *Graph) time.Time {
	return func(g *Graph) time.Time {
		v := g.value(src)
		if v.IsZero() {
			return v
		}
		return v.AddDate(0, 0, 1)
	}
}
