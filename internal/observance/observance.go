// Package observance lists fixed memorial days that are shown on the
// calendar but are not holidays.
package observance

import (
	"fmt"
	"strings"
	"time"

	"schoolcal/internal/model"
)

// Observance is a fixed non-holiday memorial day.
type Observance struct {
	Month int    `yaml:"month" json:"month"`
	Day   int    `yaml:"day" json:"day"`
	Name  string `yaml:"name" json:"name"`
}

// Validate checks that o names a real month/day.
func (o Observance) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("observance name is required")
	}
	if o.Month < 1 || o.Month > 12 {
		return fmt.Errorf("observance %q: month %d out of range", o.Name, o.Month)
	}
	// 2월 29일은 윤년에만 존재하므로 2024년 기준으로 검사한다.
	last := time.Date(2024, time.Month(o.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if o.Day < 1 || o.Day > last {
		return fmt.Errorf("observance %q: day %d out of range", o.Name, o.Day)
	}
	return nil
}

// Defaults is the built-in catalogue of Korean memorial days.
func Defaults() []Observance {
	return []Observance{
		{Month: 2, Day: 14, Name: "발렌타인데이"},
		{Month: 3, Day: 22, Name: "세계 물의 날"},
		{Month: 4, Day: 5, Name: "식목일"},
		{Month: 4, Day: 19, Name: "4·19 혁명 기념일"},
		{Month: 4, Day: 20, Name: "장애인의 날"},
		{Month: 4, Day: 22, Name: "지구의 날"},
		{Month: 5, Day: 1, Name: "근로자의 날"},
		{Month: 5, Day: 8, Name: "어버이날"},
		{Month: 5, Day: 15, Name: "스승의 날"},
		{Month: 5, Day: 18, Name: "5·18 민주화운동 기념일"},
		{Month: 6, Day: 25, Name: "6·25 전쟁일"},
		{Month: 7, Day: 17, Name: "제헌절"},
		{Month: 10, Day: 1, Name: "국군의 날"},
		{Month: 11, Day: 3, Name: "학생독립운동 기념일"},
		{Month: 11, Day: 11, Name: "농업인의 날"},
	}
}

// Dated is an observance resolved to a calendar date.
type Dated struct {
	Date time.Time
	Name string
}

// Dates resolves list for the academic years year-1, year and year+1 so
// that a view straddling the year boundary still shows them. Months before
// March are placed in the following calendar year. Invalid dates such as
// 02-29 in a common year are skipped.
func Dates(year int, list []Observance) []Dated {
	var out []Dated
	for y := year - 1; y <= year+1; y++ {
		for _, o := range list {
			cy := model.YearForMonth(y, time.Month(o.Month))
			d := model.Civil(cy, time.Month(o.Month), o.Day)
			if d.Day() != o.Day {
				continue
			}
			out = append(out, Dated{Date: d, Name: o.Name})
		}
	}
	return out
}
