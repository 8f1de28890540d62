// Package lunar converts lunisolar month/day pairs to civil solar dates
// relative to an academic year.
package lunar

import (
	"fmt"
	"strconv"
	"time"

	"github.com/6tail/lunar-go/calendar"

	apperrors "schoolcal/internal/errors"
	"schoolcal/internal/model"
)

// Supported lunar-year window of the default converter.
const (
	MinYear = 1901
	MaxYear = 2099
)

// Converter maps a lunar date to its solar date.
type Converter interface {
	ToSolar(lunarYear, lunarMonth, lunarDay int) (time.Time, error)
}

// DefaultConverter is backed by the lunar-go tables, with each month's
// first day moved to the date of its new moon at UTC+9.
type DefaultConverter struct{}

// ToSolar implements Converter. Impossible dates (e.g. day 30 of a short
// month) are reported as errors whether the library panics or rolls over.
func (DefaultConverter) ToSolar(lunarYear, lunarMonth, lunarDay int) (t time.Time, err error) {
	if lunarYear < MinYear || lunarYear > MaxYear {
		return time.Time{}, fmt.Errorf("lunar year %d out of range", lunarYear)
	}
	if lunarMonth < 1 || lunarMonth > 12 || lunarDay < 1 || lunarDay > 30 {
		return time.Time{}, fmt.Errorf("invalid lunar date %d-%d", lunarMonth, lunarDay)
	}

	defer func() {
		if r := recover(); r != nil {
			t = time.Time{}
			err = fmt.Errorf("lunar lookup %d-%d-%d: %v", lunarYear, lunarMonth, lunarDay, r)
		}
	}()

	solar := calendar.NewLunarFromYmd(lunarYear, lunarMonth, lunarDay).GetSolar()

	// 존재하지 않는 음력 날짜는 라이브러리가 다음 달로 넘겨버리므로 역변환으로 확인한다.
	back := solar.GetLunar()
	if back.GetMonth() != lunarMonth || back.GetDay() != lunarDay {
		return time.Time{}, fmt.Errorf("lunar lookup %d-%d-%d: no such day", lunarYear, lunarMonth, lunarDay)
	}
	out := model.Civil(solar.GetYear(), time.Month(solar.GetMonth()), solar.GetDay())

	// 한국 표준시(UTC+9) 기준 합삭일로 월 시작을 다시 잡는다.
	chineseStart := out.AddDate(0, 0, 1-lunarDay)
	if start, ok := koreanMonthStart(chineseStart); ok {
		out = start.AddDate(0, 0, lunarDay-1)
	}
	return out, nil
}

// LunarYearFor returns the lunar year a month belongs to within academic
// year baseYear. Months 1 and 2 fall in the following calendar year.
func LunarYearFor(baseYear, lunarMonth int) int {
	if lunarMonth <= 2 {
		return baseYear + 1
	}
	return baseYear
}

// SolarDateForLunar converts lunarMonth/lunarDay of academic year baseYear.
// Any failure is returned as a CONVERSION_FAILED error; callers omit the
// holiday for that year.
func SolarDateForLunar(conv Converter, baseYear, lunarMonth, lunarDay int) (time.Time, error) {
	if conv == nil {
		conv = DefaultConverter{}
	}
	ly := LunarYearFor(baseYear, lunarMonth)
	t, err := conv.ToSolar(ly, lunarMonth, lunarDay)
	if err != nil {
		return time.Time{}, apperrors.WrapWithMetadata(apperrors.CodeConversion, "lunar conversion failed", map[string]string{
			"lunar_year":  strconv.Itoa(ly),
			"lunar_month": strconv.Itoa(lunarMonth),
			"lunar_day":   strconv.Itoa(lunarDay),
		}, err)
	}
	return model.Truncate(t), nil
}
