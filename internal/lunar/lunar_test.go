package lunar

import (
	"errors"
	"testing"
	"time"

	apperrors "schoolcal/internal/errors"
	"schoolcal/internal/model"
)

type recordingConverter struct {
	gotYear int
	out     time.Time
	err     error
}

func (c *recordingConverter) ToSolar(y, m, d int) (time.Time, error) {
	c.gotYear = y
	return c.out, c.err
}

func TestLunarYearFor(t *testing.T) {
	tests := []struct {
		month int
		want  int
	}{
		{1, 2026},
		{2, 2026},
		{4, 2025},
		{8, 2025},
		{12, 2025},
	}
	for _, tc := range tests {
		if got := LunarYearFor(2025, tc.month); got != tc.want {
			t.Fatalf("LunarYearFor(2025, %d) = %d, want %d", tc.month, got, tc.want)
		}
	}
}

func TestSolarDateForLunarUsesShiftedYear(t *testing.T) {
	conv := &recordingConverter{out: model.Civil(2026, time.February, 17)}

	got, err := SolarDateForLunar(conv, 2025, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.gotYear != 2026 {
		t.Fatalf("converter called with year %d, want 2026", conv.gotYear)
	}
	if model.Key(got) != "2026-02-17" {
		t.Fatalf("got %s", model.Key(got))
	}
}

func TestSolarDateForLunarWrapsFailure(t *testing.T) {
	conv := &recordingConverter{err: errors.New("table miss")}

	_, err := SolarDateForLunar(conv, 2025, 8, 15)
	if !errors.Is(err, apperrors.ErrConversion) {
		t.Fatalf("expected conversion error, got %v", err)
	}
}

func TestDefaultConverterRejectsOutOfRange(t *testing.T) {
	if _, err := (DefaultConverter{}).ToSolar(1800, 1, 1); err == nil {
		t.Fatal("expected error for year 1800")
	}
	if _, err := (DefaultConverter{}).ToSolar(2025, 13, 1); err == nil {
		t.Fatal("expected error for month 13")
	}
}

func TestDefaultConverterKnownDates(t *testing.T) {
	tests := []struct {
		name             string
		year, month, day int
		want             string
	}{
		{"seollal 2026", 2026, 1, 1, "2026-02-17"},
		{"buddha 2025", 2025, 4, 8, "2025-05-05"},
		{"chuseok 2025", 2025, 8, 15, "2025-10-06"},
		{"chuseok 2024", 2024, 8, 15, "2024-09-17"},
		// 중국 음력(UTC+8)과 하루 차이 나는 해
		{"seollal 2027", 2027, 1, 1, "2027-02-07"},
		{"seollal 2028", 2028, 1, 1, "2028-01-27"},
		{"seollal 1997", 1997, 1, 1, "1997-02-08"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DefaultConverter{}.ToSolar(tc.year, tc.month, tc.day)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if model.Key(got) != tc.want {
				t.Fatalf("got %s, want %s", model.Key(got), tc.want)
			}
		})
	}
}

func TestKoreanMonthStart(t *testing.T) {
	tests := []struct {
		chinese string
		want    string
	}{
		{"2027-02-06", "2027-02-07"},
		{"2026-02-17", "2026-02-17"},
		{"2025-09-22", "2025-09-22"},
	}
	for _, tc := range tests {
		got, ok := koreanMonthStart(model.MustDate(tc.chinese))
		if !ok {
			t.Fatalf("%s: no new moon found", tc.chinese)
		}
		if model.Key(got) != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.chinese, model.Key(got), tc.want)
		}
	}
	if _, ok := koreanMonthStart(model.MustDate("2027-02-20")); ok {
		t.Fatal("a mid-month date must not match a new moon")
	}
}
