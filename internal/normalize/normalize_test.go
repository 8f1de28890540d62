package normalize

import "testing"

func TestTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PTA meeting", "ptameeting"},
		{"  PTA   Meeting!", "ptameeting"},
		{"ＰＴＡ　ｍｅｅｔｉｎｇ", "ptameeting"},
		{"학부모 총회", "학부모총회"},
		{"[학부모] 총회 (1차)", "학부모총회1차"},
		{"중간고사 ★", "중간고사"},
		{"", ""},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := Title(tc.in); got != tc.want {
				t.Fatalf("Title(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	if !Equal("PTA meeting", "pta-meeting") {
		t.Fatal("expected titles to match")
	}
	if Equal("!!", "??") {
		t.Fatal("empty keys must not match")
	}
	if Equal("1학기 중간고사", "2학기 중간고사") {
		t.Fatal("different titles matched")
	}
}
