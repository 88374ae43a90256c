package utils

import "testing"

func TestIntInRange(t *testing.T) {
	cases := []struct {
		s           string
		def, lo, hi int
		want        int
	}{
		{"", 20, 1, 100, 20},
		{"42", 20, 1, 100, 42},
		{" 7 ", 20, 1, 100, 7},
		{"0", 20, 1, 100, 1},
		{"-13", 20, 1, 100, 1},
		{"9999", 20, 1, 100, 100},
		{"x", 20, 1, 100, 20},
		{"999999999999999999999999", 20, 1, 100, 20},
		{"5000", 1, 1, 0, 5000},
	}
	for _, tc := range cases {
		if got := IntInRange(tc.s, tc.def, tc.lo, tc.hi); got != tc.want {
			t.Fatalf("IntInRange(%q, %d, %d, %d) = %d; want %d", tc.s, tc.def, tc.lo, tc.hi, got, tc.want)
		}
	}
}

func TestParseID(t *testing.T) {
	cases := []struct {
		s      string
		want   int64
		wantOK bool
	}{
		{"1", 1, true},
		{" 77 ", 77, true},
		{"9223372036854775807", 9223372036854775807, true},
		{"0", 0, false},
		{"-4", 0, false},
		{"", 0, false},
		{"12abc", 0, false},
		{"9223372036854775808", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseID(tc.s)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("ParseID(%q) = %d, %v; want %d, %v", tc.s, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total    int64
		pageSize int
		want     int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{5, 0, 0},
	}
	for _, tc := range cases {
		if got := TotalPages(tc.total, tc.pageSize); got != tc.want {
			t.Fatalf("TotalPages(%d, %d) = %d; want %d", tc.total, tc.pageSize, got, tc.want)
		}
	}
}
