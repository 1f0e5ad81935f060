package units

import "testing"

func TestRound(t *testing.T) {
	cases := []struct {
		in     float64
		places int32
		want   float64
	}{
		{12.345, 2, 12.35},
		{12.344, 2, 12.34},
		{80, 1, 80},
		{66.666666, 1, 66.7},
		{0.5, 0, 1},
		{-0.5, 0, -1},
	}
	for _, c := range cases {
		if got := Round(c.in, c.places); got != c.want {
			t.Errorf("Round(%v, %d) = %v, want %v", c.in, c.places, got, c.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(8, 10, 1); got != 80 {
		t.Errorf("expected 80, got %v", got)
	}
	if got := Percent(1, 3, 2); got != 33.33 {
		t.Errorf("expected 33.33, got %v", got)
	}
	if got := Percent(5, 0, 2); got != 0 {
		t.Errorf("zero denominator should yield 0, got %v", got)
	}
}

func TestFormatUptime(t *testing.T) {
	cases := map[int64]string{
		45:     "45s",
		90:     "2m",
		5400:   "1.5h",
		7200:   "2h",
		129600: "1.5d",
	}
	for in, want := range cases {
		if got := FormatUptime(in); got != want {
			t.Errorf("FormatUptime(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatCount(t *testing.T) {
	if got := FormatCount(1234567); got != "1,234,567" {
		t.Errorf("expected 1,234,567, got %q", got)
	}
}
