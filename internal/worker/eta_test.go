package worker

import "testing"

func TestParseETASeconds(t *testing.T) {
	cases := []struct {
		line string
		want int64
		ok   bool
	}{
		{"Encoding: task 1 of 1, 42.00 % (ETA 01h23m45s)", 1*3600 + 23*60 + 45, true},
		{"Encoding: task 1 of 1, 99.00 % (ETA 23m45s)", 23*60 + 45, true},
		{"Encoding: task 1 of 1, 99.90 % (ETA 45s)", 45, true},
		{"no eta token here", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseETASeconds(c.line)
		if ok != c.ok || got != c.want {
			t.Errorf("ParseETASeconds(%q) = (%d, %v), want (%d, %v)", c.line, got, ok, c.want, c.ok)
		}
	}
}

func TestParseProgressPct(t *testing.T) {
	cases := []struct {
		line string
		want float64
		ok   bool
	}{
		{"Encoding 42.50 % (ETA 01h23m45s)", 42.50, true},
		{"Encoding 7%", 7, true},
		{"irrelevant stdout noise", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseProgressPct(c.line)
		if ok != c.ok || got != c.want {
			t.Errorf("ParseProgressPct(%q) = (%v, %v), want (%v, %v)", c.line, got, ok, c.want, c.ok)
		}
	}
}
