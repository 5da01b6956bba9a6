package datemath

import (
	"testing"
	"time"
)

// Fixed reference time so every case is deterministic.
var ref = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

func TestResolve(t *testing.T) {
	cases := []struct {
		expr string
		want time.Time
	}{
		{"today", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"TODAY", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"yesterday", time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)},
		{"1 day ago", time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)},
		{"3 days ago", time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)},
		{"2 weeks ago", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"1 month ago", time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-01-31", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"  7 days ago  ", time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := Resolve(tc.expr, ref)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tc.expr, err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("Resolve(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestResolve_RFC3339(t *testing.T) {
	got, err := Resolve("2024-02-10T18:45:00Z", ref)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResolve_Invalid(t *testing.T) {
	for _, expr := range []string{"", "fortnight ago", "ago", "12 parsecs ago", "next tuesday"} {
		if _, err := Resolve(expr, ref); err == nil {
			t.Errorf("Resolve(%q): expected error", expr)
		}
	}
}

func TestEndOfDay(t *testing.T) {
	got := EndOfDay(ref)
	want := time.Date(2024, 6, 15, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	if !got.Equal(want) {
		t.Errorf("EndOfDay = %v, want %v", got, want)
	}
	if !got.Before(ref.AddDate(0, 0, 1)) {
		t.Error("EndOfDay must stay within the same day")
	}
}
