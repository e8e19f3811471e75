package timestamp

import (
	"testing"
	"time"
)

var refNow = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

func TestParseExpression_Keywords(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"now", refNow},
		{"today", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"Yesterday", time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)},
		{"tomorrow", time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseExpression(tt.input, refNow, time.UTC)
			if err != nil {
				t.Fatalf("ParseExpression(%q): %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseExpression(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseExpression_Relative(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"3 days ago", refNow.AddDate(0, 0, -3)},
		{"1 hour ago", refNow.Add(-time.Hour)},
		{"-2 hours", refNow.Add(-2 * time.Hour)},
		{"+1 week", refNow.AddDate(0, 0, 7)},
		{"30 min ago", refNow.Add(-30 * time.Minute)},
		{"2 months ago", refNow.AddDate(0, -2, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseExpression(tt.input, refNow, time.UTC)
			if err != nil {
				t.Fatalf("ParseExpression(%q): %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseExpression(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseExpression_AbsoluteInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)

	got, err := ParseExpression("2024-01-02 10:00:00", refNow, loc)
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	want := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got.UTC(), want)
	}

	got, err = ParseExpression("2024-01-02", refNow, loc)
	if err != nil {
		t.Fatalf("ParseExpression date: %v", err)
	}
	if got.Hour() != 0 || got.Day() != 2 {
		t.Errorf("date-only = %v, want midnight of the 2nd", got)
	}
}

func TestParseExpression_Unix(t *testing.T) {
	got, err := ParseExpression("@1700000000", refNow, time.UTC)
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	if got.Unix() != 1700000000 {
		t.Errorf("Unix() = %d", got.Unix())
	}
}

func TestParseExpression_Invalid(t *testing.T) {
	for _, input := range []string{"", "not a date", "@abc"} {
		if _, err := ParseExpression(input, refNow, time.UTC); err == nil {
			t.Errorf("ParseExpression(%q) expected error", input)
		}
	}
}

func TestDaysAgo(t *testing.T) {
	got := DaysAgo(refNow, 90, time.UTC)
	want := time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DaysAgo(90) = %v, want %v", got, want)
	}
}

func TestLoadLocationFallback(t *testing.T) {
	if LoadLocation("") != time.UTC {
		t.Error("empty name should fall back to UTC")
	}
	if LoadLocation("Not/AZone") != time.UTC {
		t.Error("unknown name should fall back to UTC")
	}
}

func TestIsDateOnly(t *testing.T) {
	if !IsDateOnly("2024-01-02") {
		t.Error("2024-01-02 should be date-only")
	}
	for _, input := range []string{"2024-01-02 10:00:00", "today", "3 days ago"} {
		if IsDateOnly(input) {
			t.Errorf("IsDateOnly(%q) = true", input)
		}
	}
}
