package scheduling

import (
	"testing"
	"time"
)

func TestParseDate_KeepsCalendarDay(t *testing.T) {
	inputs := []string{"2025-06-09", "2025-06-09T00:00:00Z", "2025-06-09T00:00:00.000-07:00", "2025-06-09 23:59:59"}
	for _, in := range inputs {
		d, err := ParseDate(in)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", in, err)
		}
		if d.Weekday() != Monday {
			t.Errorf("ParseDate(%q).Weekday() = %v, want Monday", in, d.Weekday())
		}
		if d.String() != "2025-06-09" {
			t.Errorf("ParseDate(%q) = %s", in, d)
		}
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "06/09/2025", "2025-13-01", "yesterday"} {
		if _, err := ParseDate(in); err == nil {
			t.Errorf("ParseDate(%q) expected error", in)
		}
	}
}

func TestDateOf_UsesLocation(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 02:00 UTC Monday is still Sunday evening in Los Angeles.
	instant := time.Date(2025, 6, 9, 2, 0, 0, 0, time.UTC)
	if got := DateOf(instant, la); got.String() != "2025-06-08" || got.Weekday() != Sunday {
		t.Errorf("DateOf in LA = %s (%v)", got, got.Weekday())
	}
	if got := DateOf(instant, time.UTC); got.String() != "2025-06-09" {
		t.Errorf("DateOf in UTC = %s", got)
	}
}

func TestDateArithmetic(t *testing.T) {
	d := MustParseDate("2025-06-29")
	if got := d.AddDays(3).String(); got != "2025-07-02" {
		t.Errorf("AddDays = %s", got)
	}
	if got := d.Monday().String(); got != "2025-06-23" {
		t.Errorf("Monday of Sunday = %s", got)
	}
	if got := MustParseDate("2025-06-23").Monday().String(); got != "2025-06-23" {
		t.Errorf("Monday of Monday = %s", got)
	}
	if n := MustParseDate("2025-06-23").DaysUntil(d); n != 6 {
		t.Errorf("DaysUntil = %d", n)
	}
	if !MustParseDate("2025-06-25").Between(MustParseDate("2025-06-23"), d) {
		t.Error("expected date within range")
	}
}

func TestDateSet_Sorted(t *testing.T) {
	s := DateSet{}
	s.Add(MustParseDate("2025-06-11"))
	s.Add(MustParseDate("2025-06-09"))
	s.Add(MustParseDate("2025-06-11"))
	sorted := s.Sorted()
	if len(sorted) != 2 || sorted[0].String() != "2025-06-09" {
		t.Errorf("unexpected order: %v", sorted)
	}
}
