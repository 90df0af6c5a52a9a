package scheduling

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the length of a civil day in minutes.
const MinutesPerDay = 24 * 60

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
// Values at or beyond MinutesPerDay describe an end time on the following day.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute components.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// MustTimeOfDay is NewTimeOfDay for constants in tests and fixtures.
func MustTimeOfDay(hour, minute int) TimeOfDay {
	t, err := NewTimeOfDay(hour, minute)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS"; seconds are discarded.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
	}
	return NewTimeOfDay(hour, minute)
}

func (t TimeOfDay) Hour() int   { return (int(t) / 60) % 24 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Minutes returns the raw minute-of-day value.
func (t TimeOfDay) Minutes() int { return int(t) }

// IsValid reports whether t is a start time within a single day.
func (t TimeOfDay) IsValid() bool {
	return t >= 0 && t < MinutesPerDay
}

// SpansMidnight reports whether t lies on the following day.
func (t TimeOfDay) SpansMidnight() bool {
	return t >= MinutesPerDay
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Add returns t shifted by the given number of minutes.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

// DistanceTo is the absolute minute-of-day difference between two times.
func (t TimeOfDay) DistanceTo(other TimeOfDay) int {
	d := int(t) - int(other)
	if d < 0 {
		return -d
	}
	return d
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeWindow is a half-open [Start, End) range within one day.
type TimeWindow struct {
	Start TimeOfDay `json:"start" yaml:"start"`
	End   TimeOfDay `json:"end" yaml:"end"`
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t TimeOfDay) bool {
	return t >= w.Start && t < w.End
}

// Validate checks the window is well formed.
func (w TimeWindow) Validate() error {
	if !w.Start.IsValid() || w.End <= w.Start || w.End > MinutesPerDay {
		return fmt.Errorf("invalid time window %s-%s", w.Start, w.End)
	}
	return nil
}

// Overlaps reports whether two [start, end) ranges intersect.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}
