package scheduling

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday is the single weekday representation used by the engine.
// Values match time.Weekday (Sunday = 0).
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var weekdayNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// AllWeekdays returns the weekdays in Monday-first order.
func AllWeekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// IsValid returns true if the weekday is in range.
func (d Weekday) IsValid() bool {
	return d >= Sunday && d <= Saturday
}

// String returns the capitalized English name.
func (d Weekday) String() string {
	if !d.IsValid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	name := weekdayNames[d]
	return strings.ToUpper(name[:1]) + name[1:]
}

// Short returns the three letter abbreviation, e.g. "Mon".
func (d Weekday) Short() string {
	return d.String()[:3]
}

// Time converts to the standard library representation.
func (d Weekday) Time() time.Weekday {
	return time.Weekday(d)
}

// FromTimeWeekday converts a time.Weekday.
func FromTimeWeekday(w time.Weekday) Weekday {
	return Weekday(w)
}

// ParseWeekday normalizes the heterogeneous day representations found in
// stored task data: English names ("Monday", "mon", "TUE"), numeric strings
// and numbers 0-6 with 0 = Sunday. 7 is accepted as Sunday.
func ParseWeekday(value any) (Weekday, error) {
	switch v := value.(type) {
	case Weekday:
		if !v.IsValid() {
			return 0, fmt.Errorf("invalid weekday: %d", int(v))
		}
		return v, nil
	case time.Weekday:
		return Weekday(v), nil
	case int:
		return weekdayFromIndex(v)
	case int64:
		return weekdayFromIndex(int(v))
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("invalid weekday index: %v", v)
		}
		return weekdayFromIndex(int(v))
	case string:
		return parseWeekdayString(v)
	default:
		return 0, fmt.Errorf("unsupported weekday value %v (%T)", value, value)
	}
}

func weekdayFromIndex(i int) (Weekday, error) {
	if i == 7 {
		return Sunday, nil
	}
	if i < 0 || i > 6 {
		return 0, fmt.Errorf("invalid weekday index: %d", i)
	}
	return Weekday(i), nil
}

func parseWeekdayString(s string) (Weekday, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if trimmed == "" {
		return 0, fmt.Errorf("empty weekday")
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		return weekdayFromIndex(n)
	}
	for i, name := range weekdayNames {
		if trimmed == name || (len(trimmed) >= 3 && strings.HasPrefix(name, trimmed)) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("invalid weekday: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Weekday) MarshalText() ([]byte, error) {
	if !d.IsValid() {
		return nil, fmt.Errorf("invalid weekday: %d", int(d))
	}
	return []byte(weekdayNames[d]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Weekday) UnmarshalText(text []byte) error {
	parsed, err := parseWeekdayString(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalJSON accepts both names and numeric indices.
func (d *Weekday) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseWeekday(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Weekdays is an ordered set of weekdays.
type Weekdays []Weekday

// Contains reports whether d is a member.
func (ws Weekdays) Contains(d Weekday) bool {
	for _, w := range ws {
		if w == d {
			return true
		}
	}
	return false
}

func (ws Weekdays) String() string {
	parts := make([]string, 0, len(ws))
	for _, w := range ws {
		parts = append(parts, w.Short())
	}
	return strings.Join(parts, ", ")
}

// ParseWeekdayList parses a comma separated list such as "mon,wed,fri".
func ParseWeekdayList(s string) (Weekdays, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out Weekdays
	for _, part := range strings.Split(s, ",") {
		d, err := ParseWeekday(part)
		if err != nil {
			return nil, err
		}
		if !out.Contains(d) {
			out = append(out, d)
		}
	}
	return out, nil
}
