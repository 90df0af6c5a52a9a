package scheduling

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the canonical wire format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a civil calendar date with no instant or zone attached.
// "2025-06-09" is a Monday regardless of where it is evaluated.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes overflowing components (e.g. June 31 → July 1).
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate reads the calendar day literally. Timestamp inputs such as
// "2025-06-09T00:00:00Z" keep their written date; the offset is never applied.
func ParseDate(s string) (Date, error) {
	trimmed := strings.TrimSpace(s)
	if idx := strings.IndexAny(trimmed, "T "); idx > 0 {
		trimmed = trimmed[:idx]
	}
	t, err := time.ParseInLocation(DateLayout, trimmed, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// MustParseDate panics on malformed input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar day of t as seen in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

func (d Date) noon() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) Weekday() Weekday {
	return FromTimeWeekday(d.noon().Weekday())
}

func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// DaysUntil returns the number of days from d to other (negative if other is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.noon().Sub(d.noon()).Hours() / 24)
}

func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.Compare(other) > 0 }

// Between reports whether d lies in the inclusive range [from, to].
func (d Date) Between(from, to Date) bool {
	return !d.Before(from) && !d.After(to)
}

// Monday returns the Monday starting d's week.
func (d Date) Monday() Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// At combines the date with a time of day in loc.
func (d Date) At(t TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, int(t), 0, 0, loc)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateSet is a set of calendar dates.
type DateSet map[Date]struct{}

func (s DateSet) Add(d Date) { s[d] = struct{}{} }

func (s DateSet) Has(d Date) bool {
	_, ok := s[d]
	return ok
}

// Sorted returns the members in ascending order.
func (s DateSet) Sorted() []Date {
	out := make([]Date, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
