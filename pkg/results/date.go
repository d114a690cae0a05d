package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DaysPerWeek is the number of days in a calendar week.
const DaysPerWeek = 7

// Week is the duration of one calendar week.
const Week = DaysPerWeek * 24 * time.Hour

// ErrInvalidDate is returned when a date string matches none of the accepted layouts.
var ErrInvalidDate = errors.New("invalid date")

// dateLayouts are tried in order when parsing a date string.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Date is a UTC point in time attached to a commit. Only the calendar date
// matters for windowing; the time of day is kept when the input carries it.
type Date struct {
	t time.Time
}

// NewDate wraps t, normalized to UTC.
func NewDate(t time.Time) Date {
	return Date{t: t.UTC()}
}

// DateOf returns midnight UTC of the given calendar day.
func DateOf(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses s using the accepted layouts.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)

	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			return NewDate(parsed), nil
		}
	}

	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Time returns the underlying UTC time.
func (d Date) Time() time.Time {
	return d.t
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after other.
func (d Date) Compare(other Date) int {
	return d.t.Compare(other.t)
}

// Before reports whether d is before other.
func (d Date) Before(other Date) bool {
	return d.t.Before(other.t)
}

// After reports whether d is after other.
func (d Date) After(other Date) bool {
	return d.t.After(other.t)
}

// Equal reports whether d and other are the same instant.
func (d Date) Equal(other Date) bool {
	return d.t.Equal(other.t)
}

// Add returns d shifted by dur.
func (d Date) Add(dur time.Duration) Date {
	return Date{t: d.t.Add(dur)}
}

// AddWeeks returns d shifted by n calendar weeks.
func (d Date) AddWeeks(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n*DaysPerWeek)}
}

// StartOfWeek floors d to 00:00 UTC of the most recent day that is first.
// A date already on first maps to its own midnight.
func (d Date) StartOfWeek(first time.Weekday) Date {
	midnight := time.Date(d.t.Year(), d.t.Month(), d.t.Day(), 0, 0, 0, 0, time.UTC)
	back := (int(midnight.Weekday()) - int(first) + DaysPerWeek) % DaysPerWeek

	return Date{t: midnight.AddDate(0, 0, -back)}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.t.Format(time.DateOnly)
}

// MarshalJSON encodes the date as an RFC 3339 string.
func (d Date) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(d.t.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("marshal date: %w", err)
	}

	return data, nil
}

// UnmarshalJSON decodes a date string in any accepted layout.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(data))
	}

	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

// MarshalYAML encodes the date as an RFC 3339 string.
func (d Date) MarshalYAML() (any, error) {
	return d.t.Format(time.RFC3339), nil
}

// UnmarshalYAML decodes a date scalar in any accepted layout.
func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	var raw string

	err := value.Decode(&raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, value.Value)
	}

	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}
