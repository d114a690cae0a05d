package summary

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
)

// Defaults for the trailing weekly windows.
const (
	DefaultWeeks      = 12
	DefaultTotalWeeks = 13
	DefaultWindow     = results.Week
	DefaultWeekStart  = time.Sunday

	// MaxWeeks bounds Weeks and TotalWeeks. Twenty years of weekly windows.
	MaxWeeks = 1040
)

// Sentinel option errors.
var (
	ErrInvalidWeeks      = errors.New("weeks out of range")
	ErrInvalidWindow     = errors.New("window out of range")
	ErrInvalidTotalWeeks = errors.New("total weeks out of range")
	ErrInvalidWeekStart  = errors.New("unknown week start day")
)

// Options configures the windows a Builder summarizes.
type Options struct {
	// Weeks is the number of trailing windows, most recent first.
	Weeks int
	// Window is the width of one window.
	Window time.Duration
	// TotalWeeks is how many windows before the current week's start the
	// total comparison reaches back.
	TotalWeeks int
	// WeekStart is the weekday a window begins on.
	WeekStart time.Weekday
	// Parallel computes windows concurrently. Output order is unaffected.
	Parallel bool
}

// DefaultOptions returns twelve Sunday-aligned weekly windows and a
// thirteen-week total.
func DefaultOptions() Options {
	return Options{
		Weeks:      DefaultWeeks,
		Window:     DefaultWindow,
		TotalWeeks: DefaultTotalWeeks,
		WeekStart:  DefaultWeekStart,
	}
}

// Validate checks the options. Weeks must lie in [1, MaxWeeks], TotalWeeks
// in [0, MaxWeeks], and the furthest window offset must fit in a
// time.Duration.
func (o Options) Validate() error {
	if o.Weeks <= 0 || o.Weeks > MaxWeeks {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidWeeks, o.Weeks, MaxWeeks)
	}

	if o.TotalWeeks < 0 || o.TotalWeeks > MaxWeeks {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidTotalWeeks, o.TotalWeeks, MaxWeeks)
	}

	if o.Window <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidWindow, o.Window)
	}

	span := int64(max(o.Weeks, o.TotalWeeks) + 1)
	if int64(o.Window) > math.MaxInt64/span {
		return fmt.Errorf("%w: %s is too wide for %d windows", ErrInvalidWindow, o.Window, span)
	}

	if o.WeekStart < time.Sunday || o.WeekStart > time.Saturday {
		return fmt.Errorf("%w: %d", ErrInvalidWeekStart, o.WeekStart)
	}

	return nil
}

// ParseWeekday accepts full or three-letter English weekday names.
func ParseWeekday(name string) (time.Weekday, error) {
	lower := strings.ToLower(strings.TrimSpace(name))

	for day := time.Sunday; day <= time.Saturday; day++ {
		full := strings.ToLower(day.String())
		if lower == full || lower == full[:3] {
			return day, nil
		}
	}

	return time.Sunday, fmt.Errorf("%w: %q", ErrInvalidWeekStart, name)
}
