// Package window plans the ISO weeks of an analysis period and slices them
// into consecutive, non-overlapping windows.
package window

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Size is the number of weeks in a full analysis window.
const Size = 4

const dateLayout = "2006-01-02"

var ErrInvalidRange = errors.New("invalid date range")

// Week is an ISO 8601 (year, week) pair.
type Week struct {
	Year int
	Week int
}

// WeekOf returns the ISO week containing t.
func WeekOf(t time.Time) Week {
	y, w := t.ISOWeek()
	return Week{Year: y, Week: w}
}

// String renders the week as <iso_year>_<iso_week>, the token used in
// output names.
func (w Week) String() string { return fmt.Sprintf("%d_%d", w.Year, w.Week) }

// ParseDate parses a YYYY-MM-DD argument.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// Weeks lists every ISO week touched by [start, end], in order.
func Weeks(start, end time.Time) ([]Week, error) {
	start, end = day(start), day(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange,
			end.Format(dateLayout), start.Format(dateLayout))
	}

	// Monday of the start week.
	monday := start.AddDate(0, 0, -((int(start.Weekday()) + 6) % 7))

	var weeks []Week
	for d := monday; !d.After(end); d = d.AddDate(0, 0, 7) {
		weeks = append(weeks, WeekOf(d))
	}
	return weeks, nil
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Window is a run of consecutive ISO weeks processed together.
type Window struct {
	Weeks []Week
}

// Len is the number of weeks in the window.
func (w Window) Len() int { return len(w.Weeks) }

// Start is the first week.
func (w Window) Start() Week { return w.Weeks[0] }

// End is the last week.
func (w Window) End() Week { return w.Weeks[len(w.Weeks)-1] }

// Name is "<start_week>-<end_week>", e.g. "2016_1-2016_4".
func (w Window) Name() string { return w.Start().String() + "-" + w.End().String() }

// Index returns the 1-based position of wk inside the window.
func (w Window) Index(wk Week) (int, bool) {
	for i, x := range w.Weeks {
		if x == wk {
			return i + 1, true
		}
	}
	return 0, false
}

// Plan is the outcome of slicing a week list: the complete windows to
// process and the trailing weeks that did not fill one.
type Plan struct {
	Windows []Window
	Skipped []Week
}

// Split slices weeks into consecutive groups of size, advancing by size each
// time. A trailing group shorter than size ends up in Skipped.
func Split(weeks []Week, size int) Plan {
	if size < 1 {
		size = Size
	}
	var p Plan
	for i := 0; i < len(weeks); i += size {
		if i+size > len(weeks) {
			p.Skipped = append([]Week(nil), weeks[i:]...)
			break
		}
		p.Windows = append(p.Windows, Window{Weeks: append([]Week(nil), weeks[i:i+size]...)})
	}
	return p
}

// New plans the windows of [start, end].
func New(start, end time.Time, size int) (Plan, error) {
	weeks, err := Weeks(start, end)
	if err != nil {
		return Plan{}, err
	}
	return Split(weeks, size), nil
}
