// Package profile turns call-detail records into per-user, per-region
// presence baskets for one analysis window.
package profile

import (
	"time"

	"github.com/jalad-shrimali/cdr-sociometer/cdr"
	"github.com/jalad-shrimali/cdr-sociometer/spatial"
	"github.com/jalad-shrimali/cdr-sociometer/window"
)

// SlicesPerDay splits the day into 00:00-07:59, 08:00-15:59 and 16:00-23:59.
const SlicesPerDay = 3

// DayKinds is workday vs. weekend.
const DayKinds = 2

// TimeSlice returns the slice of the day t falls in.
func TimeSlice(t time.Time) int { return t.Hour() * SlicesPerDay / 24 }

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// DayOfWeek is the ISO day number, Monday = 1 … Sunday = 7.
func DayOfWeek(t time.Time) int {
	if wd := t.Weekday(); wd != time.Sunday {
		return int(wd)
	}
	return 7
}

// TimeBucket holds the derived attributes of one record.
type TimeBucket struct {
	Region    string
	Week      window.Week
	Weekend   bool
	DayOfWeek int
	Slice     int
	Year      int
}

// Attributed is a record reduced to its user and bucket.
type Attributed struct {
	UserID string
	TimeBucket
}

// Drop tells why a record was left out.
type Drop int

const (
	Kept Drop = iota
	DropUnknownCell
	DropOutOfRange
)

func (d Drop) String() string {
	switch d {
	case Kept:
		return "kept"
	case DropUnknownCell:
		return "unknown_cell"
	case DropOutOfRange:
		return "out_of_range"
	}
	return "unknown"
}

// Attributor maps records onto regions and time buckets. It only reads the
// division, so one value serves every worker.
type Attributor struct {
	division *spatial.Division
	from, to time.Time
}

// NewAttributor keeps records whose calendar date lies in [from, to].
func NewAttributor(division *spatial.Division, from, to time.Time) *Attributor {
	return &Attributor{division: division, from: from, to: to}
}

// Attribute buckets rec, or reports why it was dropped.
func (a *Attributor) Attribute(rec cdr.Record) (Attributed, Drop) {
	region, ok := a.division.Region(rec.StartCell)
	if !ok {
		return Attributed{}, DropUnknownCell
	}
	d := rec.Date()
	if d.Before(a.from) || d.After(a.to) {
		return Attributed{}, DropOutOfRange
	}
	t := rec.Start
	return Attributed{
		UserID: rec.UserID,
		TimeBucket: TimeBucket{
			Region:    region,
			Week:      window.WeekOf(t),
			Weekend:   IsWeekend(t),
			DayOfWeek: DayOfWeek(t),
			Slice:     TimeSlice(t),
			Year:      t.Year(),
		},
	}, Kept
}
