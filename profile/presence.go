package profile

import (
	"context"

	"github.com/jalad-shrimali/cdr-sociometer/engine"
	"github.com/jalad-shrimali/cdr-sociometer/window"
)

// Presence is the finest dedup unit: a user seen in a region on one day and
// time slice of a window week. Week is the 1-based index inside the window.
type Presence struct {
	UserID    string
	Region    string
	Week      int
	Weekend   bool
	DayOfWeek int
	Slice     int
	Year      int
}

// Presence places a in w, or reports false when its week is not part of w.
func (a Attributed) Presence(w window.Window) (Presence, bool) {
	idx, ok := w.Index(a.Week)
	if !ok {
		return Presence{}, false
	}
	return Presence{
		UserID:    a.UserID,
		Region:    a.Region,
		Week:      idx,
		Weekend:   a.Weekend,
		DayOfWeek: a.DayOfWeek,
		Slice:     a.Slice,
		Year:      a.Year,
	}, true
}

// ObservationKey is a Presence without the day: the bucket a count belongs to.
type ObservationKey struct {
	UserID  string
	Region  string
	Week    int
	Weekend bool
	Slice   int
}

func (p Presence) Key() ObservationKey {
	return ObservationKey{UserID: p.UserID, Region: p.Region, Week: p.Week, Weekend: p.Weekend, Slice: p.Slice}
}

// InWindow keeps the records of w and places each one in the window. The
// result still holds one Presence per record.
func InWindow(ctx context.Context, records *engine.Dataset[Attributed], w window.Window) (*engine.Dataset[Presence], error) {
	kept, err := engine.Filter(ctx, records, func(a Attributed) bool {
		_, ok := w.Index(a.Week)
		return ok
	})
	if err != nil {
		return nil, err
	}
	return engine.Map(ctx, kept, func(a Attributed) Presence {
		p, _ := a.Presence(w)
		return p
	})
}

// Presences collapses the records of w to distinct presences, so any number
// of calls in the same day and slice counts once.
func Presences(ctx context.Context, records *engine.Dataset[Attributed], w window.Window) (*engine.Dataset[Presence], error) {
	in, err := InWindow(ctx, records, w)
	if err != nil {
		return nil, err
	}
	return engine.Distinct(ctx, in)
}

// CountPresences sums distinct presences per bucket, giving the number of
// distinct days the user was seen there.
func CountPresences(ctx context.Context, presences *engine.Dataset[Presence]) (*engine.Dataset[engine.Pair[ObservationKey, int]], error) {
	ones, err := engine.Map(ctx, presences, func(p Presence) engine.Pair[ObservationKey, int] {
		return engine.Pair[ObservationKey, int]{Key: p.Key(), Value: 1}
	})
	if err != nil {
		return nil, err
	}
	return engine.ReduceByKey(ctx, ones, func(a, b int) int { return a + b })
}
