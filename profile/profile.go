package profile

import (
	"context"
	"sort"

	"github.com/jalad-shrimali/cdr-sociometer/engine"
	"github.com/jalad-shrimali/cdr-sociometer/window"
)

// Result is the baskets of one window plus the sizes of the stages that
// produced them.
type Result struct {
	Window       window.Window
	Records      int
	Presences    int
	Observations int
	Users        int
	Baskets      []Basket
}

// Build runs presence dedup, counting, ranking, normalization and basket
// construction for w over already attributed records. Baskets are sorted
// by user; each user's baskets keep their ranked region order.
func Build(ctx context.Context, records *engine.Dataset[Attributed], w window.Window) (*Result, error) {
	in, err := InWindow(ctx, records, w)
	if err != nil {
		return nil, err
	}
	presences, err := engine.Distinct(ctx, in)
	if err != nil {
		return nil, err
	}
	counts, err := CountPresences(ctx, presences)
	if err != nil {
		return nil, err
	}
	profiles, err := Profiles(ctx, counts)
	if err != nil {
		return nil, err
	}

	weeks := w.Len()
	baskets, err := engine.FlatMap(ctx, profiles, func(p Profile) ([]Basket, error) {
		return Baskets(p.UserID, Normalize(Rank(p.Observations)), weeks), nil
	})
	if err != nil {
		return nil, err
	}

	out := baskets.Collect()
	sort.SliceStable(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })

	return &Result{
		Window:       w,
		Records:      in.Count(),
		Presences:    presences.Count(),
		Observations: counts.Count(),
		Users:        profiles.Count(),
		Baskets:      out,
	}, nil
}
