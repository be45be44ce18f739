package profile

import (
	"context"
	"sort"

	"github.com/jalad-shrimali/cdr-sociometer/engine"
)

// Observation is the count of distinct presence days of one user in one
// bucket. Intensity is filled in by Normalize.
type Observation struct {
	Region    string
	Week      int
	Weekend   bool
	Slice     int
	Count     int
	Intensity float64
}

// Profile is every observation of one user in a window.
type Profile struct {
	UserID       string
	Observations []Observation
}

// Profiles groups bucket counts by user.
func Profiles(ctx context.Context, counts *engine.Dataset[engine.Pair[ObservationKey, int]]) (*engine.Dataset[Profile], error) {
	byUser, err := engine.Map(ctx, counts, func(p engine.Pair[ObservationKey, int]) engine.Pair[string, Observation] {
		k := p.Key
		return engine.Pair[string, Observation]{
			Key:   k.UserID,
			Value: Observation{Region: k.Region, Week: k.Week, Weekend: k.Weekend, Slice: k.Slice, Count: p.Value},
		}
	})
	if err != nil {
		return nil, err
	}
	grouped, err := engine.GroupByKey(ctx, byUser)
	if err != nil {
		return nil, err
	}
	return engine.Map(ctx, grouped, func(p engine.Pair[string, []Observation]) Profile {
		return Profile{UserID: p.Key, Observations: p.Value}
	})
}

// Rank orders a user's observations: regions by their busiest week total
// (then by name), and inside a region busiest week first across the whole
// profile, weekend before workday, earlier slice first. The order only makes
// output reproducible; basket contents do not depend on it.
func Rank(obs []Observation) []Observation {
	out := append([]Observation(nil), obs...)

	weekTotal := map[int]int{}
	regionWeek := map[string]map[int]int{}
	for _, o := range out {
		weekTotal[o.Week] += o.Count
		if regionWeek[o.Region] == nil {
			regionWeek[o.Region] = map[int]int{}
		}
		regionWeek[o.Region][o.Week] += o.Count
	}
	busiest := make(map[string]int, len(regionWeek))
	for r, weeks := range regionWeek {
		for _, n := range weeks {
			if n > busiest[r] {
				busiest[r] = n
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Region != b.Region {
			if busiest[a.Region] != busiest[b.Region] {
				return busiest[a.Region] > busiest[b.Region]
			}
			return a.Region < b.Region
		}
		if weekTotal[a.Week] != weekTotal[b.Week] {
			return weekTotal[a.Week] > weekTotal[b.Week]
		}
		if a.Week != b.Week {
			return a.Week < b.Week
		}
		if a.Weekend != b.Weekend {
			return a.Weekend
		}
		return a.Slice < b.Slice
	})
	return out
}
