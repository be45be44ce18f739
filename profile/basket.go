package profile

// Divisor is the number of calendar days of a kind in one week.
func Divisor(weekend bool) float64 {
	if weekend {
		return 2
	}
	return 5
}

// Normalize returns obs with Intensity set to the average presence per
// calendar day of the bucket's kind. Order and length are unchanged.
func Normalize(obs []Observation) []Observation {
	out := make([]Observation, len(obs))
	for i, o := range obs {
		o.Intensity = float64(o.Count) / Divisor(o.Weekend)
		out[i] = o
	}
	return out
}

// Basket is the presence vector of one user in one region for a window.
type Basket struct {
	Region string
	UserID string
	Vector []float64
}

// VectorLen is the basket length for a window of weeks weeks.
func VectorLen(weeks int) int { return weeks * DayKinds * SlicesPerDay }

// Index is the vector slot of a 1-based window week, day kind and slice.
func Index(week int, weekend bool, slice int) int {
	we := 0
	if weekend {
		we = 1
	}
	return (week-1)*DayKinds*SlicesPerDay + we*SlicesPerDay + slice
}

// Baskets builds one zero-filled vector per region the user visited and
// writes each observation's intensity at its slot. Regions come out in the
// order they first appear in obs.
func Baskets(userID string, obs []Observation, weeks int) []Basket {
	var order []string
	byRegion := map[string][]float64{}
	for _, o := range obs {
		vec, ok := byRegion[o.Region]
		if !ok {
			vec = make([]float64, VectorLen(weeks))
			byRegion[o.Region] = vec
			order = append(order, o.Region)
		}
		vec[Index(o.Week, o.Weekend, o.Slice)] = o.Intensity
	}

	out := make([]Basket, 0, len(order))
	for _, r := range order {
		out = append(out, Basket{Region: r, UserID: userID, Vector: byRegion[r]})
	}
	return out
}
