package profile

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func regions(obs []Observation) []string {
	var out []string
	for _, o := range obs {
		if len(out) == 0 || out[len(out)-1] != o.Region {
			out = append(out, o.Region)
		}
	}
	return out
}

func TestRank_BusiestRegionFirst(t *testing.T) {
	obs := []Observation{
		{Region: "A", Week: 1, Weekend: false, Slice: 0, Count: 1},
		{Region: "A", Week: 2, Weekend: true, Slice: 2, Count: 1},
		{Region: "B", Week: 1, Weekend: false, Slice: 1, Count: 3},
		{Region: "B", Week: 1, Weekend: true, Slice: 0, Count: 2},
		{Region: "B", Week: 3, Weekend: false, Slice: 0, Count: 1},
	}

	want := []Observation{
		{Region: "B", Week: 1, Weekend: true, Slice: 0, Count: 2},
		{Region: "B", Week: 1, Weekend: false, Slice: 1, Count: 3},
		{Region: "B", Week: 3, Weekend: false, Slice: 0, Count: 1},
		{Region: "A", Week: 1, Weekend: false, Slice: 0, Count: 1},
		{Region: "A", Week: 2, Weekend: true, Slice: 2, Count: 1},
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		in := append([]Observation(nil), obs...)
		rng.Shuffle(len(in), func(a, b int) { in[a], in[b] = in[b], in[a] })

		got := Rank(in)

		assert.Equal(t, want, got)
		assert.Equal(t, []string{"B", "A"}, regions(got))
	}
}

func TestRank_TiesByRegionName(t *testing.T) {
	obs := []Observation{
		{Region: "Z", Week: 1, Slice: 0, Count: 1},
		{Region: "M", Week: 2, Slice: 0, Count: 1},
	}
	assert.Equal(t, []string{"M", "Z"}, regions(Rank(obs)))
}

func TestRank_DoesNotChangeBaskets(t *testing.T) {
	obs := Normalize([]Observation{
		{Region: "A", Week: 3, Weekend: true, Slice: 2, Count: 2},
		{Region: "A", Week: 1, Weekend: false, Slice: 0, Count: 4},
		{Region: "B", Week: 2, Weekend: false, Slice: 1, Count: 1},
	})

	plain := Baskets("u", obs, 4)
	ranked := Baskets("u", Rank(obs), 4)

	byRegion := func(bs []Basket) map[string][]float64 {
		m := map[string][]float64{}
		for _, b := range bs {
			m[b.Region] = b.Vector
		}
		return m
	}
	assert.Equal(t, byRegion(plain), byRegion(ranked))
}
