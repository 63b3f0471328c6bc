package engine

import "math/rand"

// Rand is the random capability the trade generator draws from.
// *rand.Rand satisfies it.
type Rand interface {
	// Float64 returns a uniform value in [0,1).
	Float64() float64
	// Intn returns a uniform value in [0,n).
	Intn(n int) int
}

// NewSeededRand returns a deterministic source for the given seed.
func NewSeededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// VariationSeed derives the sub-stream seed for one variation so that
// parallel runs stay reproducible and streams do not overlap trivially.
func VariationSeed(seed int64, variation int) int64 {
	z := uint64(seed) + uint64(variation)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64(z ^ (z >> 31))
}
