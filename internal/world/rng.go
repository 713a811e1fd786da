package world

import (
	"hash/fnv"
	"math/rand"
	"time"
)

// SeedValue hashes a root seed and a label into a non-zero rand seed so each
// consumer gets an independent, reproducible stream.
func SeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewRNG returns a stream for label. An empty root seed uses the clock.
func NewRNG(rootSeed, label string) *rand.Rand {
	if rootSeed == "" {
		return rand.New(rand.NewSource(time.Now().UnixNano() ^ SeedValue("", label)))
	}
	return rand.New(rand.NewSource(SeedValue(rootSeed, label)))
}

func randomBetween(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}
