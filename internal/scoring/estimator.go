package scoring

import "math/rand/v2"

// Jitter draws a value in [0, n).
type Jitter interface {
	IntN(n int) int
}

// Bucket maps scores at or above MinScore to Base plus up to Spread-1 visits.
type Bucket struct {
	MinScore int
	Base     int
	Spread   int
}

// Min is the smallest estimate the bucket can yield.
func (b Bucket) Min() int { return b.Base }

// Max is the largest estimate the bucket can yield.
func (b Bucket) Max() int { return b.Base + max(0, b.Spread-1) }

// Buckets are ordered from the highest score down.
var Buckets = []Bucket{
	{MinScore: 90, Base: 15000, Spread: 5000},
	{MinScore: 80, Base: 10000, Spread: 5000},
	{MinScore: 70, Base: 5000, Spread: 5000},
	{MinScore: 60, Base: 2000, Spread: 3000},
	{MinScore: 50, Base: 1000, Spread: 1000},
	{MinScore: 40, Base: 500, Spread: 500},
	{MinScore: 30, Base: 200, Spread: 300},
	{MinScore: 20, Base: 50, Spread: 150},
	{MinScore: 10, Base: 0, Spread: 50},
	{MinScore: 0, Base: 0, Spread: 0},
}

// BucketFor returns the bucket holding score after clamping.
func BucketFor(score int) Bucket {
	score = Clamp(score)
	for _, b := range Buckets {
		if score >= b.MinScore {
			return b
		}
	}
	return Buckets[len(Buckets)-1]
}

// Estimator converts a score into estimated monthly visits.
type Estimator struct {
	jitter Jitter
}

// NewEstimator uses the global math/rand/v2 source when jitter is nil.
func NewEstimator(jitter Jitter) *Estimator {
	if jitter == nil {
		jitter = globalJitter{}
	}
	return &Estimator{jitter: jitter}
}

// Estimate depends on the score only.
func (e *Estimator) Estimate(score int) int {
	b := BucketFor(score)
	if b.Spread <= 0 {
		return b.Base
	}
	return b.Base + e.jitter.IntN(b.Spread)
}

type globalJitter struct{}

func (globalJitter) IntN(n int) int { return rand.IntN(n) }
