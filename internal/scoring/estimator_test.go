package scoring

import (
	"math/rand/v2"
	"testing"
)

func TestEstimateStaysInBucket(t *testing.T) {
	t.Parallel()

	est := NewEstimator(rand.New(rand.NewPCG(1, 2)))
	for score := -20; score <= 120; score++ {
		b := BucketFor(score)
		for i := 0; i < 50; i++ {
			got := est.Estimate(score)
			if got < 0 {
				t.Fatalf("score %d: negative estimate %d", score, got)
			}
			if got < b.Min() || got > b.Max() {
				t.Fatalf("score %d: estimate %d outside [%d,%d]", score, got, b.Min(), b.Max())
			}
		}
	}
}

func TestBucketTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		score    int
		min, max int
	}{
		{100, 15000, 19999},
		{90, 15000, 19999},
		{89, 10000, 14999},
		{75, 5000, 9999},
		{60, 2000, 4999},
		{55, 1000, 1999},
		{40, 500, 999},
		{30, 200, 499},
		{20, 50, 199},
		{10, 0, 49},
		{9, 0, 0},
		{0, 0, 0},
	}
	for _, tc := range cases {
		b := BucketFor(tc.score)
		if b.Min() != tc.min || b.Max() != tc.max {
			t.Fatalf("score %d: expected [%d,%d], got [%d,%d]", tc.score, tc.min, tc.max, b.Min(), b.Max())
		}
	}
}

func TestBucketsNonDecreasingInExpectation(t *testing.T) {
	t.Parallel()

	mean := func(b Bucket) float64 { return float64(b.Min()+b.Max()) / 2 }
	for i := 1; i < len(Buckets); i++ {
		higher, lower := Buckets[i-1], Buckets[i]
		if higher.MinScore <= lower.MinScore {
			t.Fatalf("buckets out of order at %d", i)
		}
		if mean(higher) < mean(lower) {
			t.Fatalf("bucket %d mean %v below bucket %d mean %v", higher.MinScore, mean(higher), lower.MinScore, mean(lower))
		}
	}
}

func TestEstimateIsDeterministicWithSeed(t *testing.T) {
	t.Parallel()

	a := NewEstimator(rand.New(rand.NewPCG(7, 7)))
	b := NewEstimator(rand.New(rand.NewPCG(7, 7)))
	for score := 0; score <= 100; score += 5 {
		if x, y := a.Estimate(score), b.Estimate(score); x != y {
			t.Fatalf("score %d: %d != %d with identical seeds", score, x, y)
		}
	}
}
