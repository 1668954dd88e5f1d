package training

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Split shuffles row indices 0..n-1 with seed and returns disjoint train and
// test index sets. The test set holds ceil(n*testFraction) rows; the same
// seed always produces the same split.
func Split(n int, testFraction float64, seed int64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0, 1), got %v", testFraction)
	}
	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest < 1 || n-nTest < 1 {
		return nil, nil, errors.New("not enough rows for a train/test split")
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

func pick[T any](xs []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = xs[j]
	}
	return out
}
