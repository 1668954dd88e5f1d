package models

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// GradientBoostingRegressor is an additive ensemble of regression trees fitted
// to least-squares residuals:
//
//	prediction = Init + LearningRate * Σ tree(x)
//
// The flat node layout matches what scikit-learn exposes on a fitted tree, so a
// model trained elsewhere can be exported into a bundle unchanged.
type GradientBoostingRegressor struct {
	Init         float64 `json:"init"`
	LearningRate float64 `json:"learningRate"`
	NumFeatures  int     `json:"numFeatures"`
	Trees        []Tree  `json:"trees"`
}

// Tree is a binary regression tree stored as a node array rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a split (Feature >= 0) or a leaf (Feature == -1). Samples with
// x[Feature] <= Threshold go Left.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

// GBParams controls boosting. Zero fields take the defaults used for the
// shipped stages: 100 estimators, learning rate 0.1, depth 3, 1 sample per leaf.
type GBParams struct {
	Estimators     int
	LearningRate   float64
	MaxDepth       int
	MinSamplesLeaf int
}

func (p GBParams) withDefaults() GBParams {
	if p.Estimators <= 0 {
		p.Estimators = 100
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.1
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 3
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = 1
	}
	return p
}

// FitGradientBoosting fits a boosted tree ensemble of y on X. Fitting is
// deterministic: ties between equally good splits go to the lowest feature index.
func FitGradientBoosting(ctx context.Context, X [][]float64, y []float64, params GBParams) (*GradientBoostingRegressor, error) {
	if len(X) == 0 {
		return nil, errors.New("gbr: no rows to fit")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("gbr: %d rows but %d targets", len(X), len(y))
	}
	nf := len(X[0])
	for i, row := range X {
		if len(row) != nf {
			return nil, fmt.Errorf("gbr: row %d has %d columns, want %d", i, len(row), nf)
		}
	}

	p := params.withDefaults()
	m := &GradientBoostingRegressor{
		Init:         stat.Mean(y, nil),
		LearningRate: p.LearningRate,
		NumFeatures:  nf,
		Trees:        make([]Tree, 0, p.Estimators),
	}

	current := make([]float64, len(y))
	for i := range current {
		current[i] = m.Init
	}
	residual := make([]float64, len(y))
	all := make([]int, len(y))
	for i := range all {
		all[i] = i
	}

	for e := 0; e < p.Estimators; e++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range y {
			residual[i] = y[i] - current[i]
		}

		tb := treeBuilder{X: X, target: residual, params: p}
		tb.grow(all, 0)
		tree := Tree{Nodes: tb.nodes}
		m.Trees = append(m.Trees, tree)

		for i, row := range X {
			current[i] += p.LearningRate * tree.eval(row)
		}
	}

	return m, nil
}

type treeBuilder struct {
	X      [][]float64
	target []float64
	params GBParams
	nodes  []Node
}

// grow appends the subtree for idx and returns its node index.
func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: b.mean(idx)})

	if depth >= b.params.MaxDepth || len(idx) < 2*b.params.MinSamplesLeaf {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return id
}

func (b *treeBuilder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += b.target[i]
	}
	return sum / float64(len(idx))
}

// bestSplit finds the split maximizing the reduction in squared error, which
// for a fixed parent is the maximum of sumL²/nL + sumR²/nR.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf

	var total float64
	for _, i := range idx {
		total += b.target[i]
	}
	parent := total * total / float64(n)

	bestGain := 1e-12
	bestFeature, bestThreshold, found := -1, 0.0, false

	sorted := slices.Clone(idx)
	for f := 0; f < len(b.X[idx[0]]); f++ {
		slices.SortStableFunc(sorted, func(a, c int) int {
			switch {
			case b.X[a][f] < b.X[c][f]:
				return -1
			case b.X[a][f] > b.X[c][f]:
				return 1
			}
			return 0
		})

		var sumLeft float64
		for k := 0; k < n-1; k++ {
			sumLeft += b.target[sorted[k]]
			nl := k + 1
			nr := n - nl
			lo, hi := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if lo == hi || nl < minLeaf || nr < minLeaf {
				continue
			}
			sumRight := total - sumLeft
			gain := sumLeft*sumLeft/float64(nl) + sumRight*sumRight/float64(nr) - parent
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				found = true
			}
		}
	}

	return bestFeature, bestThreshold, found
}

func (t Tree) eval(x []float64) float64 {
	i := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return 0
}

// Name returns the model identifier.
func (m *GradientBoostingRegressor) Name() string {
	return string(KindGBR)
}

// Features returns the vector length the ensemble was fitted on.
func (m *GradientBoostingRegressor) Features() int {
	return m.NumFeatures
}

// Predict evaluates the ensemble.
func (m *GradientBoostingRegressor) Predict(_ context.Context, x []float64) (float64, error) {
	if len(x) != m.NumFeatures {
		return 0, fmt.Errorf("%w: gbr model expects %d features, got %d", ErrDimension, m.NumFeatures, len(x))
	}
	out := m.Init
	for _, t := range m.Trees {
		out += m.LearningRate * t.eval(x)
	}
	return out, nil
}

// validate rejects trees whose node references would escape the node array or
// the feature vector.
func (m *GradientBoostingRegressor) validate() error {
	if m.NumFeatures <= 0 {
		return errors.New("gbr model has no features")
	}
	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("gbr tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature < 0 {
				continue
			}
			if n.Feature >= m.NumFeatures {
				return fmt.Errorf("gbr tree %d node %d splits on feature %d of %d", ti, ni, n.Feature, m.NumFeatures)
			}
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("gbr tree %d node %d has invalid children", ti, ni)
			}
		}
	}
	return nil
}
