package yield

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// treeNode is a node of a regression tree stored in a flat slice.
// Leaves have feature == -1.
type treeNode struct {
	feature     int
	threshold   float64
	left, right int
	value       float64
}

// Tree is a CART regression tree grown by greedy SSE reduction.
type Tree struct {
	nodes []treeNode
}

type treeBuilder struct {
	X          [][]float64
	y          []float64
	maxDepth   int
	minLeaf    int
	importance []float64
	nodes      []treeNode
}

// fitTree grows a tree on the rows listed in idx. importance accumulates
// the SSE reduction credited to each feature.
func fitTree(X [][]float64, y []float64, idx []int, maxDepth, minLeaf int, importance []float64) *Tree {
	b := &treeBuilder{
		X:          X,
		y:          y,
		maxDepth:   maxDepth,
		minLeaf:    max(1, minLeaf),
		importance: importance,
	}
	b.grow(idx, 0)
	return &Tree{nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	vals := make([]float64, len(idx))
	for i, r := range idx {
		vals[i] = b.y[r]
	}
	mean, variance := stat.PopMeanVariance(vals, nil)

	id := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{feature: -1, value: mean})

	if depth >= b.maxDepth || len(idx) < 2*b.minLeaf || variance <= 0 {
		return id
	}

	parentSSE := variance * float64(len(idx))
	feature, threshold, gain := b.bestSplit(idx, parentSSE)
	if feature < 0 {
		return id
	}
	b.importance[feature] += gain

	var left, right []int
	for _, r := range idx {
		if b.X[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := b.grow(left, depth+1)
	rt := b.grow(right, depth+1)
	b.nodes[id] = treeNode{feature: feature, threshold: threshold, left: l, right: rt, value: mean}
	return id
}

// bestSplit scans every feature for the threshold with the largest SSE
// reduction. It returns feature -1 when no split improves the node.
func (b *treeBuilder) bestSplit(idx []int, parentSSE float64) (feature int, threshold, gain float64) {
	feature = -1
	n := len(idx)
	sorted := make([]int, n)

	for f := 0; f < len(b.X[idx[0]]); f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool { return b.X[sorted[i]][f] < b.X[sorted[j]][f] })

		var totalSum, totalSq float64
		for _, r := range sorted {
			totalSum += b.y[r]
			totalSq += b.y[r] * b.y[r]
		}

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			v := b.y[sorted[k]]
			leftSum += v
			leftSq += v * v

			nl := k + 1
			nr := n - nl
			if nl < b.minLeaf || nr < b.minLeaf {
				continue
			}
			x0, x1 := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if x0 == x1 {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if g := parentSSE - sse; g > gain+1e-12 {
				feature, threshold, gain = f, (x0+x1)/2, g
			}
		}
	}
	return feature, threshold, gain
}

// Predict walks the tree for one input row.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.feature < 0 {
			return n.value
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// Depth returns the depth of the deepest leaf.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.nodes[i]
		if n.feature < 0 {
			return 0
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	return walk(0)
}
