// Package hoeffding implements a Hoeffding Tree, grounded on the original
// implementation's hoeffding_tree.hpp: each leaf bins every feature into a
// fixed number of equal-width intervals over the box it has seen so far,
// and splits on the bin boundary with the largest information gain once
// the gap between the best and second-best boundary clears the Hoeffding
// bound for the leaf's sample count.
package hoeffding

import (
	"math"
	"sync"
)

const none = -1

// node is one tree node, arena-indexed like CMF's own Node (index.,, not
// pointer., children) so the tree can grow without per-node heap churn.
type node struct {
	// splitFeature is the splitting feature for an internal node, or -1
	// for a leaf.
	splitFeature int
	splitValue   float64

	lowerBox []float64
	upperBox []float64

	children [2]int // children[0]=left (<=splitValue), children[1]=right

	// leaf-only state
	count    int
	counters [][]int // counters[label][bin offset across all features]
	infoSum  []float64
}

func (n *node) isLeaf() bool { return n.splitFeature < 0 }

// Tree is a Hoeffding Tree classifier over features binned into a fixed
// number of values each.
type Tree struct {
	mu sync.RWMutex

	delta        float64 // probability of choosing the wrong split
	featureSizes []int
	sumFeatures  int
	labelCount   int

	nodes []node
}

// New constructs a Tree. featureSizes[i] is the number of bins feature i
// is discretized into; delta bounds the probability that a chosen split
// is wrong, per the Hoeffding inequality.
func New(featureSizes []int, labelCount int, delta float64) *Tree {
	sum := 0
	for _, s := range featureSizes {
		sum += s
	}

	t := &Tree{
		delta:        delta,
		featureSizes: featureSizes,
		sumFeatures:  sum,
		labelCount:   labelCount,
	}
	t.nodes = append(t.nodes, t.newLeaf(nil, nil))
	return t
}

func (t *Tree) newLeaf(lower, upper []float64) node {
	n := node{
		splitFeature: none,
		children:     [2]int{none, none},
		counters:     make([][]int, t.labelCount),
		infoSum:      make([]float64, t.sumFeatures-len(t.featureSizes)),
	}
	for l := range n.counters {
		n.counters[l] = make([]int, t.sumFeatures)
	}

	if lower == nil {
		lower = make([]float64, len(t.featureSizes))
		upper = make([]float64, len(t.featureSizes))
		// An empty box: the first training point sets both bounds.
		for i := range lower {
			lower[i] = math.Inf(1)
			upper[i] = math.Inf(-1)
		}
	}
	n.lowerBox = lower
	n.upperBox = upper

	return n
}

// limits returns the bin boundaries this leaf currently uses for each
// feature, computed fresh from its box, matching select_split_values.
func (t *Tree) limits(n *node) []float64 {
	out := make([]float64, 0, t.sumFeatures-len(t.featureSizes))
	for f, size := range t.featureSizes {
		width := n.upperBox[f] - n.lowerBox[f]
		step := width / float64(size)
		for i := 1; i < size; i++ {
			out = append(out, n.lowerBox[f]+float64(i)*step)
		}
	}
	return out
}

// binOf returns the bin index (offset within one label's counters row)
// that value falls into for feature f, given its limits starting at
// limitOffset.
func binOf(size int, limitOffset int, limits []float64, value float64) int {
	for i := 0; i < size-1; i++ {
		if value < limits[limitOffset+i] {
			return i
		}
	}
	return size - 1
}

// Train absorbs one labelled point, descending to the appropriate leaf,
// possibly splitting it, and routing the point into the freshly created
// child so every leaf always reflects every point it has seen.
func (t *Tree) Train(features []float64, label int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.sortToLeaf(features)
	for {
		feature, value := t.trainLeaf(idx, features, label)
		if feature < 0 {
			return
		}
		t.split(idx, feature, value)
		if features[feature] <= value {
			idx = t.nodes[idx].children[0]
		} else {
			idx = t.nodes[idx].children[1]
		}
	}
}

// trainLeaf increments idx's counters with one point and reports a
// candidate (feature, value) split if the Hoeffding bound clears,
// otherwise reports feature -1.
func (t *Tree) trainLeaf(idx int, features []float64, label int) (int, float64) {
	n := &t.nodes[idx]

	n.count++
	for f, v := range features {
		if v > n.upperBox[f] {
			n.upperBox[f] = v
		}
		if v < n.lowerBox[f] {
			n.lowerBox[f] = v
		}
	}

	limits := t.limits(n)
	offset := 0
	for f, v := range features {
		size := t.featureSizes[f]
		bin := binOf(size, offset-f, limits, v)
		n.counters[label][offset+bin]++
		offset += size
	}

	gain := t.informationGain(n, limits)
	d := float64(n.count)
	for i := range gain {
		n.infoSum[i] += gain[i]
		gain[i] = n.infoSum[i] / d
	}

	best, second := 0, 1
	if gain[best] < gain[second] {
		best, second = second, best
	}
	for i := 2; i < len(gain); i++ {
		switch {
		case gain[i] > gain[best]:
			second = best
			best = i
		case gain[i] > gain[second]:
			second = i
		}
	}

	epsilon := 4 * math.Log(1/t.delta) / (2 * d)
	diff := gain[best] - gain[second]
	if diff*diff > epsilon && gain[best] > 0 {
		feature, binIdx := t.featureOfGainIndex(best)
		return feature, limits[binIdxToLimitIndex(t.featureSizes, feature, binIdx)]
	}

	return none, 0
}

// featureOfGainIndex maps a flattened (sumFeatures-len(featureSizes))
// gain index back to (feature, bin-within-feature).
func (t *Tree) featureOfGainIndex(i int) (int, int) {
	for f, size := range t.featureSizes {
		if i < size-1 {
			return f, i
		}
		i -= size - 1
	}
	return len(t.featureSizes) - 1, i
}

func binIdxToLimitIndex(featureSizes []int, feature, bin int) int {
	idx := 0
	for f := 0; f < feature; f++ {
		idx += featureSizes[f] - 1
	}
	return idx + bin
}

// informationGain computes, for every bin boundary, the information gain
// of splitting the leaf there, following compute_information_gain.
func (t *Tree) informationGain(n *node, limits []float64) []float64 {
	countsPerLabel := make([]float64, t.labelCount)
	var total float64
	for l := 0; l < t.labelCount; l++ {
		for v := 0; v < t.featureSizes[0]; v++ {
			countsPerLabel[l] += float64(n.counters[l][v])
		}
		total += countsPerLabel[l]
	}

	var entropyLeaf float64
	for l := range countsPerLabel {
		p := countsPerLabel[l] / total
		if p > 0 && !math.IsNaN(p) {
			entropyLeaf += p * math.Log2(p)
		}
	}
	entropyLeaf *= -1

	out := make([]float64, t.sumFeatures-len(t.featureSizes))
	start := 0
	outOffset := 0
	for f, size := range t.featureSizes {
		t.entropyForFeature(n, size, start, out[outOffset:outOffset+size-1])
		start += size
		outOffset += size - 1
	}

	for i := range out {
		out[i] = entropyLeaf - out[i]
	}
	return out
}

func (t *Tree) entropyForFeature(n *node, size, start int, out []float64) {
	var sides [2][]float64
	sides[0] = make([]float64, t.labelCount)
	sides[1] = make([]float64, t.labelCount)
	for l := 0; l < t.labelCount; l++ {
		for v := 0; v < size; v++ {
			sides[1][l] += float64(n.counters[l][start+v])
		}
	}

	for v := 0; v < size-1; v++ {
		var sumPerSide [2]float64
		for l := 0; l < t.labelCount; l++ {
			c := float64(n.counters[l][start+v])
			sides[0][l] += c
			sides[1][l] -= c
			sumPerSide[0] += sides[0][l]
			sumPerSide[1] += sides[1][l]
		}

		sum := sumPerSide[0] + sumPerSide[1]
		var probPerSide [2]float64
		if sum > 0 {
			probPerSide[0] = sumPerSide[0] / sum
			probPerSide[1] = sumPerSide[1] / sum
		}

		var partial [2]float64
		for l := 0; l < t.labelCount; l++ {
			if sumPerSide[0] > 0 {
				d := sides[0][l] / sumPerSide[0]
				if d > 0 && !math.IsNaN(d) {
					partial[0] += d * math.Log2(d)
				}
			}
			if sumPerSide[1] > 0 {
				d := sides[1][l] / sumPerSide[1]
				if d > 0 && !math.IsNaN(d) {
					partial[1] += d * math.Log2(d)
				}
			}
		}

		out[v] = -partial[0]*probPerSide[0] - partial[1]*probPerSide[1]
	}
}

// split turns the leaf at idx into an internal node on feature/value,
// cloning its counters and box into a left child and starting a fresh
// right child, per Node::split.
func (t *Tree) split(idx, feature int, value float64) {
	parent := t.nodes[idx]

	leftLower := append([]float64(nil), parent.lowerBox...)
	leftUpper := append([]float64(nil), parent.upperBox...)
	leftUpper[feature] = value
	left := t.newLeaf(leftLower, leftUpper)

	rightLower := append([]float64(nil), parent.lowerBox...)
	rightUpper := append([]float64(nil), parent.upperBox...)
	rightLower[feature] = value
	right := t.newLeaf(rightLower, rightUpper)

	t.nodes = append(t.nodes, left, right)
	leftIdx := len(t.nodes) - 2
	rightIdx := len(t.nodes) - 1

	t.nodes[idx].splitFeature = feature
	t.nodes[idx].splitValue = value
	t.nodes[idx].children = [2]int{leftIdx, rightIdx}
	t.nodes[idx].counters = nil
	t.nodes[idx].infoSum = nil
}

func (t *Tree) sortToLeaf(features []float64) int {
	idx := 0
	for !t.nodes[idx].isLeaf() {
		n := &t.nodes[idx]
		if features[n.splitFeature] <= n.splitValue {
			idx = n.children[0]
		} else {
			idx = n.children[1]
		}
	}
	return idx
}

// Predict returns the majority-vote label at the leaf features sorts
// into, and (if out is non-nil) the per-label vote fractions.
func (t *Tree) Predict(features []float64, out []float64) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := t.sortToLeaf(features)
	n := &t.nodes[idx]

	counts := make([]float64, t.labelCount)
	var sum float64
	for l := 0; l < t.labelCount; l++ {
		for v := 0; v < t.featureSizes[0]; v++ {
			counts[l] += float64(n.counters[l][v])
		}
		sum += counts[l]
	}

	best := 0
	for l := range counts {
		if sum > 0 {
			counts[l] /= sum
		}
		if counts[l] > counts[best] {
			best = l
		}
	}

	if out != nil {
		copy(out, counts)
	}

	return best
}

// NodeCount returns the number of nodes (internal and leaf) in the tree.
func (t *Tree) NodeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}
