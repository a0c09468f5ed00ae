package cmf

import "github.com/flier/cmf/pkg/cmf/xrand"

// splitDraw is the outcome of drawing a Mondrian split off a node's box
// against a query point, per spec.md §4.B.
type splitDraw struct {
	// e is the split time E; negative means "no split attempted" (the point
	// fell inside the box).
	e float64
	// excess holds e_lower[d]+e_upper[d] per dimension, kept around so
	// callers that do split can re-derive the chosen dimension's bounds
	// without recomputing excess.
	excess []float64
	sum    float64
}

// sampleSplit computes the per-dimension excess of x outside node's box and
// draws the Mondrian split time E.
func sampleSplit(rnd Rand, node *Node, x []float64) splitDraw {
	featureCount := len(node.BoundLower)
	excess := make([]float64, featureCount)

	var sum float64
	for d := 0; d < featureCount; d++ {
		eLower := node.BoundLower[d] - x[d]
		if eLower < 0 {
			eLower = 0
		}
		eUpper := x[d] - node.BoundUpper[d]
		if eUpper < 0 {
			eUpper = 0
		}
		excess[d] = eLower + eUpper
		sum += excess[d]
	}

	if sum == 0 {
		return splitDraw{e: -1, excess: excess, sum: 0}
	}

	return splitDraw{e: xrand.ExpRate(rnd, sum), excess: excess, sum: sum}
}

// chooseDimension picks a dimension with probability proportional to
// excess[d], following the cumulative-mass tie-break of spec.md §4.B: the
// first index whose cumulative mass equals or exceeds the drawn u. If every
// excess is zero (numerical collapse), it falls back to a uniform choice
// over all dimensions — the DegenerateSplit condition of spec.md §7.
func chooseDimension(rnd Rand, excess []float64, sum float64) int {
	if sum <= 0 {
		return int(rnd.Uniform() * float64(len(excess)))
	}

	u := rnd.Uniform() * sum

	var cum float64
	for d, v := range excess {
		cum += v
		if cum >= u {
			return d
		}
	}

	return len(excess) - 1
}

// splitValueFor samples split_value in the gap between x[d] and the nearer
// face of node's box on dimension d, and reports which side x falls on.
//
// Precondition: x[d] is outside [node.BoundLower[d], node.BoundUpper[d]]
// (guaranteed whenever excess[d] > 0 drove the dimension choice).
func splitValueFor(rnd Rand, node *Node, x []float64, d int) (value float64, xIsUpper bool) {
	var lo, hi float64

	if x[d] > node.BoundUpper[d] {
		lo, hi = node.BoundUpper[d], x[d]
		xIsUpper = true
	} else {
		lo, hi = x[d], node.BoundLower[d]
		xIsUpper = false
	}

	value = rnd.Uniform()*(hi-lo) + lo

	return value, xIsUpper
}
