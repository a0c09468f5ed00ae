package cmf

import "math"

// predictTree walks a single tree root-to-leaf, accumulating the smoothed
// posterior mass of spec.md §4.F and leaving the result in out.
//
// depthLimit < 0 means no limit; otherwise the walk stops and treats the
// node at that depth as if it were a leaf. Forest.Predict always passes -1.
func (f *Forest) predictTree(treeID int, x []float64, out []float64, depthLimit int) {
	labelCount := f.cfg.LabelCount

	for l := 0; l < labelCount; l++ {
		out[l] = f.cfg.BaseMeasure
	}

	tree := f.arena.Tree(treeID)
	if tree.IsEmpty() {
		return
	}

	nodeID := tree.Root
	depth := 0
	parentTau := 0.0
	probNotSeparatedYet := 1.0

	smoothed := make([]float64, labelCount)
	c := make([]float64, labelCount)

	for nodeID != None {
		node := f.arena.Node(nodeID)
		deltaTau := node.Tau - parentTau

		var eta float64
		for d := 0; d < f.cfg.FeatureCount; d++ {
			if v := x[d] - node.BoundUpper[d]; v > 0 {
				eta += v
			}
			if v := node.BoundLower[d] - x[d]; v > 0 {
				eta += v
			}
		}

		probBranch := 1 - math.Exp(-deltaTau*eta)

		if probBranch > 0 {
			gamma := f.cfg.DiscountFactor
			newNodeDiscount := (eta / (eta + gamma)) *
				(-math.Expm1(-(eta+gamma)*deltaTau) / -math.Expm1(-eta*deltaTau))

			var cSum float64
			for l := 0; l < labelCount; l++ {
				c[l] = float64(min1(node.Counters[l]))
				cSum += c[l]
			}

			if cSum > 0 {
				for l := 0; l < labelCount; l++ {
					hypotheticalParent := (c[l] - newNodeDiscount*c[l] + cSum*out[l]) / cSum
					smoothed[l] += probNotSeparatedYet * probBranch * hypotheticalParent
				}
			}
		}

		computePosteriorMean(node, out, f.cfg.DiscountFactor, deltaTau)

		tooDeep := depthLimit >= 0 && depth+1 >= depthLimit
		if tooDeep || node.IsLeaf() {
			for l := 0; l < labelCount; l++ {
				out[l] = smoothed[l] + probNotSeparatedYet*(1-probBranch)*out[l]
			}

			return
		}

		probNotSeparatedYet *= 1 - probBranch

		if x[node.SplitDimension] <= node.SplitValue {
			nodeID = node.ChildLeft
		} else {
			nodeID = node.ChildRight
		}

		parentTau = node.Tau
		depth++
	}
}

// computePosteriorMean applies the Mondrian posterior recursion of spec.md
// §4.F step 5 in place: means starts as the parent's posterior mean and is
// mutated into this node's.
//
// node_discount follows spec.md's literal formula, exp(-gamma*delta_tau).
// (The original C++ source computes exp(+gamma*delta_tau) here, which
// would make the discount grow rather than decay with depth; DESIGN.md
// records this as a deliberate deviation in favour of the spec's explicit,
// decaying-discount formula.)
func computePosteriorMean(node *Node, means []float64, gamma, deltaTau float64) {
	nodeDiscount := math.Exp(-gamma * deltaTau)

	var sumCounters, sumTab float64
	tab := make([]float64, len(node.Counters))

	for l, c := range node.Counters {
		sumCounters += float64(c)
		tab[l] = float64(min1(c))
		sumTab += tab[l]
	}

	if sumCounters == 0 {
		return
	}

	for l, c := range node.Counters {
		if c > 0 {
			a := float64(c) - nodeDiscount*tab[l]
			b := nodeDiscount * sumTab * means[l]
			means[l] = a/sumCounters + b/sumCounters
		}
	}
}
