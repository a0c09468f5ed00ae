package cmf

// centroid is the forest-wide running barycentre the Barycentre extend
// policy pivots deterministic splits on when the Mondrian process itself
// has no room left to draw one (spec.md §4.E, SplitHelper).
//
// It decays by Config.FadingCount on every training point, the same
// forgetting-factor shape the teacher applies to Node.FadingScore, so a
// long-running forest tracks a recent window of the input distribution
// rather than its all-time average.
type centroid struct {
	mean   []float64
	weight float64
}

func newCentroid(featureCount int) *centroid {
	return &centroid{mean: make([]float64, featureCount)}
}

func (c *centroid) update(x []float64, fade float64) {
	c.weight = c.weight*fade + 1

	if c.weight == 0 {
		return
	}

	for i, v := range x {
		c.mean[i] += (v - c.mean[i]) / c.weight
	}
}

// pivot returns the point split_barycentre pivots against: the forest-wide
// running mean under SplitHelperAvg, or a blend of the running mean and the
// node's own box centre under SplitHelperWeighted, weighted by the node's
// training mass so a heavily-visited leaf trusts its own shape more than
// the global average.
func (f *Forest) pivot(node *Node) []float64 {
	if f.cfg.SplitHelper == SplitHelperWeighted {
		mass := 0
		for _, c := range node.Counters {
			mass += c
		}

		out := make([]float64, f.cfg.FeatureCount)
		w := float64(mass) / (float64(mass) + f.centroid.weight + 1)

		for i := range out {
			boxCentre := (node.BoundLower[i] + node.BoundUpper[i]) / 2
			out[i] = w*boxCentre + (1-w)*f.centroid.mean[i]
		}

		return out
	}

	return f.centroid.mean
}

// splitBarycentre attempts a deterministic, non-Mondrian split of node,
// independent of the exponential time draw that the arena had no room to
// honour. It splits on the dimension where x lies furthest outside node's
// box; the pivot plays no part in choosing that dimension and only places
// the cut, at the midpoint of the box face and the pivot when that lies
// between the face and x, else at the midpoint of the face and x. It fails
// (returns false, no mutation) when fewer than two arena slots are free or
// x lies inside the box on every dimension.
func (f *Forest) splitBarycentre(treeID, nodeID int, x []float64, label int) bool {
	node := f.arena.Node(nodeID)
	if f.arena.Available() < 2 {
		return false
	}

	pivot := f.pivot(node)

	dim := None
	var bestExcess float64

	for d := 0; d < f.cfg.FeatureCount; d++ {
		var excess float64
		if x[d] > node.BoundUpper[d] {
			excess = x[d] - node.BoundUpper[d]
		} else if x[d] < node.BoundLower[d] {
			excess = node.BoundLower[d] - x[d]
		} else {
			continue
		}

		if excess > bestExcess {
			bestExcess = excess
			dim = d
		}
	}

	if dim == None {
		return false
	}

	var splitValue float64
	var xIsUpper bool

	if x[dim] > node.BoundUpper[dim] {
		xIsUpper = true
		splitValue = (node.BoundUpper[dim] + pivot[dim]) / 2
		if splitValue < node.BoundUpper[dim] || splitValue > x[dim] {
			splitValue = (node.BoundUpper[dim] + x[dim]) / 2
		}
	} else {
		xIsUpper = false
		splitValue = (node.BoundLower[dim] + pivot[dim]) / 2
		if splitValue > node.BoundLower[dim] || splitValue < x[dim] {
			splitValue = (node.BoundLower[dim] + x[dim]) / 2
		}
	}

	parentTau := 0.0
	if node.Parent != None {
		parentTau = f.arena.Node(node.Parent).Tau
	}

	// The deterministic split still needs a tau strictly between the
	// parent's and this node's, so the Mondrian monotonicity invariant
	// (spec.md §7) holds even though no exponential time was drawn for it:
	// it is placed at the midpoint of the remaining budget.
	tau := parentTau + (node.Tau-parentTau)/2

	f.introduceSplitAt(treeID, nodeID, x, label, dim, splitValue, xIsUpper, tau, nil)

	return true
}

// splitNode is the forced-extend escape hatch (spec.md's split_node): unlike
// the Mondrian-time-driven splits, it pivots on N's own box geometry rather
// than on x: the cut dimension is sampled proportional to box width and the
// cut value drawn uniformly within the box. It then repartitions N's
// existing subtree across the cut: the side holding the larger share of
// training mass stays with N, the other is re-rooted under the new sibling
// S, and N's accumulated ForcedExtend is distributed between the two per
// Config.FEDistribution. Finally x is propagated down to whichever leaf it
// now falls into.
//
// Mass is apportioned across the cut by massAcrossCut, which fractions a
// leaf's counts by how much of its box lies on each side — but a leaf
// straddling the cut is assigned whole to its majority-mass side rather
// than physically divided into two, and the subtree is only ever restructured
// at N itself and N's immediate children (not recursively at every depth):
// either choice would need an unbounded number of extra arena slots as the
// subtree grows, where splitNode is only ever guaranteed the two it
// allocates for P and S. A child further down whose own mass is mixed is
// still classified and moved as a whole unit by its accumulated majority.
func (f *Forest) splitNode(treeID, nodeID int, x []float64, label int, d splitDecision) bool {
	if f.arena.Available() < 2 {
		return false
	}

	node := f.arena.Node(nodeID)
	featureCount := len(node.BoundLower)

	// Step 1: sample d* proportional to N's box width; split_value uniform
	// within the box on d*.
	widths := make([]float64, featureCount)
	var widthSum float64
	for i := 0; i < featureCount; i++ {
		widths[i] = node.BoundUpper[i] - node.BoundLower[i]
		widthSum += widths[i]
	}

	dim := chooseDimension(f.cfg.Rand, widths, widthSum)
	lo, hi := node.BoundLower[dim], node.BoundUpper[dim]
	splitValue := lo
	if hi > lo {
		splitValue = lo + f.cfg.Rand.Uniform()*(hi-lo)
	}

	forced := node.ForcedExtend
	origParent := node.Parent
	origLeft, origRight := node.ChildLeft, node.ChildRight
	wasLeaf := node.IsLeaf()

	// Step 2: allocate P and S; P.tau = parent_tau + E, S.tau = lifetime.
	newParent, _ := f.arena.Allocate()
	sibling, _ := f.arena.Allocate()

	parent := f.arena.Node(newParent)
	parent.SplitDimension = dim
	parent.SplitValue = splitValue
	parent.Tau = d.parentTau + d.draw.e
	copy(parent.BoundLower, node.BoundLower)
	copy(parent.BoundUpper, node.BoundUpper)

	parent.Parent = origParent
	if origParent == None {
		f.arena.Tree(treeID).Root = newParent
	} else {
		gp := f.arena.Node(origParent)
		if gp.ChildLeft == nodeID {
			gp.ChildLeft = newParent
		} else {
			gp.ChildRight = newParent
		}
	}

	sib := f.arena.Node(sibling)
	sib.Parent = newParent
	sib.Tau = f.cfg.Lifetime
	sib.ChildLeft, sib.ChildRight = None, None
	copy(sib.BoundLower, node.BoundLower)
	copy(sib.BoundUpper, node.BoundUpper)

	node.Parent = newParent

	// Step 3: apportion mass across the cut and decide which side stays
	// with N. Allocating P and S grows the tree by 2 slots, unless the
	// children-disagree branch below immediately releases 2 slots (keep's
	// and move's former homes) to balance it back out.
	tree := f.arena.Tree(treeID)
	tree.Size += 2

	var lowID, highID int

	if wasLeaf {
		lowMass, highMass := f.massAcrossCut(nodeID, dim, splitValue)
		if highMass > lowMass {
			lowID, highID = sibling, nodeID
		} else {
			lowID, highID = nodeID, sibling
		}
	} else {
		leftLow, leftHigh := f.massAcrossCut(origLeft, dim, splitValue)
		rightLow, rightHigh := f.massAcrossCut(origRight, dim, splitValue)

		leftGoesHigh := leftHigh > leftLow
		rightGoesHigh := rightHigh > rightLow

		if leftGoesHigh == rightGoesHigh {
			// Both existing children agree on a side: N's whole shape moves
			// there as-is, S starts out as a fresh empty leaf on the other.
			if leftGoesHigh {
				lowID, highID = sibling, nodeID
			} else {
				lowID, highID = nodeID, sibling
			}
		} else {
			// Children disagree, so exactly one is on the high side: dissolve
			// N's existing split, keep the low-side child under N's id and
			// graft the high-side child under S's id.
			var keep, move int
			if leftGoesHigh {
				move, keep = origLeft, origRight
			} else {
				move, keep = origRight, origLeft
			}

			f.adoptSubtreeInto(nodeID, keep)
			f.arena.Node(move).Parent = sibling
			f.adoptSubtreeInto(sibling, move)
			tree.Size -= 2

			lowID, highID = nodeID, sibling
		}
	}

	parent.ChildLeft, parent.ChildRight = lowID, highID
	f.arena.Node(lowID).Parent = newParent
	f.arena.Node(highID).Parent = newParent

	// Step 5: clip every descendant's box on d* to its assigned side.
	f.clipBoxToSide(lowID, dim, true, splitValue)
	f.clipBoxToSide(highID, dim, false, splitValue)

	// Step 4: distribute N's forced_extend between the two new children.
	nodeAfter, sibAfter := f.arena.Node(nodeID), f.arena.Node(sibling)
	switch f.cfg.FEDistribution {
	case FEZero:
		nodeAfter.ForcedExtend, sibAfter.ForcedExtend = 0, 0
	case FESplitEven:
		half := forced / 2
		nodeAfter.ForcedExtend = half
		sibAfter.ForcedExtend = forced - half
	case FEProportional:
		mass := 0
		for _, c := range nodeAfter.Counters {
			mass += c
		}
		if mass > 0 {
			share := forced * nodeAfter.Counters[label] / mass
			sibAfter.ForcedExtend = share
			nodeAfter.ForcedExtend = forced - share
		} else {
			nodeAfter.ForcedExtend, sibAfter.ForcedExtend = forced, 0
		}
	case FEDecrement:
		nodeAfter.ForcedExtend = 0
		if forced > 0 {
			nodeAfter.ForcedExtend = forced - 1
		}
	}

	// Step 6: propagate x down to its destination leaf.
	f.descendAndBumpBarycentre(newParent, x, label)

	return true
}

// massAcrossCut reports the training mass under id that falls below and
// above splitValue on dim, fractioning a straddling leaf's mass by how much
// of its own box lies on each side (spec.md's split_node step 3). It never
// mutates the tree.
func (f *Forest) massAcrossCut(id, dim int, splitValue float64) (lowMass, highMass float64) {
	if id == None {
		return 0, 0
	}

	node := f.arena.Node(id)
	if node.IsLeaf() {
		var mass float64
		for _, c := range node.Counters {
			mass += float64(c)
		}

		upper, lower := node.BoundUpper[dim], node.BoundLower[dim]
		if upper <= splitValue {
			return mass, 0
		}
		if lower >= splitValue {
			return 0, mass
		}

		width := upper - lower
		if width <= 0 {
			return mass, 0
		}
		frac := (splitValue - lower) / width

		return mass * frac, mass * (1 - frac)
	}

	ll, lh := f.massAcrossCut(node.ChildLeft, dim, splitValue)
	rl, rh := f.massAcrossCut(node.ChildRight, dim, splitValue)

	return ll + rl, lh + rh
}

// adoptSubtreeInto copies srcID's shape (split, box, counts, fading score,
// children) into dstID and reparents srcID's direct children to dstID,
// then releases srcID. It is how splitNode moves an existing subtree onto
// a different arena slot without needing a fresh allocation per node moved.
func (f *Forest) adoptSubtreeInto(dstID, srcID int) {
	dst := f.arena.Node(dstID)
	src := f.arena.Node(srcID)

	dst.SplitDimension = src.SplitDimension
	dst.SplitValue = src.SplitValue
	dst.Tau = src.Tau
	copy(dst.BoundLower, src.BoundLower)
	copy(dst.BoundUpper, src.BoundUpper)
	copy(dst.Counters, src.Counters)
	dst.FadingScore = src.FadingScore
	dst.ChildLeft = src.ChildLeft
	dst.ChildRight = src.ChildRight

	if src.ChildLeft != None {
		f.arena.Node(src.ChildLeft).Parent = dstID
	}
	if src.ChildRight != None {
		f.arena.Node(src.ChildRight).Parent = dstID
	}

	f.arena.Release(srcID)
}

// clipBoxToSide recursively clips every descendant's box on dim to not
// cross limit, on the low side (BoundUpper capped) or the high side
// (BoundLower floored), per spec.md's split_node step 5.
func (f *Forest) clipBoxToSide(id, dim int, lowSide bool, limit float64) {
	if id == None {
		return
	}

	node := f.arena.Node(id)
	if lowSide {
		if node.BoundUpper[dim] > limit {
			node.BoundUpper[dim] = limit
		}
	} else {
		if node.BoundLower[dim] < limit {
			node.BoundLower[dim] = limit
		}
	}

	if !node.IsLeaf() {
		f.clipBoxToSide(node.ChildLeft, dim, lowSide, limit)
		f.clipBoxToSide(node.ChildRight, dim, lowSide, limit)
	}
}

// descendAndBumpBarycentre walks from nodeID down to the leaf x falls into,
// enlarging every box along the way, and bumps the destination leaf's
// counter and fading score (spec.md's split_node step 6).
func (f *Forest) descendAndBumpBarycentre(nodeID int, x []float64, label int) {
	node := f.arena.Node(nodeID)
	enlargeBox(node, x)

	if !node.IsLeaf() {
		if x[node.SplitDimension] <= node.SplitValue {
			f.descendAndBumpBarycentre(node.ChildLeft, x, label)
		} else {
			f.descendAndBumpBarycentre(node.ChildRight, x, label)
		}

		return
	}

	node.Counters[label]++
	node.FadingScore++
}

// introduceSplitAt is introduceSplit generalised to accept an explicit
// (dimension, value, tau) rather than drawing one from sampleSplit, so the
// Barycentre policy's deterministic splits share the same graph-surgery
// code path as the four Mondrian-time-driven policies.
func (f *Forest) introduceSplitAt(treeID, nodeID int, x []float64, label int, dim int, splitValue float64, xIsUpper bool, tau float64, initParentCounters func(parent, node *Node)) (newParent, newSibling int) {
	node := f.arena.Node(nodeID)

	newParent, _ = f.arena.Allocate()
	newSibling, _ = f.arena.Allocate()

	parent := f.arena.Node(newParent)
	parent.SplitDimension = dim
	parent.SplitValue = splitValue
	parent.Tau = tau

	for i := range parent.BoundLower {
		parent.BoundLower[i] = min2(x[i], node.BoundLower[i])
		parent.BoundUpper[i] = max2(x[i], node.BoundUpper[i])
	}

	if initParentCounters != nil {
		initParentCounters(parent, node)
	}

	parent.Parent = node.Parent
	if node.Parent == None {
		f.arena.Tree(treeID).Root = newParent
	} else {
		gp := f.arena.Node(node.Parent)
		if gp.ChildLeft == nodeID {
			gp.ChildLeft = newParent
		} else {
			gp.ChildRight = newParent
		}
	}

	node.Parent = newParent
	sib := f.arena.Node(newSibling)
	sib.Parent = newParent

	if xIsUpper {
		parent.ChildRight = newSibling
		parent.ChildLeft = nodeID
	} else {
		parent.ChildLeft = newSibling
		parent.ChildRight = nodeID
	}

	sampleBlock(sib, x, label, f.cfg.Lifetime)

	tree := f.arena.Tree(treeID)
	tree.Size += 2

	return newParent, newSibling
}
