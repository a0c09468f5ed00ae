package cmf

import "github.com/flier/cmf/internal/debug"

// FadeCounts decays every leaf's FadingScore by Config.NodeFadeFactor,
// the forgetting step spec.md §4.H runs once per maintenance cycle ahead
// of Trim, so a leaf that stops receiving points gradually becomes the
// cheapest trim victim.
func (f *Forest) FadeCounts() {
	for i := range f.arena.nodes {
		node := &f.arena.nodes[i]
		if !node.Available() && node.IsLeaf() {
			node.FadingScore *= f.cfg.NodeFadeFactor
		}
	}
}

// Trim picks a leaf across treeID's whole tree per Config.TrimType and
// applies cut_block to it: the leaf's sibling is promoted into the leaf's
// former parent's slot, and both the leaf and its former parent are
// released. The sibling may itself be an arbitrary internal subtree, which
// is re-rooted untouched; Trim never merges or inspects its contents.
//
// It is a no-op, returning false, when the tree has no leaf with a parent
// to trim (a single-node or empty tree) or when TrimType is TrimNone.
func (f *Forest) Trim(treeID int) bool {
	if f.cfg.TrimType == TrimNone {
		return false
	}

	tree := f.arena.Tree(treeID)
	if tree.IsEmpty() {
		return false
	}

	victim := f.chooseTrimVictim(treeID)
	if victim == None {
		return false
	}

	return f.cutBlock(treeID, victim)
}

// chooseTrimVictim picks a leaf to trim, per Config.TrimType: TrimRandom
// picks uniformly among candidates (reservoir sampling across the tree's
// leaves), TrimFading picks the candidate with the lowest FadingScore, and
// TrimCount picks the one with the lowest total training count. The root
// leaf of a single-node tree has no parent to replace it and is never a
// candidate. A candidate whose own mass exceeds Config.MaximumTrimSize of
// the tree's total leaf mass is skipped, to avoid trimming a leaf that
// still carries a disproportionate share of the tree's knowledge.
func (f *Forest) chooseTrimVictim(treeID int) int {
	tree := f.arena.Tree(treeID)

	var leaves []int
	var totalMass float64

	var walk func(id int)
	walk = func(id int) {
		if id == None {
			return
		}
		node := f.arena.Node(id)
		if node.IsLeaf() {
			if node.HasParent() {
				leaves = append(leaves, id)
			}
			for _, c := range node.Counters {
				totalMass += float64(c)
			}
			return
		}

		walk(node.ChildLeft)
		walk(node.ChildRight)
	}
	walk(tree.Root)

	if len(leaves) == 0 {
		return None
	}

	mass := func(id int) float64 {
		var m float64
		for _, c := range f.arena.Node(id).Counters {
			m += float64(c)
		}
		return m
	}

	candidates := leaves[:0]
	for _, id := range leaves {
		if totalMass == 0 || mass(id)/totalMass <= f.cfg.MaximumTrimSize {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return None
	}

	switch f.cfg.TrimType {
	case TrimFading:
		best, bestScore := candidates[0], f.arena.Node(candidates[0]).FadingScore
		for _, id := range candidates[1:] {
			if s := f.arena.Node(id).FadingScore; s < bestScore {
				best, bestScore = id, s
			}
		}
		return best
	case TrimCount:
		best, bestMass := candidates[0], mass(candidates[0])
		for _, id := range candidates[1:] {
			if m := mass(id); m < bestMass {
				best, bestMass = id, m
			}
		}
		return best
	default: // TrimRandom
		i := int(f.cfg.Rand.Uniform() * float64(len(candidates)))
		if i >= len(candidates) {
			i = len(candidates) - 1
		}
		return candidates[i]
	}
}

// cutBlock implements the source's cut_block: leafID's sibling takes over
// leafID's former parent's slot in the grandparent (or becomes the tree's
// new root), and leafID plus its former parent are released, freeing two
// slots. The sibling subtree, whatever shape it has, is left untouched.
func (f *Forest) cutBlock(treeID int, leafID int) bool {
	leaf := f.arena.Node(leafID)
	parentID := leaf.Parent
	parent := f.arena.Node(parentID)

	sibling := parent.ChildLeft
	if sibling == leafID {
		sibling = parent.ChildRight
	}

	grandparent := parent.Parent
	if grandparent == None {
		f.arena.Tree(treeID).Root = sibling
		f.arena.Node(sibling).Parent = None
	} else {
		gp := f.arena.Node(grandparent)
		if gp.ChildLeft == parentID {
			gp.ChildLeft = sibling
		} else {
			gp.ChildRight = sibling
		}
		f.arena.Node(sibling).Parent = grandparent
	}

	f.arena.Release(leafID)
	f.arena.Release(parentID)

	tree := f.arena.Tree(treeID)
	tree.Size -= 2

	debug.Log(nil, "trim", "tree=%d leaf=%d parent=%d", treeID, leafID, parentID)

	return true
}

// SplitLeaf forces a single deterministic split of the leaf at nodeID in
// treeID's tree, pivoted at the leaf's own box centre along its widest
// dimension, distinct from the Mondrian-time-driven splits the extend
// engine performs during ordinary training. It refuses (returns false) when
// fewer than two arena slots are free, nodeID is not a leaf, or the leaf's
// box has zero width on every dimension. The forest's training and
// maintenance paths do not call it.
func (f *Forest) SplitLeaf(treeID, nodeID int) bool {
	if f.arena.Available() < 2 {
		return false
	}

	node := f.arena.Node(nodeID)
	if !node.IsLeaf() {
		return false
	}

	dim := 0
	width := node.BoundUpper[0] - node.BoundLower[0]
	for d := 1; d < len(node.BoundLower); d++ {
		if w := node.BoundUpper[d] - node.BoundLower[d]; w > width {
			width, dim = w, d
		}
	}
	if width == 0 {
		return false
	}

	splitValue := (node.BoundLower[dim] + node.BoundUpper[dim]) / 2
	parentTau := 0.0
	if node.Parent != None {
		parentTau = f.arena.Node(node.Parent).Tau
	}
	tau := parentTau + (node.Tau-parentTau)/2

	newParent, _ := f.arena.Allocate()
	newLeft, _ := f.arena.Allocate()

	parent := f.arena.Node(newParent)
	parent.SplitDimension = dim
	parent.SplitValue = splitValue
	parent.Tau = tau
	copy(parent.BoundLower, node.BoundLower)
	copy(parent.BoundUpper, node.BoundUpper)
	copy(parent.Counters, node.Counters)

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

	left := f.arena.Node(newLeft)
	left.Tau = node.Tau
	left.Parent = newParent
	copy(left.BoundLower, node.BoundLower)
	left.BoundUpper[dim] = splitValue
	for d := range left.BoundUpper {
		if d != dim {
			left.BoundUpper[d] = node.BoundUpper[d]
		}
	}

	node.Parent = newParent
	node.BoundLower[dim] = splitValue

	parent.ChildLeft = newLeft
	parent.ChildRight = nodeID

	tree := f.arena.Tree(treeID)
	tree.Size += 2

	return true
}

// Chop releases nodeID's entire subtree and turns nodeID itself back into
// a leaf, discarding whatever split it held. Unlike Trim, which only ever
// removes a single leaf and its parent via cutBlock, it removes a whole
// branch; the forest's periodic maintenance cycle does not call it.
func (f *Forest) Chop(treeID, nodeID int) bool {
	node := f.arena.Node(nodeID)
	if node.IsLeaf() {
		return false
	}

	left, right := node.ChildLeft, node.ChildRight

	removed := f.arena.subtreeSize(left) + f.arena.subtreeSize(right)
	f.arena.releaseSubtree(left)
	f.arena.releaseSubtree(right)
	node.chop()

	f.arena.Tree(treeID).Size -= removed

	debug.Log(nil, "chop", "tree=%d node=%d", treeID, nodeID)

	return true
}

// AddTree grows the forest by one tree, reserving its TreeBase record via
// the arena's growTail and returning its index. It fails if twice the
// number of occupied nodes that growing the tail would relocate exceeds
// the arena's free slot count.
func (f *Forest) AddTree() (int, bool) {
	if !f.arena.growTail(1) {
		return None, false
	}

	nodeLimit := f.cfg.SizeLimit
	if nodeLimit <= 0 {
		nodeLimit = defaultNodeLimit(f.arena, f.arena.TreeCount()+1)
	}
	if f.cfg.TreeManagement == Robur || f.cfg.TreeManagement == PausingPhoenix {
		nodeLimit = roburLimit(nodeLimit)
	}

	f.arena.trees = append(f.arena.trees, newTreeBase(nodeLimit, f.cfg.Statistics()))

	return len(f.arena.trees) - 1, true
}

// DeleteTree releases every node owned by treeID's tree and removes its
// TreeBase record, shrinking the tail via growTail. It refuses when
// Config.DontDelete forbids tree deletion or treeID is the forest's last
// remaining tree.
func (f *Forest) DeleteTree(treeID int) bool {
	if f.cfg.DontDelete == DontDelete {
		return false
	}
	if f.arena.TreeCount() <= 1 {
		return false
	}

	tree := f.arena.Tree(treeID)
	f.arena.releaseSubtree(tree.Root)

	f.arena.trees = append(f.arena.trees[:treeID], f.arena.trees[treeID+1:]...)
	f.arena.growTail(0)

	return true
}
