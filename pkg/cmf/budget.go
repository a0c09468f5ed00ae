package cmf

// pauseExpansion implements the predicate pause_expansion(tree, node) of
// spec.md §4.I, consulted once per descent step by the extend engine.
func pauseExpansion(cfg *Config, arena *Arena, treeID, nodeID int) bool {
	tree := arena.Tree(treeID)

	switch cfg.TreeManagement {
	case Cobble, OptimisticCobble:
		remainingDepth := arena.subtreeDepth(nodeID)
		distanceToRoot := arena.distanceToRoot(nodeID)
		paused := remainingDepth+distanceToRoot+1 > tree.NodeCountLimit

		if cfg.TreeManagement == OptimisticCobble && paused {
			// Advisory: a global cushion of >=2 free nodes overrides the
			// per-tree limit.
			return arena.Available() < 2
		}

		return paused
	case Phoenix:
		return false
	default: // Robur, PausingPhoenix
		return tree.IsPaused(cfg.TreeManagement)
	}
}

// subtreeDepth returns the maximum depth of the subtree rooted at nodeID (0
// for a leaf, -1 for None), mirroring the source's node_depth.
func (a *Arena) subtreeDepth(nodeID int) int {
	if nodeID == None {
		return -1
	}

	node := &a.nodes[nodeID]
	if node.IsLeaf() {
		return 0
	}

	left := a.subtreeDepth(node.ChildLeft)
	right := a.subtreeDepth(node.ChildRight)

	if left > right {
		return left + 1
	}

	return right + 1
}

// distanceToRoot counts the number of ancestors between nodeID and its
// tree's root, mirroring the source's unravel.
func (a *Arena) distanceToRoot(nodeID int) int {
	distance := 0

	for a.nodes[nodeID].Parent != None {
		nodeID = a.nodes[nodeID].Parent
		distance++
	}

	return distance
}

// roburLimit adjusts a requested per-tree node limit to the nearest odd
// integer, preserving the invariant that a Robur-managed tree always has an
// odd node count (every internal node introduces exactly one sibling leaf).
func roburLimit(limit int) int {
	if limit%2 == 0 {
		return limit + 1
	}

	return limit
}

// defaultNodeLimit derives a per-tree node limit from the arena's current
// capacity and the tree count, used when Config.SizeLimit is -1.
func defaultNodeLimit(arena *Arena, treeCount int) int {
	if treeCount <= 0 {
		return arena.NodeCapacity()
	}

	return arena.NodeCapacity() / treeCount
}
