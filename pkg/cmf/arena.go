package cmf

import "github.com/flier/cmf/internal/debug"

// Arena is the fixed-capacity pool of Node records plus the tail region of
// TreeBase records described in spec.md §3/§4.A.
//
// The source models the arena as a single byte buffer, with nodes packed
// from the low end and tree bases packed from the high end, because every
// record there is placement-constructed over raw memory. Node is
// homogeneously typed in this port, so the byte buffer is adapted into a
// typed slice pool: Arena still enforces the same CAP-derived accounting
// (node_count*sizeof(Node) + tree_count*sizeof(TreeBase) <= CAP) via
// nodeByteSize/treeBaseByteSize estimates, without resorting to unsafe
// pointer casts the way the teacher's pkg/arena does for its pointer-free
// byte arena. See DESIGN.md for the full rationale.
type Arena struct {
	featureCount, labelCount int
	capacityBytes            int

	nodes     []Node
	available int
	cursor    int

	trees []TreeBase
}

// NewArena constructs an Arena sized for the given byte budget, feature and
// label counts, with an initial tail reserved for treeCount TreeBase
// records.
func NewArena(capacityBytes, featureCount, labelCount, treeCount int) *Arena {
	a := &Arena{
		featureCount:  featureCount,
		labelCount:    labelCount,
		capacityBytes: capacityBytes,
	}

	cap := a.capacityFor(treeCount)
	a.nodes = make([]Node, cap)

	for i := range a.nodes {
		a.nodes[i] = newNode(featureCount, labelCount)
	}

	a.available = cap
	a.trees = make([]TreeBase, 0, treeCount)

	return a
}

// nodeByteSize estimates the packed size of one Node record: the fixed
// scalar fields plus two float64 bounds arrays and one int counters array.
func (a *Arena) nodeByteSize() int {
	const fixed = 8 * 8 // SplitDimension, Parent, ChildLeft, ChildRight, ForcedExtend (5 ints) + SplitValue, Tau, FadingScore (3 floats)
	return fixed + a.featureCount*16 + a.labelCount*8
}

// treeBaseByteSize estimates the packed size of one TreeBase record.
func (a *Arena) treeBaseByteSize() int {
	const fixed = 3*8 + 2*8 + 16 // Root, NodeCountLimit, Size + SumContribution, CountContribution + Statistics interface word pair
	return fixed
}

// capacityFor returns the node capacity available when treeCount TreeBase
// records occupy the tail.
func (a *Arena) capacityFor(treeCount int) int {
	budget := a.capacityBytes - treeCount*a.treeBaseByteSize()
	if budget <= 0 {
		return 0
	}

	return budget / a.nodeByteSize()
}

// NodeCapacity returns the current node capacity (NODE_CAPACITY of §3).
func (a *Arena) NodeCapacity() int { return len(a.nodes) }

// Available returns the number of free node slots.
func (a *Arena) Available() int { return a.available }

// TreeCount returns the number of TreeBase records currently packed in the
// tail.
func (a *Arena) TreeCount() int { return len(a.trees) }

// Node returns a pointer to the node at idx. Callers must not retain it
// across an Allocate/Release/Relocate that could invalidate the backing
// slice.
func (a *Arena) Node(idx int) *Node { return &a.nodes[idx] }

// Tree returns a pointer to the tree base at idx.
func (a *Arena) Tree(idx int) *TreeBase { return &a.trees[idx] }

// Allocate reserves a free node slot via a cursor-based round-robin scan, so
// allocation is amortised O(1) under typical fragmentation. It returns
// (None, false) when no node is available.
//
// The returned node has Tau set to 0 (the negative -> non-negative
// transition of §3's lifecycle), marking it occupied; callers must set the
// real Tau before returning control to the walker.
func (a *Arena) Allocate() (int, bool) {
	if a.available == 0 {
		return None, false
	}

	n := len(a.nodes)
	for i := 0; i < n; i++ {
		idx := (a.cursor + i) % n
		if a.nodes[idx].Available() {
			a.cursor = (idx + 1) % n
			a.nodes[idx].Tau = 0
			a.available--

			debug.Log(nil, "allocate", "node=%d available=%d", idx, a.available)

			return idx, true
		}
	}

	return None, false
}

// Release resets the node's fields and returns the slot to the pool.
func (a *Arena) Release(idx int) {
	a.nodes[idx].reset()
	a.available++

	debug.Log(nil, "release", "node=%d available=%d", idx, a.available)
}

// Relocate moves the record at old into new, rewriting the parent's child
// pointer (or the owning tree's root, if old was parentless) and both
// children's parent pointers. The pointer graph is unchanged afterwards: no
// tree topology is altered, only the storage index of one node.
//
// Precondition: new is available and old is occupied.
func (a *Arena) Relocate(old, new int) {
	src := &a.nodes[old]
	dst := &a.nodes[new]

	dst.SplitDimension = src.SplitDimension
	dst.SplitValue = src.SplitValue
	copy(dst.BoundLower, src.BoundLower)
	copy(dst.BoundUpper, src.BoundUpper)
	dst.Parent = src.Parent
	dst.ChildLeft = src.ChildLeft
	dst.ChildRight = src.ChildRight
	dst.Tau = src.Tau
	copy(dst.Counters, src.Counters)
	dst.ForcedExtend = src.ForcedExtend
	dst.FadingScore = src.FadingScore

	if src.Parent != None {
		p := &a.nodes[src.Parent]
		switch old {
		case p.ChildLeft:
			p.ChildLeft = new
		case p.ChildRight:
			p.ChildRight = new
		}
	} else {
		for i := range a.trees {
			if a.trees[i].Root == old {
				a.trees[i].Root = new
				break
			}
		}
	}

	if dst.ChildLeft != None {
		a.nodes[dst.ChildLeft].Parent = new
	}
	if dst.ChildRight != None {
		a.nodes[dst.ChildRight].Parent = new
	}

	src.reset()

	debug.Log(nil, "relocate", "old=%d new=%d", old, new)
}

// growTail reserves k more tree-base slots at the tail, relocating any
// occupied nodes whose index falls in the overlap with the shrunken node
// region. It fails if 2 times the number of relocations needed exceeds the
// arena's total available-slot count, matching the source's tree_add
// feasibility check.
func (a *Arena) growTail(k int) bool {
	newCap := a.capacityFor(len(a.trees) + k)

	if newCap >= len(a.nodes) {
		a.growNodes(newCap)
		return true
	}

	occupied := 0
	for i := newCap; i < len(a.nodes); i++ {
		if !a.nodes[i].Available() {
			occupied++
		}
	}

	if 2*occupied > a.available {
		return false
	}

	for i := newCap; i < len(a.nodes); i++ {
		if !a.nodes[i].Available() {
			dst := a.findFreeBelow(newCap)
			a.Relocate(i, dst)
		}
		// Either a free slot is cut off, or a free slot below newCap now
		// holds the relocated node: one free slot fewer either way.
		a.available--
	}

	a.nodes = a.nodes[:newCap]

	debug.Log(nil, "grow_tail", "k=%d new_capacity=%d", k, newCap)

	return true
}

// growNodes extends the node slice up to newCap, initialising the new slots
// as available. Used when shrinking the tail (tree-delete) frees up room
// for more nodes.
func (a *Arena) growNodes(newCap int) {
	for len(a.nodes) < newCap {
		a.nodes = append(a.nodes, newNode(a.featureCount, a.labelCount))
		a.available++
	}
}

func (a *Arena) findFreeBelow(limit int) int {
	for i := 0; i < limit; i++ {
		if a.nodes[i].Available() {
			return i
		}
	}

	return None
}

// subtreeSize counts the nodes reachable from root, including root itself.
func (a *Arena) subtreeSize(root int) int {
	if root == None {
		return 0
	}

	node := &a.nodes[root]
	return 1 + a.subtreeSize(node.ChildLeft) + a.subtreeSize(node.ChildRight)
}

// releaseSubtree releases every node reachable from root, used by
// tree-delete and chop.
func (a *Arena) releaseSubtree(root int) {
	if root == None {
		return
	}

	left, right := a.nodes[root].ChildLeft, a.nodes[root].ChildRight
	a.releaseSubtree(left)
	a.releaseSubtree(right)
	a.Release(root)
}
