package cmf

// None is the sentinel index used throughout the arena for "absent":
// an absent parent, an absent child, an absent split dimension, an absent
// tree root.
const None = -1

// Node is a single record in the arena, representing one region of feature
// space. It is modelled as a tagged variant — the tag is derived from
// SplitDimension being None — rather than as two distinct leaf/internal
// record types with dynamic dispatch, per spec.md §9.
//
// All graph edges (Parent, ChildLeft, ChildRight) are arena indices with the
// None sentinel, never pointers, so relocating or releasing a node never
// requires chasing live pointers outside the arena.
type Node struct {
	// SplitDimension is the index of the splitting feature, or None if this
	// node is a leaf.
	SplitDimension int
	// SplitValue is the threshold on SplitDimension; points with
	// features[SplitDimension] <= SplitValue go left.
	SplitValue float64

	// BoundLower and BoundUpper are the smallest axis-aligned box enclosing
	// every training point that reached this node. Both have length
	// FeatureCount.
	BoundLower []float64
	BoundUpper []float64

	Parent, ChildLeft, ChildRight int

	// Tau is the node's lifetime parameter (split time). A negative value
	// means the node is available (not owned by any tree).
	Tau float64

	// Counters holds, at a leaf, the real training counts; at an internal
	// node, the counter maintainer keeps these equal to
	// min(1, left.Counters[l]) + min(1, right.Counters[l]).
	Counters []int

	// ForcedExtend counts points whose arrival would have triggered a split
	// had the arena had a free node.
	ForcedExtend int

	// FadingScore decays by a forgetting factor each training round and is
	// incremented whenever a point lands at this leaf.
	FadingScore float64
}

// newNode allocates the fixed-width slices for a node; called once per slot
// when the arena grows, never per allocate/release cycle.
func newNode(featureCount, labelCount int) Node {
	return Node{
		SplitDimension: None,
		Parent:         None,
		ChildLeft:      None,
		ChildRight:     None,
		Tau:            -1,
		BoundLower:     make([]float64, featureCount),
		BoundUpper:     make([]float64, featureCount),
		Counters:       make([]int, labelCount),
	}
}

// Available reports whether this slot is free for allocation.
func (n *Node) Available() bool { return n.Tau < 0 }

// IsLeaf reports whether this node is a leaf (has no split dimension).
func (n *Node) IsLeaf() bool { return n.SplitDimension == None }

// HasParent reports whether this node has a parent within its tree.
func (n *Node) HasParent() bool { return n.Parent != None }

// reset clears a node back to its just-allocated, empty shape. Bounds and
// counters are zeroed in place so the backing slices are reused rather than
// reallocated.
func (n *Node) reset() {
	n.SplitDimension = None
	n.SplitValue = 0
	n.Parent = None
	n.ChildLeft = None
	n.ChildRight = None
	n.Tau = -1
	n.ForcedExtend = 0
	n.FadingScore = 0

	for i := range n.BoundLower {
		n.BoundLower[i] = 0
		n.BoundUpper[i] = 0
	}
	for i := range n.Counters {
		n.Counters[i] = 0
	}
}

// chop turns this node into a leaf, discarding its split decision; children
// are assumed already released by the caller (the reshape engine's Chop).
func (n *Node) chop() {
	n.ChildLeft, n.ChildRight = None, None
	n.SplitDimension = None
	n.SplitValue = 0
}

// TreeBase is the per-tree record described in spec.md §3.
type TreeBase struct {
	// Root is the index of the tree's root node, or None if the tree is
	// empty.
	Root int
	// NodeCountLimit is the policy-imposed maximum node count (or depth,
	// under SizeType Depth) this tree may own.
	NodeCountLimit int
	// Size is the current node count owned by this tree.
	Size int

	Statistics Statistics

	// SumContribution and CountContribution are fading aggregates of this
	// tree's marginal impact on the ensemble's loss. DeleteTree takes its
	// victim as an explicit treeID and does not consult them.
	SumContribution   float64
	CountContribution float64
}

// IsEmpty reports whether this tree has no root yet.
func (t *TreeBase) IsEmpty() bool { return t.Root == None }

func newTreeBase(nodeLimit int, stats Statistics) TreeBase {
	if stats == nil {
		stats = noopStatistics{}
	}

	return TreeBase{Root: None, NodeCountLimit: nodeLimit, Statistics: stats}
}

func (t *TreeBase) reset(nodeLimit int) {
	t.Root = None
	t.NodeCountLimit = nodeLimit
	t.Size = 0
	t.SumContribution = 0
	t.CountContribution = 0
	if t.Statistics != nil {
		t.Statistics.Reset()
	}
}

// IsPaused reports whether extends into this tree should pause under the
// given management regime, per spec.md §4.I.
func (t *TreeBase) IsPaused(m TreeManagement) bool {
	switch m {
	case Robur, PausingPhoenix:
		return t.Size >= t.NodeCountLimit
	default:
		return false
	}
}

// IsGrown reports whether this tree has reached its limit under Cobble-style
// regimes, where IsPaused is advisory rather than hard.
func (t *TreeBase) IsGrown(m TreeManagement) bool {
	switch m {
	case Cobble, OptimisticCobble:
		return t.Size >= t.NodeCountLimit
	default:
		return t.IsPaused(m)
	}
}

type noopStatistics struct{}

func (noopStatistics) Update(int, int) {}
func (noopStatistics) Score() float64  { return 0 }
func (noopStatistics) Reset()          {}
