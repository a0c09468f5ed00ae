package cmf

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCentroidUpdate(t *testing.T) {
	Convey("Given a fresh centroid over two features", t, func() {
		c := newCentroid(2)

		Convey("A single update should move the mean exactly to that point", func() {
			c.update([]float64{4, 8}, 1.0)
			So(c.mean, ShouldResemble, []float64{4.0, 8.0})
			So(c.weight, ShouldEqual, 1.0)
		})

		Convey("Repeated updates on the same point should keep the mean stable", func() {
			for i := 0; i < 5; i++ {
				c.update([]float64{3, 3}, 1.0)
			}
			So(c.mean[0], ShouldAlmostEqual, 3.0, 1e-9)
			So(c.mean[1], ShouldAlmostEqual, 3.0, 1e-9)
		})
	})
}

func TestForestPivot(t *testing.T) {
	Convey("Given a forest configured with SplitHelperAvg", t, func() {
		f := &Forest{
			cfg:      &Config{FeatureCount: 2, SplitHelper: SplitHelperAvg},
			centroid: newCentroid(2),
		}
		f.centroid.mean = []float64{1, 2}

		Convey("pivot should return the running mean directly", func() {
			out := f.pivot(&Node{})
			So(out, ShouldResemble, []float64{1.0, 2.0})
		})
	})

	Convey("Given a forest configured with SplitHelperWeighted", t, func() {
		f := &Forest{
			cfg:      &Config{FeatureCount: 1, SplitHelper: SplitHelperWeighted},
			centroid: newCentroid(1),
		}
		f.centroid.mean = []float64{0}
		f.centroid.weight = 0

		node := &Node{BoundLower: []float64{8}, BoundUpper: []float64{12}, Counters: []int{1000}}

		Convey("A heavily-visited node should trust its own box centre over the global mean", func() {
			out := f.pivot(node)
			So(out[0], ShouldBeGreaterThan, 9.0)
		})
	})
}

func TestIntroduceSplitAt(t *testing.T) {
	Convey("Given a forest with a single-leaf tree", t, func() {
		a := NewArena(1<<14, 1, 2, 1)
		leaf, _ := a.Allocate()
		a.Node(leaf).BoundLower[0] = 0
		a.Node(leaf).BoundUpper[0] = 10
		a.Node(leaf).Tau = 5

		a.trees = append(a.trees[:0], newTreeBase(10, nil))
		a.trees[0].Root = leaf
		a.trees[0].Size = 1

		f := &Forest{arena: a, cfg: &Config{FeatureCount: 1, Lifetime: 20}}

		Convey("introduceSplitAt should insert a new parent above the leaf and a sibling holding x", func() {
			parent, sibling := f.introduceSplitAt(0, leaf, []float64{15}, 0, 0, 12, true, 2.5, nil)

			So(a.Tree(0).Root, ShouldEqual, parent)
			So(a.Node(parent).ChildLeft, ShouldEqual, leaf)
			So(a.Node(parent).ChildRight, ShouldEqual, sibling)
			So(a.Node(leaf).Parent, ShouldEqual, parent)
			So(a.Node(sibling).Parent, ShouldEqual, parent)
			So(a.Node(parent).SplitValue, ShouldEqual, 12)
			So(a.Node(parent).Tau, ShouldEqual, 2.5)
			So(a.Node(sibling).Counters[0], ShouldEqual, 1)
			So(a.Tree(0).Size, ShouldEqual, 3)
		})
	})
}

func TestSplitNode(t *testing.T) {
	Convey("Given a forest with a leaf and FESplitEven distribution", t, func() {
		a := NewArena(1<<14, 1, 2, 1)
		leaf, _ := a.Allocate()
		a.Node(leaf).BoundLower[0] = 0
		a.Node(leaf).BoundUpper[0] = 10
		a.Node(leaf).Tau = 5
		a.Node(leaf).ForcedExtend = 4
		a.Node(leaf).Counters[0] = 2

		a.trees = append(a.trees[:0], newTreeBase(10, nil))
		a.trees[0].Root = leaf
		a.trees[0].Size = 1

		f := &Forest{arena: a, cfg: &Config{FeatureCount: 1, Lifetime: 20, FEDistribution: FESplitEven, Rand: fixedRand{u: 0.5}}}
		d := splitDecision{parentTau: 0, draw: splitDraw{e: 1}}

		Convey("splitNode should pivot on the leaf's own box geometry, splitting it in two", func() {
			ok := f.splitNode(0, leaf, []float64{5}, 1, d)
			So(ok, ShouldBeTrue)

			parent := a.Node(leaf).Parent
			So(parent, ShouldNotEqual, None)
			So(a.Node(parent).Tau, ShouldEqual, 1)

			sibling := a.Node(parent).ChildRight
			if sibling == leaf {
				sibling = a.Node(parent).ChildLeft
			}

			So(a.Node(sibling).Parent, ShouldEqual, parent)
			So(a.Node(leaf).ForcedExtend+a.Node(sibling).ForcedExtend, ShouldEqual, 4)
			So(a.Tree(0).Size, ShouldEqual, 3)
		})

		Convey("splitNode should propagate x down to whichever side it lands in and bump that leaf", func() {
			f.splitNode(0, leaf, []float64{9}, 1, d)

			parent := a.Tree(0).Root
			child := a.Node(parent).ChildRight
			if 9 > a.Node(parent).SplitValue {
				So(a.Node(child).Counters[1], ShouldEqual, 1)
			} else {
				So(a.Node(a.Node(parent).ChildLeft).Counters[1], ShouldEqual, 1)
			}
		})
	})

	Convey("Given a forest with an internal node whose two children lie on opposite sides of the cut", t, func() {
		a := NewArena(1<<14, 1, 2, 1)

		node, _ := a.Allocate()
		left, _ := a.Allocate()
		right, _ := a.Allocate()

		a.Node(node).BoundLower[0] = 0
		a.Node(node).BoundUpper[0] = 10
		a.Node(node).SplitDimension = 0
		a.Node(node).SplitValue = 5
		a.Node(node).ChildLeft = left
		a.Node(node).ChildRight = right
		a.Node(node).Tau = 8

		a.Node(left).Parent = node
		a.Node(left).BoundLower[0] = 0
		a.Node(left).BoundUpper[0] = 5
		a.Node(left).Counters[0] = 10

		a.Node(right).Parent = node
		a.Node(right).BoundLower[0] = 5
		a.Node(right).BoundUpper[0] = 10
		a.Node(right).Counters[1] = 10

		a.trees = append(a.trees[:0], newTreeBase(10, nil))
		a.trees[0].Root = node
		a.trees[0].Size = 3

		f := &Forest{arena: a, cfg: &Config{FeatureCount: 1, Lifetime: 20, FEDistribution: FEZero, Rand: fixedRand{u: 0.5}}}
		d := splitDecision{parentTau: 0, draw: splitDraw{e: 1}}

		Convey("splitNode should graft one child under the new sibling and keep the other under node, leaving tree size unchanged", func() {
			ok := f.splitNode(0, node, []float64{1}, 0, d)
			So(ok, ShouldBeTrue)
			So(a.Tree(0).Size, ShouldEqual, 3)

			root := a.Tree(0).Root
			So(root, ShouldNotEqual, node)
			So(a.Node(root).ChildLeft, ShouldNotEqual, None)
			So(a.Node(root).ChildRight, ShouldNotEqual, None)

			// node kept the low side (box [0,5], counts on label 0) and
			// sibling was grafted the high side (box [5,10], counts on
			// label 1), per the disagree-branch rule that the low-side
			// child is always kept under node's own id. x=[1] then
			// propagates down to node's leaf and bumps label 0 once more.
			So(a.Node(node).Counters[0], ShouldEqual, 11)
			So(a.Node(root).ChildLeft, ShouldEqual, node)
		})
	})
}
