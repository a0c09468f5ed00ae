package hoeffding_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/flier/cmf/pkg/hoeffding"
)

func TestTree(t *testing.T) {
	Convey("Given a Hoeffding Tree over two 4-bin features", t, func() {
		tree := hoeffding.New([]int{4, 4}, 2, 0.05)

		Convey("A fresh tree should have exactly one (root) node", func() {
			So(tree.NodeCount(), ShouldEqual, 1)
		})

		Convey("After training on two well-separated clusters", func() {
			for i := 0; i < 300; i++ {
				tree.Train([]float64{0, 0}, 0)
				tree.Train([]float64{10, 10}, 1)
			}

			Convey("It should recover the label of each cluster", func() {
				So(tree.Predict([]float64{0.2, -0.1}, nil), ShouldEqual, 0)
				So(tree.Predict([]float64{9.8, 10.1}, nil), ShouldEqual, 1)
			})

			Convey("Enough training points should eventually force at least one split", func() {
				So(tree.NodeCount(), ShouldBeGreaterThan, 1)
			})

			Convey("Predict should fill the score slice when given one", func() {
				scores := make([]float64, 2)
				tree.Predict([]float64{0, 0}, scores)
				So(scores[0]+scores[1], ShouldAlmostEqual, 1.0, 1e-6)
			})
		})
	})
}
