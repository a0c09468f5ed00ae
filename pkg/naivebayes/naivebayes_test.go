package naivebayes_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/flier/cmf/pkg/naivebayes"
)

func TestClassifier(t *testing.T) {
	Convey("Given a Classifier over two binary features", t, func() {
		c := naivebayes.New([]int{2, 2}, 1.0)

		Convey("Training out-of-range feature values should be rejected", func() {
			So(c.Train([]int{2, 0}, 0), ShouldBeFalse)
		})

		Convey("After training two clearly separable label patterns", func() {
			for i := 0; i < 50; i++ {
				c.Train([]int{0, 0}, 0)
				c.Train([]int{1, 1}, 1)
			}

			Convey("It should recover each pattern's label", func() {
				So(c.Predict([]int{0, 0}, nil), ShouldEqual, 0)
				So(c.Predict([]int{1, 1}, nil), ShouldEqual, 1)
			})

			Convey("Predict should fill the scores slice when given one", func() {
				scores := make([]float64, 2)
				c.Predict([]int{0, 0}, scores)
				So(scores[0], ShouldBeGreaterThan, scores[1])
			})
		})

		Convey("SetSmoothing/Smoothing should round-trip", func() {
			c.SetSmoothing(2.5)
			So(c.Smoothing(), ShouldEqual, 2.5)
		})
	})
}
