package mcnn_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/flier/cmf/pkg/mcnn"
)

func TestClassifier(t *testing.T) {
	Convey("Given a fresh Classifier", t, func() {
		c := mcnn.New(2, 16, 3)

		Convey("Predict before any training should report EmptyClass", func() {
			So(c.Predict([]float64{0, 0}), ShouldEqual, mcnn.EmptyClass)
		})

		Convey("After training on two well-separated clusters", func() {
			for i := 0; i < 30; i++ {
				c.Train([]float64{0, 0}, 0)
				c.Train([]float64{100, 100}, 1)
			}

			Convey("It should recover the label of each cluster", func() {
				So(c.Predict([]float64{1, -1}), ShouldEqual, 0)
				So(c.Predict([]float64{99, 101}), ShouldEqual, 1)
			})
		})
	})
}
