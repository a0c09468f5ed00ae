package mlp_test

import (
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/flier/cmf/pkg/mlp"
)

func TestNetwork(t *testing.T) {
	Convey("Given a 2-3-1 network learning XOR", t, func() {
		rnd := rand.New(rand.NewSource(11))
		init := func() float64 { return rnd.Float64()*0.4 - 0.2 }
		n := mlp.New([]int{2, 3, 1}, mlp.Sigmoid, 0.5, init)

		inputs := [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
		targets := [][]float64{{0}, {1}, {1}, {0}}

		for epoch := 0; epoch < 2000; epoch++ {
			for i, in := range inputs {
				n.Train(in, targets[i])
			}
		}

		Convey("It should approximate XOR reasonably well after training", func() {
			for i, in := range inputs {
				out := n.Predict(in)
				So(len(out), ShouldEqual, 1)

				want := targets[i][0]
				So(out[0], ShouldBeBetween, want-0.35, want+0.35)
			}
		})
	})

	Convey("Given a network with weights set directly", t, func() {
		n := mlp.New([]int{2, 1}, mlp.Sigmoid, 0.1, func() float64 { return 0 })
		n.SetWeights(1, []float64{1, 1, 0}) // w0=1, w1=1, bias=0

		Convey("Predict should reflect the injected weights", func() {
			out := n.Predict([]float64{0, 0})
			So(out[0], ShouldAlmostEqual, 0.5, 1e-9)
		})
	})
}
