package cmf_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/flier/cmf/pkg/cmf"
	"github.com/flier/cmf/pkg/cmf/xrand"
)

func newTestForest(t *testing.T, extend cmf.ExtendType) *cmf.Forest {
	t.Helper()

	f, err := cmf.NewForest(cmf.Config{
		FeatureCount:  2,
		LabelCount:    2,
		CapacityBytes: 1 << 16,
		TreeCount:     5,
		Lifetime:      10,
		ExtendType:    extend,
		Rand:          xrand.NewSeeded(1, 2),
	})
	if err != nil {
		t.Fatalf("NewForest: %v", err)
	}

	return f
}

func TestNewForest(t *testing.T) {
	Convey("Given a Config missing required fields", t, func() {
		_, err := cmf.NewForest(cmf.Config{})

		Convey("NewForest should reject it", func() {
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a valid Config", t, func() {
		f := newTestForest(t, cmf.ExtendOriginal)

		Convey("It should report the configured tree count", func() {
			So(f.TreeCount(), ShouldEqual, 5)
		})

		Convey("Config should reflect filled-in defaults", func() {
			cfg := f.Config()
			So(cfg.FadingCount, ShouldEqual, 1.0)
			So(cfg.TauFactor, ShouldEqual, 1.0)
			So(cfg.Rand, ShouldNotBeNil)
		})
	})
}

func TestForestTrainPredict(t *testing.T) {
	Convey("Given a forest trained on two well-separated clusters", t, func() {
		f := newTestForest(t, cmf.ExtendOriginal)

		for i := 0; i < 200; i++ {
			f.Train([]float64{0, 0}, 0)
			f.Train([]float64{10, 10}, 1)
		}

		Convey("It should recover the label of each cluster", func() {
			out := make([]float64, 2)

			label := f.Predict([]float64{0.1, -0.1}, out)
			So(label, ShouldEqual, 0)

			label = f.Predict([]float64{9.9, 10.2}, out)
			So(label, ShouldEqual, 1)
		})

		Convey("Predict should leave a positive total mass of at most 1 over every label", func() {
			out := make([]float64, 2)
			f.Predict([]float64{0, 0}, out)

			sum := out[0] + out[1]
			So(sum, ShouldBeGreaterThan, 0)
			So(sum, ShouldBeLessThanOrEqualTo, 1.0+1e-6)
		})
	})

	Convey("Given every extend policy", t, func() {
		for _, policy := range []cmf.ExtendType{
			cmf.ExtendOriginal,
			cmf.ExtendGhost,
			cmf.ExtendPartialUpdate,
			cmf.ExtendCounterNoUpdate,
			cmf.ExtendBarycentre,
		} {
			policy := policy

			Convey(policy.String()+" should absorb a short stream without panicking", func() {
				f := newTestForest(t, policy)

				for i := 0; i < 50; i++ {
					f.Train([]float64{float64(i % 7), float64(i % 3)}, i%2)
				}

				out := make([]float64, 2)
				label := f.Predict([]float64{1, 1}, out)
				So(label, ShouldBeBetween, -1, 2)
			})
		}
	})
}

func TestForestRespectsArenaBudget(t *testing.T) {
	Convey("Given a forest with a tiny arena", t, func() {
		f, err := cmf.NewForest(cmf.Config{
			FeatureCount:  2,
			LabelCount:    2,
			CapacityBytes: 512,
			TreeCount:     1,
			Lifetime:      1000,
			ExtendType:    cmf.ExtendOriginal,
			Rand:          xrand.NewSeeded(3, 4),
		})
		So(err, ShouldBeNil)

		Convey("Training many points should never corrupt the forest even once the arena fills", func() {
			ok := true
			for i := 0; i < 5000; i++ {
				if !f.Train([]float64{float64(i % 11), float64(i % 13)}, i%2) {
					ok = false
				}
			}

			// The arena is small enough that OutOfArena is expected at least
			// once; what matters is that Predict still returns a well-formed
			// distribution afterwards.
			_ = ok

			out := make([]float64, 2)
			label := f.Predict([]float64{1, 1}, out)
			So(label, ShouldBeBetween, -1, 2)
			So(out[0]+out[1], ShouldBeGreaterThan, 0)
			So(out[0]+out[1], ShouldBeLessThanOrEqualTo, 1.0+1e-6)
		})
	})
}
