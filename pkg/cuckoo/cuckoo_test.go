package cuckoo_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/dolthub/maphash"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/flier/cmf/pkg/cuckoo"
	"github.com/flier/cmf/pkg/opt"
)

func TestFilter(t *testing.T) {
	Convey("Given a Cuckoo filter over strings", t, func() {
		rnd := rand.New(rand.NewSource(1))
		f := cuckoo.New[string](64, 4, rnd.Float64, opt.None[maphash.Hasher[string]]())

		Convey("Lookup should report false for anything before insertion", func() {
			So(f.Lookup("absent"), ShouldBeFalse)
		})

		Convey("After adding a batch of elements within capacity", func() {
			for i := 0; i < 100; i++ {
				So(f.Add(fmt.Sprintf("item-%d", i)), ShouldBeTrue)
			}

			Convey("Every added element should be found", func() {
				for i := 0; i < 100; i++ {
					So(f.Lookup(fmt.Sprintf("item-%d", i)), ShouldBeTrue)
				}
			})

			Convey("Remove should delete exactly one occurrence", func() {
				So(f.Remove("item-0"), ShouldBeTrue)
				So(f.Lookup("item-0"), ShouldBeFalse)
				So(f.Remove("item-0"), ShouldBeFalse)
			})

			Convey("Clear should empty every bucket", func() {
				f.Clear()
				So(f.Lookup("item-1"), ShouldBeFalse)
			})
		})
	})
}
