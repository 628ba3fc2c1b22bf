package pointcloud

import (
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func makeTestOrganized() *Organized {
	o := NewOrganized(2, 2)
	o.SetPixel(0, 0, r3.Vector{X: 1, Y: 2, Z: 3}, r2.Point{X: 0.1, Y: 0.2}, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	o.SetPixel(1, 1, r3.Vector{X: -1, Y: 0, Z: 5}, r2.Point{X: 0.9, Y: 0.9}, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	return o
}

func TestOrganizedStartsInvalid(t *testing.T) {
	o := NewOrganized(3, 2)
	test.That(t, o.Width(), test.ShouldEqual, 3)
	test.That(t, o.Height(), test.ShouldEqual, 2)
	test.That(t, o.ValidCount(), test.ShouldEqual, 0)
	v, tc, c, ok := o.At(2, 1)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, math.IsNaN(v.X), test.ShouldBeTrue)
	test.That(t, math.IsNaN(tc.X), test.ShouldBeTrue)
	test.That(t, c, test.ShouldResemble, NeutralColor)
}

func TestOrganizedIterateSkipsInvalid(t *testing.T) {
	o := makeTestOrganized()
	test.That(t, o.Size(), test.ShouldEqual, 2)

	var seen []r3.Vector
	o.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		seen = append(seen, p)
		test.That(t, d.HasColor(), test.ShouldBeTrue)
		return true
	})
	test.That(t, seen, test.ShouldResemble, []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: -1, Y: 0, Z: 5}})

	var batched int
	for batch := 0; batch < 3; batch++ {
		o.Iterate(3, batch, func(p r3.Vector, d Data) bool {
			batched++
			return true
		})
	}
	test.That(t, batched, test.ShouldEqual, 2)

	meta := o.MetaData()
	test.That(t, meta.HasColor, test.ShouldBeTrue)
	test.That(t, meta.MinX, test.ShouldEqual, -1.0)
	test.That(t, meta.MaxZ, test.ShouldEqual, 5.0)
}

func TestCentroid(t *testing.T) {
	c, ok := Centroid(makeTestOrganized())
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, c, test.ShouldResemble, r3.Vector{X: 0, Y: 1, Z: 4})

	_, ok = Centroid(NewOrganized(1, 1))
	test.That(t, ok, test.ShouldBeFalse)
}

func TestList(t *testing.T) {
	pc := NewList(0)
	test.That(t, pc.Set(r3.Vector{X: 1, Y: 2, Z: 3}, ColoredData(color.NRGBA{R: 255, A: 255})), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{X: 1, Y: 2, Z: 3}, Uncolored), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{}, nil), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)
	var order []r3.Vector
	pc.Iterate(0, 0, func(p r3.Vector, _ Data) bool {
		order = append(order, p)
		return true
	})
	test.That(t, order, test.ShouldResemble, []r3.Vector{{X: 1, Y: 2, Z: 3}, {}})
	d, ok := pc.At(r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, d.HasColor(), test.ShouldBeFalse)
	test.That(t, pc.MetaData().HasColor, test.ShouldBeTrue)
	test.That(t, pc.Set(InvalidVertex(), nil), test.ShouldNotBeNil)
}
