package transform

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthcloud/rimage"
)

func TestPixelToPointRoundTrip(t *testing.T) {
	intrinsics := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 615.3, Fy: 612.9, Ppx: 318.2, Ppy: 241.7}
	for _, tc := range []struct{ x, y, d float64 }{
		{0, 0, 250},
		{639, 479, 4000},
		{318.2, 241.7, 1},
		{100, 400, 65535},
	} {
		px, py, pz := intrinsics.PixelToPoint(tc.x, tc.y, tc.d)
		test.That(t, pz, test.ShouldEqual, tc.d)
		x, y := intrinsics.PointToPixel(px, py, pz)
		test.That(t, x, test.ShouldAlmostEqual, tc.x, 1e-9)
		test.That(t, y, test.ShouldAlmostEqual, tc.y, 1e-9)
	}
	x, y := intrinsics.PointToPixel(1, 1, 0)
	test.That(t, x, test.ShouldEqual, -1.0)
	test.That(t, y, test.ShouldEqual, -1.0)

	var nilIntrinsics *PinholeCameraIntrinsics
	px, py, pz := nilIntrinsics.PixelToPoint(1, 2, 3)
	test.That(t, []float64{px, py, pz}, test.ShouldResemble, []float64{0, 0, 0})
}

func TestIntrinsicsCheckValid(t *testing.T) {
	var nilIntrinsics *PinholeCameraIntrinsics
	test.That(t, errors.Is(nilIntrinsics.CheckValid(), ErrNoIntrinsics), test.ShouldBeTrue)

	good := PinholeCameraIntrinsics{Width: 4, Height: 4, Fx: 1, Fy: 1, Ppx: 1.5, Ppy: 1.5}
	test.That(t, good.CheckValid(), test.ShouldBeNil)

	for _, mutate := range []func(p *PinholeCameraIntrinsics){
		func(p *PinholeCameraIntrinsics) { p.Width = 0 },
		func(p *PinholeCameraIntrinsics) { p.Height = -1 },
		func(p *PinholeCameraIntrinsics) { p.Fx = 0 },
		func(p *PinholeCameraIntrinsics) { p.Fy = -2 },
		func(p *PinholeCameraIntrinsics) { p.Ppx = -1 },
		func(p *PinholeCameraIntrinsics) { p.Ppy = -1 },
	} {
		bad := good
		mutate(&bad)
		test.That(t, errors.Is(bad.CheckValid(), ErrNoIntrinsics), test.ShouldBeTrue)
	}
}

func TestIntrinsicsCheckMatches(t *testing.T) {
	intrinsics := &PinholeCameraIntrinsics{Width: 4, Height: 3, Fx: 1, Fy: 1, Ppx: 1, Ppy: 1}
	rb, err := rimage.NewRangeBuffer(4, 3, rimage.DepthDomain)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, intrinsics.CheckMatches(rb), test.ShouldBeNil)

	other, err := rimage.NewRangeBuffer(3, 4, rimage.DepthDomain)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, intrinsics.CheckMatches(other), test.ShouldNotBeNil)
	test.That(t, errors.Is(intrinsics.CheckMatches(nil), rimage.ErrInvalidInput), test.ShouldBeTrue)
}

func TestDecimatedIntrinsics(t *testing.T) {
	intrinsics := PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 600, Fy: 500, Ppx: 319.5, Ppy: 239.5}
	dec := intrinsics.Decimated(2, 320, 240)
	test.That(t, dec, test.ShouldResemble, PinholeCameraIntrinsics{Width: 320, Height: 240, Fx: 300, Fy: 250, Ppx: 159.5, Ppy: 119.5})
	test.That(t, dec.CheckValid(), test.ShouldBeNil)

	same := intrinsics.Decimated(1, 640, 480)
	test.That(t, same, test.ShouldResemble, intrinsics)

	// the center of a decimated block deprojects onto the same ray as the center of the
	// original pixels it covers
	x, y, _ := dec.PixelToPoint(10, 20, 1000)
	ox, oy, _ := intrinsics.PixelToPoint(20.5, 40.5, 1000)
	test.That(t, x, test.ShouldAlmostEqual, ox)
	test.That(t, y, test.ShouldAlmostEqual, oy)
}

func TestFieldOfView(t *testing.T) {
	intrinsics := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 320, Fy: 240, Ppx: 319.5, Ppy: 239.5}
	h, v := intrinsics.FieldOfView()
	test.That(t, h, test.ShouldAlmostEqual, 90.0)
	test.That(t, v, test.ShouldAlmostEqual, 90.0)

	intrinsics.Fx = 320 / math.Sqrt(3)
	h, _ = intrinsics.FieldOfView()
	test.That(t, h, test.ShouldAlmostEqual, 120.0)
}
