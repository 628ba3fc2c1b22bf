package transform

import (
	"context"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/rimage"
)

func fourByFour(t *testing.T) (*rimage.RangeBuffer, PinholeCameraIntrinsics) {
	t.Helper()
	data := make([]float64, 16)
	for i := range data {
		data[i] = 1000
	}
	data[0] = 0
	depth, err := rimage.NewRangeBufferFromData(4, 4, rimage.DepthDomain, data)
	test.That(t, err, test.ShouldBeNil)
	return depth, PinholeCameraIntrinsics{Width: 4, Height: 4, Fx: 1, Fy: 1, Ppx: 1.5, Ppy: 1.5}
}

func TestReconstructFourByFour(t *testing.T) {
	logger := logging.NewTestLogger(t)
	depth, intrinsics := fourByFour(t)

	for _, workers := range []int{1, 3, 16} {
		cloud, err := NewReconstructor(workers, logger).Reconstruct(context.Background(), depth, intrinsics, nil, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cloud.ValidCount(), test.ShouldEqual, 15)

		v, tc, c, ok := cloud.At(0, 0)
		test.That(t, ok, test.ShouldBeFalse)
		test.That(t, math.IsNaN(v.X) && math.IsNaN(v.Y) && math.IsNaN(v.Z), test.ShouldBeTrue)
		test.That(t, math.IsNaN(tc.X), test.ShouldBeTrue)
		test.That(t, c, test.ShouldResemble, pointcloud.NeutralColor)

		v, _, _, ok = cloud.At(3, 3)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, v, test.ShouldResemble, r3.Vector{X: 1500, Y: 1500, Z: 1000})
		v, tc, _, _ = cloud.At(1, 2)
		test.That(t, v, test.ShouldResemble, r3.Vector{X: -500, Y: 500, Z: 1000})
		test.That(t, math.IsNaN(tc.X), test.ShouldBeTrue)
	}
}

func TestReconstructRoundTrip(t *testing.T) {
	logger := logging.NewTestLogger(t)
	intrinsics := PinholeCameraIntrinsics{Width: 32, Height: 24, Fx: 30.5, Fy: 29.1, Ppx: 15.2, Ppy: 11.9}
	depth, err := rimage.NewRangeBuffer(32, 24, rimage.DepthDomain)
	test.That(t, err, test.ShouldBeNil)
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			depth.Set(x, y, float64(300+x*y))
		}
	}
	cloud, err := NewReconstructor(0, logger).Reconstruct(context.Background(), depth, intrinsics, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			v, _, _, ok := cloud.At(x, y)
			test.That(t, ok, test.ShouldBeTrue)
			px, py := intrinsics.PointToPixel(v.X, v.Y, v.Z)
			test.That(t, px, test.ShouldAlmostEqual, float64(x), 1e-9)
			test.That(t, py, test.ShouldAlmostEqual, float64(y), 1e-9)
		}
	}
}

func TestReconstructTextureBounds(t *testing.T) {
	logger := logging.NewTestLogger(t)
	depth, intrinsics := fourByFour(t)

	colorFrame := rimage.NewImage(2, 2)
	colorFrame.SetXY(1, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 10})

	// x and y in {-1500, -500, 500, 1500} map to u and v in {-1.5, -0.5, 0.5, 1.5}
	reg := RegistrationFunc(func(p r3.Vector) (r2.Point, bool) {
		return r2.Point{X: p.X / 1000, Y: p.Y / 1000}, true
	})
	cloud, err := NewReconstructor(2, logger).Reconstruct(context.Background(), depth, intrinsics, colorFrame, reg)
	test.That(t, err, test.ShouldBeNil)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x == 0 && y == 0 {
				continue
			}
			_, tc, c, ok := cloud.At(x, y)
			test.That(t, ok, test.ShouldBeTrue)
			test.That(t, math.IsNaN(tc.X), test.ShouldBeFalse)
			if x == 2 && y == 2 {
				test.That(t, c, test.ShouldResemble, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
			} else {
				test.That(t, c, test.ShouldResemble, pointcloud.NeutralColor)
			}
		}
	}

	hidden := RegistrationFunc(func(r3.Vector) (r2.Point, bool) { return r2.Point{}, false })
	cloud, err = NewReconstructor(2, logger).Reconstruct(context.Background(), depth, intrinsics, colorFrame, hidden)
	test.That(t, err, test.ShouldBeNil)
	_, tc, c, ok := cloud.At(2, 2)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, math.IsNaN(tc.X), test.ShouldBeTrue)
	test.That(t, c, test.ShouldResemble, pointcloud.NeutralColor)
}

func TestReconstructAligned(t *testing.T) {
	logger := logging.NewTestLogger(t)
	depth, intrinsics := fourByFour(t)
	colorFrame := rimage.NewImage(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			colorFrame.SetXY(x, y, color.NRGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	cloud, err := NewReconstructor(4, logger).Reconstruct(
		context.Background(), depth, intrinsics, colorFrame, NewAlignedRegistration(intrinsics))
	test.That(t, err, test.ShouldBeNil)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			_, _, c, ok := cloud.At(x, y)
			if !ok {
				continue
			}
			test.That(t, c, test.ShouldResemble, colorFrame.GetXY(x, y))
		}
	}
}

func TestReconstructErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	depth, intrinsics := fourByFour(t)
	r := NewReconstructor(2, logger)

	mismatched := intrinsics
	mismatched.Width = 8
	_, err := r.Reconstruct(context.Background(), depth, mismatched, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = r.Reconstruct(context.Background(), nil, intrinsics, nil, nil)
	test.That(t, errors.Is(err, rimage.ErrInvalidInput), test.ShouldBeTrue)

	_, err = r.Reconstruct(context.Background(), depth.WithDomain(rimage.DisparityDomain), intrinsics, nil, nil)
	test.That(t, errors.Is(err, rimage.ErrInvalidInput), test.ShouldBeTrue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Reconstruct(ctx, depth, intrinsics, nil, nil)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}
