package transform

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

const testCameraSystem = `{
	"color_intrinsic_parameters": {"width_px": 1280, "height_px": 720, "fx": 900.538, "fy": 900.818, "ppx": 648.934, "ppy": 367.736},
	"depth_intrinsic_parameters": {"width_px": 1024, "height_px": 768, "fx": 734.938, "fy": 735.516, "ppx": 542.078, "ppy": 398.016},
	"depth_to_color_extrinsic_parameters": {
		"rotation_rads": [0.999958, -0.00838489, 0.00378392, 0.00824708, 0.999351, 0.0350734, -0.00407554, -0.0350407, 0.999378],
		"translation_mm": [-0.000828434, 0.0139185, -0.0033418]
	}
}`

func TestDepthColorIntrinsicsExtrinsics(t *testing.T) {
	sys, err := NewDepthColorIntrinsicsExtrinsicsFromBytes([]byte(testCameraSystem))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sys.CheckValid(), test.ShouldBeNil)
	test.That(t, sys.DepthCamera.Width, test.ShouldEqual, 1024)
	test.That(t, sys.ColorCamera.Fy, test.ShouldEqual, 900.818)
	test.That(t, len(sys.ExtrinsicD2C.RotationMatrix), test.ShouldEqual, 9)

	// a point straight ahead of the color camera lands near its principal point
	tc, ok := sys.TextureCoordinate(r3.Vector{X: 0, Y: 0, Z: 1000})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, tc.X, test.ShouldAlmostEqual, (648.934+0.5)/1280, 0.01)
	test.That(t, tc.Y, test.ShouldAlmostEqual, (367.736+0.5)/720, 0.05)

	_, ok = sys.TextureCoordinate(r3.Vector{X: 0, Y: 0, Z: -10})
	test.That(t, ok, test.ShouldBeFalse)

	_, err = NewDepthColorIntrinsicsExtrinsicsFromBytes([]byte("{"))
	test.That(t, err, test.ShouldNotBeNil)

	sys.ExtrinsicD2C.TranslationVector = nil
	sys.ColorCamera.Fx = 0
	test.That(t, sys.CheckValid(), test.ShouldNotBeNil)
	var nilSys *DepthColorIntrinsicsExtrinsics
	test.That(t, nilSys.CheckValid(), test.ShouldNotBeNil)
}

func TestTransformPointToPoint(t *testing.T) {
	identity := Extrinsics{
		RotationMatrix:    []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		TranslationVector: []float64{0, 0, 1},
	}
	test.That(t, identity.CheckValid(), test.ShouldBeNil)
	test.That(t, identity.TransformPointToPoint(0, 0, 1), test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: 2})

	// 90 degrees about z
	rotZ := Extrinsics{
		RotationMatrix:    []float64{0, -1, 0, 1, 0, 0, 0, 0, 1},
		TranslationVector: []float64{0, 0, 0},
	}
	test.That(t, rotZ.CheckValid(), test.ShouldBeNil)
	test.That(t, rotZ.TransformPointToPoint(1, 0, 0), test.ShouldResemble, r3.Vector{X: 0, Y: 1, Z: 0})

	scaled := Extrinsics{
		RotationMatrix:    []float64{2, 0, 0, 0, 1, 0, 0, 0, 1},
		TranslationVector: []float64{0, 0, 0},
	}
	test.That(t, scaled.CheckValid(), test.ShouldNotBeNil)
	short := Extrinsics{RotationMatrix: []float64{1}, TranslationVector: []float64{0, 0, 0}}
	test.That(t, short.CheckValid(), test.ShouldNotBeNil)
}

func TestAlignedRegistration(t *testing.T) {
	intrinsics := PinholeCameraIntrinsics{Width: 4, Height: 2, Fx: 1, Fy: 1, Ppx: 1.5, Ppy: 0.5}
	reg := NewAlignedRegistration(intrinsics)
	x, y, z := intrinsics.PixelToPoint(3, 1, 10)
	tc, ok := reg.TextureCoordinate(r3.Vector{X: x, Y: y, Z: z})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, tc.X, test.ShouldAlmostEqual, 3.5/4)
	test.That(t, tc.Y, test.ShouldAlmostEqual, 1.5/2)
}
