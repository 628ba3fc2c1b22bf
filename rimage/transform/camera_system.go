package transform

import (
	"encoding/json"
	"math"
	"os"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

// Registration maps a point in the depth camera's frame onto a normalized texture coordinate
// (u, v) of a color frame, where u*width and v*height index the color pixel. It returns false
// when the point cannot be seen by the color camera at all.
type Registration interface {
	TextureCoordinate(p r3.Vector) (r2.Point, bool)
}

// RegistrationFunc adapts a function to a Registration.
type RegistrationFunc func(p r3.Vector) (r2.Point, bool)

// TextureCoordinate calls f(p).
func (f RegistrationFunc) TextureCoordinate(p r3.Vector) (r2.Point, bool) {
	return f(p)
}

// NewAlignedRegistration returns the registration for a color frame that is already aligned to a
// depth camera with the given intrinsics.
func NewAlignedRegistration(intrinsics PinholeCameraIntrinsics) Registration {
	return RegistrationFunc(func(p r3.Vector) (r2.Point, bool) {
		return projectToTexture(&intrinsics, p)
	})
}

// projectToTexture projects p with intrinsics and normalizes by their resolution so that
// floor(u*width) is the pixel whose center is nearest to the projection.
func projectToTexture(intrinsics *PinholeCameraIntrinsics, p r3.Vector) (r2.Point, bool) {
	if p.Z <= 0 {
		return r2.Point{}, false
	}
	px, py := intrinsics.PointToPixel(p.X, p.Y, p.Z)
	return r2.Point{
		X: (px + 0.5) / float64(intrinsics.Width),
		Y: (py + 0.5) / float64(intrinsics.Height),
	}, true
}

// Extrinsics holds the rigid body transform from one camera frame to another. RotationMatrix is
// row-major 3x3; TranslationVector is in the depth unit.
type Extrinsics struct {
	RotationMatrix    []float64 `json:"rotation_rads"`
	TranslationVector []float64 `json:"translation_mm"`
}

// rotationTolerance bounds how far det(R) may stray from 1.
const rotationTolerance = 1e-3

// CheckValid checks the sizes of the transform and that the rotation is proper.
func (params *Extrinsics) CheckValid() error {
	if params == nil {
		return errors.New("pointer to extrinsic parameters is nil")
	}
	if len(params.RotationMatrix) != 9 {
		return errors.Errorf("rotation matrix must have 9 elements, got %d", len(params.RotationMatrix))
	}
	if len(params.TranslationVector) != 3 {
		return errors.Errorf("translation vector must have 3 elements, got %d", len(params.TranslationVector))
	}
	det := mat.Det(mat.NewDense(3, 3, params.RotationMatrix))
	if math.Abs(det-1) > rotationTolerance {
		return errors.Errorf("rotation matrix determinant must be 1, got %f", det)
	}
	return nil
}

// TransformPointToPoint applies the rigid body transform to the point (x, y, z).
func (params *Extrinsics) TransformPointToPoint(x, y, z float64) r3.Vector {
	r := params.RotationMatrix
	t := params.TranslationVector
	return r3.Vector{
		X: r[0]*x + r[1]*y + r[2]*z + t[0],
		Y: r[3]*x + r[4]*y + r[5]*z + t[1],
		Z: r[6]*x + r[7]*y + r[8]*z + t[2],
	}
}

// DepthColorIntrinsicsExtrinsics holds the intrinsics of a depth and a color camera and the
// transform from the depth camera's frame to the color camera's.
type DepthColorIntrinsicsExtrinsics struct {
	ColorCamera  PinholeCameraIntrinsics `json:"color_intrinsic_parameters"`
	DepthCamera  PinholeCameraIntrinsics `json:"depth_intrinsic_parameters"`
	ExtrinsicD2C Extrinsics              `json:"depth_to_color_extrinsic_parameters"`
}

// NewDepthColorIntrinsicsExtrinsicsFromBytes parses a camera system from JSON.
func NewDepthColorIntrinsicsExtrinsicsFromBytes(byteJSON []byte) (*DepthColorIntrinsicsExtrinsics, error) {
	intrinsics := &DepthColorIntrinsicsExtrinsics{}
	if err := json.Unmarshal(byteJSON, intrinsics); err != nil {
		return nil, errors.Wrap(err, "error parsing byte array")
	}
	return intrinsics, nil
}

// NewDepthColorIntrinsicsExtrinsicsFromJSONFile reads a camera system from a JSON file.
func NewDepthColorIntrinsicsExtrinsicsFromJSONFile(jsonPath string) (*DepthColorIntrinsicsExtrinsics, error) {
	//nolint:gosec
	byteValue, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON file")
	}
	return NewDepthColorIntrinsicsExtrinsicsFromBytes(byteValue)
}

// CheckValid checks every part of the camera system.
func (dcie *DepthColorIntrinsicsExtrinsics) CheckValid() error {
	if dcie == nil {
		return errors.New("pointer to DepthColorIntrinsicsExtrinsics is nil")
	}
	return multierr.Combine(
		errors.Wrap(dcie.ColorCamera.CheckValid(), "color camera"),
		errors.Wrap(dcie.DepthCamera.CheckValid(), "depth camera"),
		errors.Wrap(dcie.ExtrinsicD2C.CheckValid(), "extrinsics"),
	)
}

// TextureCoordinate moves p into the color camera's frame and projects it onto the color image.
func (dcie *DepthColorIntrinsicsExtrinsics) TextureCoordinate(p r3.Vector) (r2.Point, bool) {
	return projectToTexture(&dcie.ColorCamera, dcie.ExtrinsicD2C.TransformPointToPoint(p.X, p.Y, p.Z))
}
