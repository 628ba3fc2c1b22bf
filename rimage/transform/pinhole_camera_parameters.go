// Package transform holds the camera models used to move between the pixel grid of a depth
// frame, 3D space, and a registered color frame.
package transform

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/depthcloud/rimage"
)

// ErrNoIntrinsics marks a missing or unusable pinhole model.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError wraps ErrNoIntrinsics with a reason.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics is a distortion-free pinhole model. Fx, Fy, Ppx and Ppy are in pixels
// of a Width x Height grid; pixel (0, 0) is centered at the origin of that grid.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid reports an ErrNoIntrinsics error for nil parameters, an empty grid, non-positive
// focal lengths, or a principal point left of or above the first pixel's outer edge.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	switch {
	case params == nil:
		return NewNoIntrinsicsError("intrinsics are nil")
	case params.Width <= 0 || params.Height <= 0:
		return NewNoIntrinsicsError(fmt.Sprintf("resolution %dx%d", params.Width, params.Height))
	case !(params.Fx > 0) || !(params.Fy > 0):
		return NewNoIntrinsicsError(fmt.Sprintf("focal length (%v, %v)", params.Fx, params.Fy))
	case !(params.Ppx >= -0.5) || !(params.Ppy >= -0.5):
		return NewNoIntrinsicsError(fmt.Sprintf("principal point (%v, %v)", params.Ppx, params.Ppy))
	}
	return nil
}

// CheckMatches checks both params and rb, then that they describe grids of the same size.
func (params *PinholeCameraIntrinsics) CheckMatches(rb *rimage.RangeBuffer) error {
	if err := params.CheckValid(); err != nil {
		return err
	}
	if err := rimage.CheckValid(rb); err != nil {
		return err
	}
	if params.Width != rb.Width() || params.Height != rb.Height() {
		return errors.Errorf("frame is %dx%d but intrinsics are for %dx%d",
			rb.Width(), rb.Height(), params.Width, params.Height)
	}
	return nil
}

// Decimated describes the same camera after its image was downsampled by factor into a
// width x height grid. A pixel center p maps to (p+0.5)/factor-0.5.
func (params PinholeCameraIntrinsics) Decimated(factor, width, height int) PinholeCameraIntrinsics {
	params.Width, params.Height = width, height
	if factor <= 1 {
		return params
	}
	scale := 1 / float64(factor)
	params.Fx *= scale
	params.Fy *= scale
	params.Ppx = (params.Ppx+0.5)*scale - 0.5
	params.Ppy = (params.Ppy+0.5)*scale - 0.5
	return params
}

// PixelToPoint deprojects pixel (x, y) at depth z into the camera frame. Nil parameters give the
// origin.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return 0, 0, 0
	}
	return z * (x - params.Ppx) / params.Fx, z * (y - params.Ppy) / params.Fy, z
}

// PointToPixel projects a camera frame point onto the image plane without rounding. Points at
// z == 0 land on (-1, -1), outside any image.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z == 0 {
		return -1, -1
	}
	return params.Fx*x/z + params.Ppx, params.Fy*y/z + params.Ppy
}

// FieldOfView returns the horizontal and vertical field of view in degrees.
func (params *PinholeCameraIntrinsics) FieldOfView() (float64, float64) {
	half := func(extent int, focal float64) float64 {
		return 2 * math.Atan(float64(extent)/(2*focal)) * 180 / math.Pi
	}
	return half(params.Width, params.Fx), half(params.Height, params.Fy)
}
