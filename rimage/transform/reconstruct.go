package transform

import (
	"context"
	"image/color"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/utils"
)

// Reconstructor deprojects filtered depth frames into organized point clouds. Rows are split
// across Workers goroutines; each goroutine only writes the slots of its own rows.
type Reconstructor struct {
	Workers int
	logger  logging.Logger
}

// NewReconstructor returns a Reconstructor using workers goroutines, or utils.ParallelFactor
// when workers is not positive.
func NewReconstructor(workers int, logger logging.Logger) *Reconstructor {
	if workers <= 0 {
		workers = utils.ParallelFactor
	}
	return &Reconstructor{Workers: workers, logger: logger}
}

// Reconstruct deprojects every pixel of depth with intrinsics, which must describe depth's grid.
// Valid pixels become vertices in depth's unit and, when both colorFrame and registration are
// given, are texture mapped onto colorFrame. Texture coordinates outside the color frame keep
// the coordinate but get pointcloud.NeutralColor. Invalid pixels get invalid markers.
func (r *Reconstructor) Reconstruct(
	ctx context.Context,
	depth *rimage.RangeBuffer,
	intrinsics PinholeCameraIntrinsics,
	colorFrame *rimage.Image,
	registration Registration,
) (*pointcloud.Organized, error) {
	if err := intrinsics.CheckMatches(depth); err != nil {
		return nil, err
	}
	if depth.Domain() != rimage.DepthDomain {
		return nil, rimage.NewInvalidInputError("cannot reconstruct from a %s buffer", depth.Domain())
	}
	textured := colorFrame != nil && registration != nil && colorFrame.Width() > 0 && colorFrame.Height() > 0

	width, height := depth.Width(), depth.Height()
	cloud := pointcloud.NewOrganized(width, height)
	var validPerGroup []int
	err := utils.GroupWorkParallelN(
		ctx,
		height,
		r.Workers,
		func(numGroups int) {
			validPerGroup = make([]int, numGroups)
		},
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			return func(_, y int) {
				for x := 0; x < width; x++ {
					d := depth.GetXY(x, y)
					if !(d > 0) || math.IsInf(d, 1) {
						continue
					}
					px, py, pz := intrinsics.PixelToPoint(float64(x), float64(y), d)
					v := r3.Vector{X: px, Y: py, Z: pz}
					validPerGroup[groupNum]++
					if !textured {
						cloud.SetPixel(x, y, v, pointcloud.InvalidTexCoord(), pointcloud.NeutralColor)
						continue
					}
					tc, c := sampleTexture(v, colorFrame, registration)
					cloud.SetPixel(x, y, v, tc, c)
				}
			}, nil
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "reconstruction interrupted")
	}

	valid := 0
	for _, n := range validPerGroup {
		valid += n
	}
	r.logger.Debugw("reconstructed point cloud", "width", width, "height", height, "valid", valid, "textured", textured)
	return cloud, nil
}

func sampleTexture(v r3.Vector, colorFrame *rimage.Image, registration Registration) (r2.Point, color.NRGBA) {
	tc, ok := registration.TextureCoordinate(v)
	if !ok {
		return pointcloud.InvalidTexCoord(), pointcloud.NeutralColor
	}
	if !(tc.X >= 0 && tc.X < 1 && tc.Y >= 0 && tc.Y < 1) {
		return tc, pointcloud.NeutralColor
	}
	cx := int(math.Floor(tc.X * float64(colorFrame.Width())))
	cy := int(math.Floor(tc.Y * float64(colorFrame.Height())))
	if cx >= colorFrame.Width() || cy >= colorFrame.Height() {
		return tc, pointcloud.NeutralColor
	}
	c := colorFrame.GetXY(cx, cy)
	c.A = math.MaxUint8
	return tc, c
}
