package depthfilter

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/depthcloud/rimage"
)

// DefaultDisparityScale converts millimeter depth into disparity values of a convenient
// magnitude: 1m becomes 1000.
const DefaultDisparityScale = 1e6

// DepthToDisparity maps every valid depth d to Scale/d. Invalid samples stay zero.
type DepthToDisparity struct {
	Scale float64
}

// DisparityToDepth maps every valid disparity v back to Scale/v. Invalid samples stay zero.
type DisparityToDepth struct {
	Scale float64
}

// NewDepthToDisparity returns a depth to disparity stage.
func NewDepthToDisparity(scale float64) (*DepthToDisparity, error) {
	if err := checkScale(scale); err != nil {
		return nil, err
	}
	return &DepthToDisparity{Scale: scale}, nil
}

// NewDisparityToDepth returns a disparity to depth stage.
func NewDisparityToDepth(scale float64) (*DisparityToDepth, error) {
	if err := checkScale(scale); err != nil {
		return nil, err
	}
	return &DisparityToDepth{Scale: scale}, nil
}

func checkScale(scale float64) error {
	if !(scale > 0) || math.IsInf(scale, 1) {
		return errors.Errorf("disparity scale must be a positive number, got %v", scale)
	}
	return nil
}

// Name returns "depth_to_disparity".
func (s *DepthToDisparity) Name() string {
	return "depth_to_disparity"
}

// Reset is a no-op.
func (s *DepthToDisparity) Reset() {}

// Process converts in to the disparity domain.
func (s *DepthToDisparity) Process(in *rimage.RangeBuffer) (*rimage.RangeBuffer, error) {
	if err := checkInput(s.Name(), in, rimage.DepthDomain); err != nil {
		return nil, err
	}
	return invert(in, rimage.DisparityDomain, s.Scale), nil
}

// Name returns "disparity_to_depth".
func (s *DisparityToDepth) Name() string {
	return "disparity_to_depth"
}

// Reset is a no-op.
func (s *DisparityToDepth) Reset() {}

// Process converts in back to the depth domain.
func (s *DisparityToDepth) Process(in *rimage.RangeBuffer) (*rimage.RangeBuffer, error) {
	if err := checkInput(s.Name(), in, rimage.DisparityDomain); err != nil {
		return nil, err
	}
	return invert(in, rimage.DepthDomain, s.Scale), nil
}

func invert(in *rimage.RangeBuffer, domain rimage.Domain, scale float64) *rimage.RangeBuffer {
	out := in.WithDomain(domain)
	src, dst := in.Data(), out.Data()
	for i, v := range src {
		if v > 0 {
			dst[i] = scale / v
		}
	}
	return out
}
