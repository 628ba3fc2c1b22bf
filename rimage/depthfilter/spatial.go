package depthfilter

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/depthcloud/rimage"
	rutils "go.viam.com/depthcloud/utils"
)

// HoleFill bounds how far the spatial stage propagates valid samples into runs of invalid ones.
type HoleFill int

const (
	// HoleFillDisabled leaves holes alone.
	HoleFillDisabled HoleFill = iota
	// HoleFill2px fills up to 2 samples away from a valid one.
	HoleFill2px
	// HoleFill4px fills up to 4 samples away from a valid one.
	HoleFill4px
	// HoleFill8px fills up to 8 samples away from a valid one.
	HoleFill8px
	// HoleFill16px fills up to 16 samples away from a valid one.
	HoleFill16px
	// HoleFillUnlimited fills every hole that has a valid sample somewhere along a pass.
	HoleFillUnlimited
)

var holeFillNames = []string{"disabled", "2px", "4px", "8px", "16px", "unlimited"}

func (h HoleFill) String() string {
	if h < HoleFillDisabled || h > HoleFillUnlimited {
		return fmt.Sprintf("HoleFill(%d)", int(h))
	}
	return holeFillNames[h]
}

// Radius returns the number of samples a pass may fill after a valid one.
func (h HoleFill) Radius() int {
	switch h {
	case HoleFill2px:
		return 2
	case HoleFill4px:
		return 4
	case HoleFill8px:
		return 8
	case HoleFill16px:
		return 16
	case HoleFillUnlimited:
		return math.MaxInt
	default:
		return 0
	}
}

// MarshalText returns the name of h.
func (h HoleFill) MarshalText() ([]byte, error) {
	if h < HoleFillDisabled || h > HoleFillUnlimited {
		return nil, errors.Errorf("unknown hole fill %d", int(h))
	}
	return []byte(h.String()), nil
}

// UnmarshalText parses a hole fill name such as "4px" or "unlimited".
func (h *HoleFill) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, candidate := range holeFillNames {
		if candidate == name {
			*h = HoleFill(i)
			return nil
		}
	}
	return errors.Errorf("unknown hole fill %q, expected one of %s", name, strings.Join(holeFillNames, ", "))
}

// Spatial is an edge preserving smoothing filter for disparity buffers. Each iteration runs a
// recursive exponential filter left to right and right to left over every row, then top to
// bottom and bottom to top over every column. Neighbours are blended only when both are valid and
// differ by no more than Delta, so depth discontinuities survive. With hole filling enabled, each
// pass carries the last valid sample into following invalid ones, up to the HoleFill radius.
type Spatial struct {
	Alpha      float64
	Delta      float64
	Iterations int
	HoleFill   HoleFill
	// Workers bounds how many rows or columns are filtered at once. Zero means
	// utils.ParallelFactor.
	Workers int
}

// NewSpatial returns a spatial stage.
func NewSpatial(alpha, delta float64, iterations int, holeFill HoleFill) (*Spatial, error) {
	if !(alpha > 0 && alpha <= 1) {
		return nil, errors.Errorf("spatial alpha must be in (0, 1], got %v", alpha)
	}
	if !(delta >= 0) {
		return nil, errors.Errorf("spatial delta must not be negative, got %v", delta)
	}
	if iterations < 1 {
		return nil, errors.Errorf("spatial iterations must be at least 1, got %d", iterations)
	}
	if holeFill < HoleFillDisabled || holeFill > HoleFillUnlimited {
		return nil, errors.Errorf("unknown hole fill %d", int(holeFill))
	}
	return &Spatial{Alpha: alpha, Delta: delta, Iterations: iterations, HoleFill: holeFill}, nil
}

// Name returns "spatial".
func (s *Spatial) Name() string {
	return "spatial"
}

// Reset is a no-op.
func (s *Spatial) Reset() {}

// Process smooths in.
func (s *Spatial) Process(in *rimage.RangeBuffer) (*rimage.RangeBuffer, error) {
	if err := checkInput(s.Name(), in, rimage.DisparityDomain); err != nil {
		return nil, err
	}
	out := in.Clone()
	data := out.Data()
	w, h := out.Width(), out.Height()
	radius := s.HoleFill.Radius()
	// Rows are independent of each other within the horizontal passes, and columns within the
	// vertical ones.
	ctx := context.Background()
	for i := 0; i < s.Iterations; i++ {
		utils.UncheckedError(rutils.ParallelForEachRow(ctx, h, s.Workers, func(y int) {
			row := y * w
			s.pass(data, row, 1, w, radius)
			s.pass(data, row+w-1, -1, w, radius)
		}))
		utils.UncheckedError(rutils.ParallelForEachRow(ctx, w, s.Workers, func(x int) {
			s.pass(data, x, w, h, radius)
			s.pass(data, x+(h-1)*w, -w, h, radius)
		}))
	}
	return out, nil
}

// pass runs the recursive filter over n samples of data starting at start and moving by step.
func (s *Spatial) pass(data []float64, start, step, n, radius int) {
	if n < 2 {
		return
	}
	prev := data[start]
	// filled counts the holes filled since the last valid input sample.
	filled := 0
	for i, idx := 1, start+step; i < n; i, idx = i+1, idx+step {
		cur := data[idx]
		switch {
		case cur > 0 && prev > 0:
			if math.Abs(cur-prev) <= s.Delta {
				cur = s.Alpha*cur + (1-s.Alpha)*prev
				data[idx] = cur
			}
			prev = cur
			filled = 0
		case cur > 0:
			prev = cur
			filled = 0
		case prev > 0 && filled < radius:
			data[idx] = prev
			filled++
		default:
			prev = 0
		}
	}
}
